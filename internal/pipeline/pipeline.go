// FilePath: internal/pipeline/pipeline.go

// Package pipeline runs the ingestion path: persist the reading, derive
// barrier state, scan alert thresholds, evaluate maintenance rules, and
// hand the results to the broadcaster.
package pipeline

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/alerting"
	"github.com/vialibre/crosshub/internal/broadcast"
	"github.com/vialibre/crosshub/internal/detector"
	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository"
	"github.com/vialibre/crosshub/internal/rules"
)

// Result is everything one reading produced.
type Result struct {
	Reading    *models.Reading
	StateEvent *models.StateEvent
	Alerts     []*models.Alert
	Work       []*models.MaintenanceWork
}

// Publisher is the broadcaster surface the pipeline needs.
type Publisher interface {
	Publish(event string, payload []byte, rooms ...string)
}

// Pipeline processes readings one at a time per caller. Readings from
// different crossings can be processed concurrently, there is no
// cross-crossing coordination.
type Pipeline struct {
	crossings    repository.CrossingRepository
	readings     repository.ReadingRepository
	detector     *detector.Detector
	alerts       *alerting.Engine
	rules        *rules.Engine
	hub          Publisher
	storeTimeout time.Duration
}

func New(
	crossings repository.CrossingRepository,
	readings repository.ReadingRepository,
	det *detector.Detector,
	alerts *alerting.Engine,
	ruleEngine *rules.Engine,
	hub Publisher,
	storeTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		crossings:    crossings,
		readings:     readings,
		detector:     det,
		alerts:       alerts,
		rules:        ruleEngine,
		hub:          hub,
		storeTimeout: storeTimeout,
	}
}

// ProcessReading runs the full ingestion path for one reading. Only the
// initial insert is fatal; every downstream stage is advisory and a failure
// there is logged without blocking the rest.
func (p *Pipeline) ProcessReading(ctx context.Context, reading *models.Reading) (*Result, error) {
	if reading.ID == "" {
		reading.ID = nuts.NID("rd", 12)
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now()
	}
	reading.BarrierStatus = detector.StateOf(reading)

	if err := p.withTimeout(ctx, func(sctx context.Context) error {
		return p.readings.Insert(sctx, reading)
	}); err != nil {
		return nil, err
	}

	if err := p.withTimeout(ctx, func(sctx context.Context) error {
		return p.crossings.UpdateLastSeen(sctx, reading.CrossingID, reading.Timestamp)
	}); err != nil {
		nuts.L.Warnf("[Pipeline] Failed to update last seen for crossing %s: %v", reading.CrossingID, err)
	}

	result := &Result{Reading: reading}
	crossingName := p.crossingName(ctx, reading.CrossingID)

	event, err := p.detector.Process(ctx, reading)
	if err != nil {
		nuts.L.Errorf("[Pipeline] State detection failed for reading %s: %v", reading.ID, err)
	}
	result.StateEvent = event

	created, err := p.alerts.Evaluate(ctx, reading)
	if err != nil {
		nuts.L.Errorf("[Pipeline] Alert evaluation failed for reading %s: %v", reading.ID, err)
	}
	result.Alerts = created

	ruleResult, err := p.rules.EvaluateReading(ctx, reading)
	if err != nil {
		nuts.L.Errorf("[Pipeline] Rule evaluation failed for reading %s: %v", reading.ID, err)
	} else {
		result.Work = ruleResult.Work
		result.Alerts = append(result.Alerts, ruleResult.Alerts...)
	}

	p.broadcast(result, crossingName)
	return result, nil
}

// broadcast serializes every new record synchronously and hands the
// payloads to the hub for asynchronous fan-out.
func (p *Pipeline) broadcast(result *Result, crossingName string) {
	crossingRoom := broadcast.CrossingRoom(result.Reading.CrossingID)

	if payload, err := broadcast.ReadingPayload(result.Reading); err == nil {
		p.hub.Publish(broadcast.EventReading, payload, broadcast.RoomReadings, crossingRoom)
	} else {
		nuts.L.Errorf("[Pipeline] Failed to serialize reading %s: %v", result.Reading.ID, err)
	}

	if result.StateEvent != nil {
		if payload, err := broadcast.StateEventPayload(result.StateEvent); err == nil {
			p.hub.Publish(broadcast.EventStateEvent, payload, broadcast.RoomStateEvents, crossingRoom)
		} else {
			nuts.L.Errorf("[Pipeline] Failed to serialize state event %s: %v", result.StateEvent.ID, err)
		}
		if payload, err := broadcast.StateEventNotification(result.StateEvent, crossingName); err == nil {
			p.hub.Publish(broadcast.EventNotification, payload, broadcast.RoomNotifications)
		}
	}

	for _, alert := range result.Alerts {
		if payload, err := broadcast.AlertPayload(alert); err == nil {
			p.hub.Publish(broadcast.EventAlert, payload, broadcast.RoomAlerts, crossingRoom)
		} else {
			nuts.L.Errorf("[Pipeline] Failed to serialize alert %s: %v", alert.ID, err)
		}
		if payload, err := broadcast.AlertNotification(alert, crossingName); err == nil {
			p.hub.Publish(broadcast.EventNotification, payload, broadcast.RoomNotifications)
		}
	}
}

func (p *Pipeline) crossingName(ctx context.Context, crossingID string) string {
	crossing, err := p.crossings.Get(ctx, crossingID)
	if err != nil {
		nuts.L.Warnf("[Pipeline] Failed to load crossing %s: %v", crossingID, err)
		return crossingID
	}
	return crossing.Name
}

func (p *Pipeline) withTimeout(ctx context.Context, op func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return op(sctx)
}
