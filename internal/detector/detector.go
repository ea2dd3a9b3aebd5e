// FilePath: internal/detector/detector.go

// Package detector derives barrier state from raw telemetry and records
// debounced state transitions.
package detector

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository"
)

// DownThreshold is the barrier voltage above which the barrier is DOWN.
// The barrier motor circuit is only energized while the barrier is lowered.
const DownThreshold = 2.0

// Detector evaluates each incoming reading, annotates it with the derived
// barrier state and emits a StateEvent when the state changed.
type Detector struct {
	readings repository.ReadingRepository
	events   repository.StateEventRepository
	debounce time.Duration
}

// New creates a Detector. The debounce window suppresses transition events
// that follow a previous event too closely (voltage flutter around the
// threshold).
func New(readings repository.ReadingRepository, events repository.StateEventRepository, debounce time.Duration) *Detector {
	return &Detector{
		readings: readings,
		events:   events,
		debounce: debounce,
	}
}

// StateOf derives the barrier state from a reading's barrier voltage.
func StateOf(reading *models.Reading) models.BarrierState {
	if reading.BarrierVoltage > DownThreshold {
		return models.BarrierDown
	}
	return models.BarrierUp
}

// Process annotates the reading with its derived state and returns the
// transition event if one was recorded. It returns (nil, nil) when the state
// did not change or the transition fell inside the debounce window.
func (d *Detector) Process(ctx context.Context, reading *models.Reading) (*models.StateEvent, error) {
	state := StateOf(reading)
	reading.BarrierStatus = state

	// The annotation is best-effort: a failed column update must not block
	// transition detection.
	if err := d.readings.SetBarrierStatus(ctx, reading.ID, state); err != nil {
		nuts.L.Warnf("[Detector] Failed to annotate reading %s with state %s: %v", reading.ID, state, err)
	}

	last, err := d.events.Latest(ctx, reading.CrossingID)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if last != nil && last.State == state {
		return nil, nil
	}

	event := &models.StateEvent{
		ID:             nuts.NID("se", 12),
		CrossingID:     reading.CrossingID,
		ReadingID:      reading.ID,
		State:          state,
		EventTime:      reading.Timestamp,
		VoltageAtEvent: reading.BarrierVoltage,
		CreatedAt:      time.Now(),
	}

	created, err := d.events.InsertIfAbsent(ctx, event, d.debounce)
	if err != nil {
		return nil, err
	}
	if !created {
		nuts.L.Debugf("[Detector] Debounced %s transition for crossing %s at %s", state, reading.CrossingID, reading.Timestamp.Format(time.RFC3339))
		return nil, nil
	}

	nuts.L.Infof("[Detector] Crossing %s barrier %s (%.2fV)", reading.CrossingID, state, reading.BarrierVoltage)
	return event, nil
}
