// FilePath: internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialibre/crosshub/internal/alerting"
	"github.com/vialibre/crosshub/internal/broadcast"
	"github.com/vialibre/crosshub/internal/detector"
	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository/repotest"
	"github.com/vialibre/crosshub/internal/rules"
)

type published struct {
	event   string
	payload []byte
	rooms   []string
}

// recorder captures Publish calls synchronously.
type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(event string, payload []byte, rooms ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload, rooms: rooms})
}

func (r *recorder) byEvent(event string) []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []published
	for _, p := range r.events {
		if p.event == event {
			out = append(out, p)
		}
	}
	return out
}

func setupPipeline(t *testing.T) (*Pipeline, *repotest.Store, *recorder) {
	t.Helper()
	store := repotest.NewStore()
	store.Crossings["cr7"] = &models.Crossing{
		ID:     "cr7",
		Name:   "Kilometer 7",
		Status: models.CrossingActive,
	}

	readings := repotest.ReadingRepo{Store: store}
	events := repotest.StateEventRepo{Store: store}
	alerts := repotest.AlertRepo{Store: store}

	det := detector.New(readings, events, 2*time.Second)
	alertEngine := alerting.New(alerts)
	ruleEngine := rules.New(
		repotest.CrossingRepo{Store: store},
		readings,
		repotest.RuleRepo{Store: store},
		repotest.WorkRepo{Store: store},
		alerts,
		5*time.Minute,
	)

	rec := &recorder{}
	p := New(repotest.CrossingRepo{Store: store}, readings, det, alertEngine, ruleEngine, rec, 5*time.Second)
	return p, store, rec
}

func TestProcessReadingFullScenario(t *testing.T) {
	p, store, rec := setupPipeline(t)

	// Degraded reading: barrier down, low battery.
	reading := &models.Reading{
		CrossingID:     "cr7",
		Timestamp:      time.Now(),
		BarrierVoltage: 3.3,
		BatteryVoltage: 10.2,
	}

	result, err := p.ProcessReading(context.Background(), reading)
	require.NoError(t, err)

	assert.NotEmpty(t, reading.ID)
	assert.False(t, reading.CreatedAt.IsZero())
	assert.Equal(t, models.BarrierDown, reading.BarrierStatus)
	require.NotNil(t, result.StateEvent)
	assert.Equal(t, models.BarrierDown, result.StateEvent.State)

	// Only low battery fires: barrier voltage thresholds are a rule-engine
	// concern, not an ingest-time check.
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertLowBattery, result.Alerts[0].Type)
	assert.False(t, result.Alerts[0].CreatedAt.IsZero())

	// Reading persisted, last-seen advanced.
	assert.Len(t, store.Readings, 1)
	assert.True(t, store.Crossings["cr7"].LastSeen.Equal(reading.Timestamp))

	// Broadcasts: reading, state event and alerts to their topic room plus
	// the crossing room; notifications alongside.
	readingPubs := rec.byEvent(broadcast.EventReading)
	require.Len(t, readingPubs, 1)
	assert.Equal(t, []string{broadcast.RoomReadings, "crossing-cr7"}, readingPubs[0].rooms)

	statePubs := rec.byEvent(broadcast.EventStateEvent)
	require.Len(t, statePubs, 1)
	assert.Equal(t, []string{broadcast.RoomStateEvents, "crossing-cr7"}, statePubs[0].rooms)

	alertPubs := rec.byEvent(broadcast.EventAlert)
	require.Len(t, alertPubs, len(result.Alerts))

	// The emitted envelope carries the alert's creation time, not the zero
	// time.
	var env struct {
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(alertPubs[0].payload, &env))
	assert.False(t, env.Timestamp.IsZero())

	notifications := rec.byEvent(broadcast.EventNotification)
	assert.Len(t, notifications, 1+len(result.Alerts))
}

func TestProcessReadingHealthy(t *testing.T) {
	p, _, rec := setupPipeline(t)

	reading := &models.Reading{
		CrossingID:     "cr7",
		Timestamp:      time.Now(),
		BarrierVoltage: 0.1,
		BatteryVoltage: 12.6,
	}

	result, err := p.ProcessReading(context.Background(), reading)
	require.NoError(t, err)

	assert.Equal(t, models.BarrierUp, reading.BarrierStatus)
	require.NotNil(t, result.StateEvent, "first reading establishes state")
	assert.Empty(t, result.Alerts)
	assert.Empty(t, result.Work)

	assert.Len(t, rec.byEvent(broadcast.EventReading), 1)
	assert.Empty(t, rec.byEvent(broadcast.EventAlert))
}

func TestProcessReadingNoTransitionNoStateBroadcast(t *testing.T) {
	p, _, rec := setupPipeline(t)

	first := &models.Reading{CrossingID: "cr7", Timestamp: time.Now(), BarrierVoltage: 0.1, BatteryVoltage: 12.6}
	_, err := p.ProcessReading(context.Background(), first)
	require.NoError(t, err)

	second := &models.Reading{CrossingID: "cr7", Timestamp: time.Now().Add(5 * time.Minute), BarrierVoltage: 0.2, BatteryVoltage: 12.6}
	result, err := p.ProcessReading(context.Background(), second)
	require.NoError(t, err)

	assert.Nil(t, result.StateEvent)
	assert.Len(t, rec.byEvent(broadcast.EventStateEvent), 1, "only the first reading emitted a state event")
	assert.Len(t, rec.byEvent(broadcast.EventReading), 2)
}

func TestProcessReadingInsertFailureIsFatal(t *testing.T) {
	p, store, rec := setupPipeline(t)

	store.FailNext = assert.AnError
	reading := &models.Reading{CrossingID: "cr7", Timestamp: time.Now(), BarrierVoltage: 0.1, BatteryVoltage: 12.6}
	_, err := p.ProcessReading(context.Background(), reading)
	require.Error(t, err)

	assert.Empty(t, store.Readings)
	assert.Empty(t, rec.events)
}

func TestProcessReadingUnknownCrossingStillProcessed(t *testing.T) {
	p, _, rec := setupPipeline(t)

	// Last-seen update fails (unknown crossing) but processing continues.
	reading := &models.Reading{CrossingID: "cr-ghost", Timestamp: time.Now(), BarrierVoltage: 23.8, BatteryVoltage: 12.6}
	result, err := p.ProcessReading(context.Background(), reading)
	require.NoError(t, err)
	require.NotNil(t, result.StateEvent)
	assert.Len(t, rec.byEvent(broadcast.EventReading), 1)
}

func TestProcessReadingRuleEngineSchedulesWork(t *testing.T) {
	p, store, rec := setupPipeline(t)

	store.Rules = append(store.Rules, &models.MaintenanceRule{
		ID:       "rule-battery",
		Name:     "Battery replacement",
		Kind:     models.MaintenanceBattery,
		Priority: models.PriorityHigh,
		Conditions: models.ConditionSet{
			Signals: map[string]models.Condition{
				"battery_voltage": {Operator: models.OpLt, Value: 11.5},
			},
		},
		Actions: models.RuleActions{
			LeadTimeDays:  1,
			RaiseAlert:    true,
			AlertType:     models.AlertMaintenanceDue,
			AlertSeverity: models.SeverityWarning,
		},
		Active: true,
	})

	reading := &models.Reading{CrossingID: "cr7", Timestamp: time.Now(), BarrierVoltage: 23.8, BatteryVoltage: 11.2}
	result, err := p.ProcessReading(context.Background(), reading)
	require.NoError(t, err)

	require.Len(t, result.Work, 1)
	assert.Equal(t, models.WorkPending, result.Work[0].Status)

	// The rule's alert is broadcast like any threshold alert.
	var maintenanceAlert bool
	for _, a := range result.Alerts {
		if a.Type == models.AlertMaintenanceDue {
			maintenanceAlert = true
		}
	}
	assert.True(t, maintenanceAlert)
	assert.NotEmpty(t, rec.byEvent(broadcast.EventAlert))
}
