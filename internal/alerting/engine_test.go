// FilePath: internal/alerting/engine_test.go
package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository/repotest"
)

func intPtr(v int) *int { return &v }

func healthyReading(id string) *models.Reading {
	return &models.Reading{
		ID:             id,
		CrossingID:     "cr1",
		Timestamp:      time.Now(),
		BarrierVoltage: 23.8,
		BatteryVoltage: 12.6,
		Sensor1:        intPtr(120),
	}
}

func TestEvaluateHealthyReading(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	created, err := e.Evaluate(context.Background(), healthyReading("r1"))
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, store.Alerts)
}

func TestEvaluateLowBattery(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	reading := healthyReading("r1")
	reading.BatteryVoltage = 10.5

	created, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertLowBattery, created[0].Type)
	assert.Equal(t, models.SeverityCritical, created[0].Severity)
	require.NotNil(t, created[0].ReadingID)
	assert.Equal(t, "r1", *created[0].ReadingID)
	assert.False(t, created[0].CreatedAt.IsZero())
}

func TestEvaluateBoundaryValues(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	// Exactly at the thresholds: nothing fires.
	reading := healthyReading("r1")
	reading.BatteryVoltage = 11.0
	reading.Sensor1 = intPtr(500)

	created, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestEvaluateBarrierVoltageNotChecked(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	// Barrier voltage is a rule-engine concern. A lowered barrier at 3.3V
	// with a weak battery raises exactly the low-battery alert, nothing
	// voltage-related.
	reading := healthyReading("r1")
	reading.BarrierVoltage = 3.3
	reading.BatteryVoltage = 10.2

	created, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertLowBattery, created[0].Type)
	for _, a := range store.Alerts {
		assert.NotEqual(t, models.AlertVoltageCritical, a.Type)
	}
}

func TestEvaluateCabinetOpen(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	reading := healthyReading("r1")
	reading.Sensor1 = intPtr(612)

	created, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertCabinetOpen, created[0].Type)
	assert.Equal(t, models.SeverityWarning, created[0].Severity)
}

func TestEvaluateCabinetSensorAbsent(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	reading := healthyReading("r1")
	reading.Sensor1 = nil

	created, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestEvaluateMultipleChecksFire(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	reading := healthyReading("r1")
	reading.BatteryVoltage = 10.2
	reading.BarrierVoltage = 3.3
	reading.Sensor1 = intPtr(900)

	created, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	require.Len(t, created, 2)

	types := map[models.AlertType]bool{}
	for _, a := range created {
		types[a.Type] = true
	}
	assert.True(t, types[models.AlertLowBattery])
	assert.True(t, types[models.AlertCabinetOpen])
}

func TestEvaluateIdempotentPerReading(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	reading := healthyReading("r1")
	reading.BatteryVoltage = 10.5

	first, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := e.Evaluate(context.Background(), reading)
	require.NoError(t, err)
	assert.Empty(t, second)

	count := 0
	for _, a := range store.Alerts {
		if a.Type == models.AlertLowBattery {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEvaluateStoreFailureContinues(t *testing.T) {
	store := repotest.NewStore()
	e := New(repotest.AlertRepo{Store: store})

	reading := healthyReading("r1")
	reading.BatteryVoltage = 10.5
	reading.Sensor1 = intPtr(900)

	// First insert (low battery) fails; the cabinet check still runs.
	store.FailNext = assert.AnError
	created, err := e.Evaluate(context.Background(), reading)
	assert.Error(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.AlertCabinetOpen, created[0].Type)
}
