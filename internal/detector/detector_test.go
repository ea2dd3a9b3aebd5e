// FilePath: internal/detector/detector_test.go
package detector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository/repotest"
)

func newReading(id, crossingID string, voltage float64, at time.Time) *models.Reading {
	return &models.Reading{
		ID:             id,
		CrossingID:     crossingID,
		Timestamp:      at,
		BarrierVoltage: voltage,
		BatteryVoltage: 12.6,
	}
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		name    string
		voltage float64
		want    models.BarrierState
	}{
		{"zero voltage is up", 0, models.BarrierUp},
		{"below threshold is up", 1.9, models.BarrierUp},
		{"exactly threshold is up", 2.0, models.BarrierUp},
		{"above threshold is down", 2.01, models.BarrierDown},
		{"nominal down voltage", 23.8, models.BarrierDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(newReading("r1", "cr1", tt.voltage, time.Now())))
		})
	}
}

func TestProcessFirstReadingEmitsEvent(t *testing.T) {
	store := repotest.NewStore()
	readings := repotest.ReadingRepo{Store: store}
	events := repotest.StateEventRepo{Store: store}
	d := New(readings, events, 2*time.Second)

	now := time.Now()
	reading := newReading("r1", "cr1", 23.5, now)
	require.NoError(t, readings.Insert(context.Background(), reading))

	event, err := d.Process(context.Background(), reading)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, models.BarrierDown, event.State)
	assert.Equal(t, "cr1", event.CrossingID)
	assert.Equal(t, "r1", event.ReadingID)
	assert.Equal(t, 23.5, event.VoltageAtEvent)
	assert.True(t, event.EventTime.Equal(now))
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, models.BarrierDown, reading.BarrierStatus)

	stored, err := readings.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, models.BarrierDown, stored.BarrierStatus)
}

func TestProcessNoTransitionNoEvent(t *testing.T) {
	store := repotest.NewStore()
	readings := repotest.ReadingRepo{Store: store}
	events := repotest.StateEventRepo{Store: store}
	d := New(readings, events, 2*time.Second)

	now := time.Now()
	first := newReading("r1", "cr1", 0.1, now)
	require.NoError(t, readings.Insert(context.Background(), first))
	_, err := d.Process(context.Background(), first)
	require.NoError(t, err)

	second := newReading("r2", "cr1", 0.2, now.Add(5*time.Minute))
	require.NoError(t, readings.Insert(context.Background(), second))
	event, err := d.Process(context.Background(), second)
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Len(t, store.Events, 1)
}

func TestProcessTransitionEmitsEvent(t *testing.T) {
	store := repotest.NewStore()
	readings := repotest.ReadingRepo{Store: store}
	events := repotest.StateEventRepo{Store: store}
	d := New(readings, events, 2*time.Second)

	now := time.Now()
	down := newReading("r1", "cr1", 23.5, now)
	require.NoError(t, readings.Insert(context.Background(), down))
	_, err := d.Process(context.Background(), down)
	require.NoError(t, err)

	up := newReading("r2", "cr1", 0.0, now.Add(time.Minute))
	require.NoError(t, readings.Insert(context.Background(), up))
	event, err := d.Process(context.Background(), up)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.BarrierUp, event.State)
	assert.Len(t, store.Events, 2)
}

func TestProcessDebouncesRapidFlutter(t *testing.T) {
	store := repotest.NewStore()
	readings := repotest.ReadingRepo{Store: store}
	events := repotest.StateEventRepo{Store: store}
	d := New(readings, events, 2*time.Second)

	now := time.Now()
	down := newReading("r1", "cr1", 23.5, now)
	require.NoError(t, readings.Insert(context.Background(), down))
	_, err := d.Process(context.Background(), down)
	require.NoError(t, err)

	// A flip back within the debounce window is suppressed, but the reading
	// is still annotated with its derived state.
	flutter := newReading("r2", "cr1", 0.1, now.Add(500*time.Millisecond))
	require.NoError(t, readings.Insert(context.Background(), flutter))
	event, err := d.Process(context.Background(), flutter)
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.Len(t, store.Events, 1)
	assert.Equal(t, models.BarrierUp, flutter.BarrierStatus)
}

func TestProcessAnnotationFailureDoesNotBlockDetection(t *testing.T) {
	store := repotest.NewStore()
	readings := repotest.ReadingRepo{Store: store}
	events := repotest.StateEventRepo{Store: store}
	d := New(readings, events, 2*time.Second)

	// Reading never inserted: SetBarrierStatus returns not-found, which
	// must only be logged.
	reading := newReading("r1", "cr1", 23.5, time.Now())
	event, err := d.Process(context.Background(), reading)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.BarrierDown, event.State)
}

func TestProcessEventStoreFailure(t *testing.T) {
	store := repotest.NewStore()
	readings := repotest.ReadingRepo{Store: store}
	events := repotest.StateEventRepo{Store: store}
	d := New(readings, events, 2*time.Second)

	reading := newReading("r1", "cr1", 23.5, time.Now())
	require.NoError(t, readings.Insert(context.Background(), reading))

	store.FailNext = assert.AnError
	_, err := d.Process(context.Background(), reading)
	assert.Error(t, err)
}
