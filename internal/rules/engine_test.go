// FilePath: internal/rules/engine_test.go
package rules

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

func strPtr(v string) *string { return &v }

type fixture struct {
	store  *repotest.Store
	engine *Engine
}

func newFixture(now time.Time) *fixture {
	store := repotest.NewStore()
	e := New(
		repotest.CrossingRepo{Store: store},
		repotest.ReadingRepo{Store: store},
		repotest.RuleRepo{Store: store},
		repotest.WorkRepo{Store: store},
		repotest.AlertRepo{Store: store},
		5*time.Minute,
	)
	e.now = func() time.Time { return now }
	return &fixture{store: store, engine: e}
}

func lowBatteryRule() *models.MaintenanceRule {
	return &models.MaintenanceRule{
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
			LeadTimeDays:  3,
			RaiseAlert:    true,
			AlertType:     models.AlertLowBattery,
			AlertSeverity: models.SeverityWarning,
		},
		Active: true,
	}
}

func reading(id, crossingID string, battery float64, at time.Time) *models.Reading {
	return &models.Reading{
		ID:             id,
		CrossingID:     crossingID,
		Timestamp:      at,
		BatteryVoltage: battery,
		BarrierVoltage: 23.8,
	}
}

func TestEvaluateReadingFiresAndSchedulesWork(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(now)
	f.store.Rules = append(f.store.Rules, lowBatteryRule())

	r := reading("r1", "cr1", 11.0, now)
	require.NoError(t, repotest.ReadingRepo{Store: f.store}.Insert(context.Background(), r))

	result, err := f.engine.EvaluateReading(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, result.Work, 1)

	work := result.Work[0]
	assert.Equal(t, models.MaintenanceBattery, work.Kind)
	assert.Equal(t, models.PriorityHigh, work.Priority)
	assert.Equal(t, models.WorkPending, work.Status)
	require.NotNil(t, work.RuleID)
	assert.Equal(t, "rule-battery", *work.RuleID)
	assert.Equal(t, now.AddDate(0, 0, 3), work.ScheduledAt)
	assert.Contains(t, work.Description, "Battery voltage: 11.00V")
	assert.Equal(t, 11.0, work.MetricsBefore["battery_voltage"])

	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertLowBattery, result.Alerts[0].Type)
	assert.Equal(t, models.SeverityWarning, result.Alerts[0].Severity)
	assert.Equal(t, now, work.CreatedAt)
	assert.Equal(t, now, result.Alerts[0].CreatedAt)
}

func TestEvaluateReadingVoltageCriticalRule(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(now)
	f.store.Rules = append(f.store.Rules, &models.MaintenanceRule{
		ID:       "rule-voltage",
		Name:     "Barrier voltage degraded",
		Kind:     models.MaintenanceBarrier,
		Priority: models.PriorityUrgent,
		Conditions: models.ConditionSet{
			Signals: map[string]models.Condition{
				"barrier_voltage": {Operator: models.OpLt, Value: 20.0},
			},
		},
		Actions: models.RuleActions{
			LeadTimeDays:  1,
			RaiseAlert:    true,
			AlertType:     models.AlertVoltageCritical,
			AlertSeverity: models.SeverityCritical,
		},
		Active: true,
	})

	r := reading("r1", "cr1", 12.6, now)
	r.BarrierVoltage = 17.4
	result, err := f.engine.EvaluateReading(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, result.Work, 1)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertVoltageCritical, result.Alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, result.Alerts[0].Severity)
}

func TestEvaluateReadingConditionNotMet(t *testing.T) {
	now := time.Now()
	f := newFixture(now)
	f.store.Rules = append(f.store.Rules, lowBatteryRule())

	r := reading("r1", "cr1", 12.6, now)
	result, err := f.engine.EvaluateReading(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, result.Work)
	assert.Empty(t, result.Alerts)
}

func TestEvaluateReadingOpenWorkBlocksDuplicate(t *testing.T) {
	now := time.Now()
	f := newFixture(now)
	f.store.Rules = append(f.store.Rules, lowBatteryRule())

	r := reading("r1", "cr1", 11.0, now)
	first, err := f.engine.EvaluateReading(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, first.Work, 1)

	second, err := f.engine.EvaluateReading(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, second.Work)
	assert.Len(t, f.store.Work, 1)

	// Completing the work re-arms the rule.
	completedAt := now
	f.store.Work[0].Status = models.WorkCompleted
	f.store.Work[0].CompletedAt = &completedAt

	third, err := f.engine.EvaluateReading(context.Background(), r)
	require.NoError(t, err)
	assert.Len(t, third.Work, 1)
}

func TestEvaluateReadingGlobalAndScopedRules(t *testing.T) {
	now := time.Now()
	f := newFixture(now)

	scoped := lowBatteryRule()
	scoped.ID = "rule-scoped"
	scoped.CrossingID = strPtr("cr-other")
	f.store.Rules = append(f.store.Rules, lowBatteryRule(), scoped)

	r := reading("r1", "cr1", 11.0, now)
	result, err := f.engine.EvaluateReading(context.Background(), r)
	require.NoError(t, err)
	// Only the global rule applies to cr1.
	assert.Len(t, result.Work, 1)
}

func TestEvaluateReadingInactiveRuleIgnored(t *testing.T) {
	now := time.Now()
	f := newFixture(now)
	rule := lowBatteryRule()
	rule.Active = false
	f.store.Rules = append(f.store.Rules, rule)

	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, now))
	require.NoError(t, err)
	assert.Empty(t, result.Work)
}

func TestEvaluateReadingEmptyConditionsNeverFire(t *testing.T) {
	now := time.Now()
	f := newFixture(now)
	rule := lowBatteryRule()
	rule.Conditions = models.ConditionSet{}
	f.store.Rules = append(f.store.Rules, rule)

	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, now))
	require.NoError(t, err)
	assert.Empty(t, result.Work)
}

func TestEvaluateReadingMonthScope(t *testing.T) {
	january := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	f := newFixture(january)

	rule := lowBatteryRule()
	rule.Conditions.Months = []int{6, 7, 8}
	f.store.Rules = append(f.store.Rules, rule)

	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, january))
	require.NoError(t, err)
	assert.Empty(t, result.Work)

	july := time.Date(2026, 7, 15, 10, 0, 0, 0, time.UTC)
	f.engine.now = func() time.Time { return july }
	result, err = f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, july))
	require.NoError(t, err)
	assert.Len(t, result.Work, 1)
}

func TestEvaluateReadingWeekdayScope(t *testing.T) {
	// 2026-03-10 is a Tuesday.
	tuesday := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	f := newFixture(tuesday)

	rule := lowBatteryRule()
	rule.Weekdays = models.Weekdays{0, 6} // Sunday, Saturday
	f.store.Rules = append(f.store.Rules, rule)

	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, tuesday))
	require.NoError(t, err)
	assert.Empty(t, result.Work)

	// 2026-03-15 is a Sunday.
	sunday := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	f.engine.now = func() time.Time { return sunday }
	result, err = f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, sunday))
	require.NoError(t, err)
	assert.Len(t, result.Work, 1)
}

func TestEvaluateReadingAbsentSignalSkipsCondition(t *testing.T) {
	now := time.Now()
	f := newFixture(now)

	rule := lowBatteryRule()
	rule.Conditions.Signals["sensor_2"] = models.Condition{Operator: models.OpGt, Value: 100}
	f.store.Rules = append(f.store.Rules, rule)

	// sensor_2 nil: the condition is skipped, the battery condition decides.
	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, now))
	require.NoError(t, err)
	assert.Len(t, result.Work, 1)
}

func TestEvaluateReadingDerivedSignals(t *testing.T) {
	now := time.Now()
	f := newFixture(now)

	rule := lowBatteryRule()
	rule.Conditions.Signals = map[string]models.Condition{
		"battery_percentage": {Operator: models.OpLt, Value: 55},
	}
	f.store.Rules = append(f.store.Rules, rule)

	// 11.0V -> 50%
	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, now))
	require.NoError(t, err)
	assert.Len(t, result.Work, 1)
}

func TestEvaluateReadingHoursLowBattery(t *testing.T) {
	now := time.Now()
	f := newFixture(now)
	readings := repotest.ReadingRepo{Store: f.store}

	// 24 readings below 11.5V over the last two hours -> 2.0 accumulated hours.
	for i := 0; i < 24; i++ {
		r := reading("", "cr1", 11.2, now.Add(-time.Duration(i)*5*time.Minute))
		r.ID = nowID(i)
		require.NoError(t, readings.Insert(context.Background(), r))
	}

	rule := lowBatteryRule()
	rule.Conditions.Signals = map[string]models.Condition{
		"hours_low_battery": {Operator: models.OpGt, Value: 1.9},
	}
	f.store.Rules = append(f.store.Rules, rule)

	result, err := f.engine.EvaluateReading(context.Background(), reading("r-now", "cr1", 11.2, now))
	require.NoError(t, err)
	assert.Len(t, result.Work, 1)
}

func nowID(i int) string {
	return "r-" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
}

func TestEvaluateReadingDaysSinceMaintenanceSentinel(t *testing.T) {
	now := time.Now()
	f := newFixture(now)

	rule := lowBatteryRule()
	rule.Conditions.Signals = map[string]models.Condition{
		"days_since_maintenance": {Operator: models.OpGt, Value: 180},
	}
	f.store.Rules = append(f.store.Rules, rule)

	// No completed work: sentinel 999 trips the rule.
	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 12.6, now))
	require.NoError(t, err)
	require.Len(t, result.Work, 1)

	// Recent completed maintenance re-arms below the threshold.
	store2 := newFixture(now)
	store2.store.Rules = append(store2.store.Rules, rule)
	completed := now.Add(-10 * 24 * time.Hour)
	store2.store.Work = append(store2.store.Work, &models.MaintenanceWork{
		ID:          "w-done",
		CrossingID:  "cr1",
		Status:      models.WorkCompleted,
		CompletedAt: &completed,
	})
	result, err = store2.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 12.6, now))
	require.NoError(t, err)
	assert.Empty(t, result.Work)
}

func TestEvaluateReadingBetweenOperator(t *testing.T) {
	now := time.Now()
	f := newFixture(now)

	rule := lowBatteryRule()
	rule.Actions.RaiseAlert = false
	rule.Conditions.Signals = map[string]models.Condition{
		"battery_voltage": {Operator: models.OpBetween, Low: 10.5, High: 11.5},
	}
	f.store.Rules = append(f.store.Rules, rule)

	result, err := f.engine.EvaluateReading(context.Background(), reading("r1", "cr1", 11.0, now))
	require.NoError(t, err)
	require.Len(t, result.Work, 1)
	assert.Empty(t, result.Alerts)
}

func TestEvaluateDueSchedulesForActiveCrossings(t *testing.T) {
	// July Sunday inside the rule window.
	now := time.Date(2026, 7, 12, 9, 0, 0, 0, time.UTC)
	f := newFixture(now)

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rule := lowBatteryRule()
	rule.ID = "rule-seasonal"
	rule.Kind = models.MaintenanceSeasonal
	rule.StartDate = &start
	rule.EndDate = &end
	rule.Conditions = models.ConditionSet{Months: []int{6, 7, 8}}
	rule.Actions = models.RuleActions{LeadTimeDays: 0, RaiseAlert: false}
	f.store.Rules = append(f.store.Rules, rule)

	f.store.Crossings["cr1"] = &models.Crossing{ID: "cr1", Name: "North", Status: models.CrossingActive}
	f.store.Crossings["cr2"] = &models.Crossing{ID: "cr2", Name: "South", Status: models.CrossingInactive}
	f.store.Crossings["cr3"] = &models.Crossing{ID: "cr3", Name: "East", Status: models.CrossingActive}

	readings := repotest.ReadingRepo{Store: f.store}
	require.NoError(t, readings.Insert(context.Background(), reading("r1", "cr1", 12.6, now)))
	// cr3 has no readings and is skipped.

	result, err := f.engine.EvaluateDue(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Work, 1)
	assert.Equal(t, "cr1", result.Work[0].CrossingID)

	// The same day never schedules twice, even after the first work order
	// completes.
	completedAt := now
	f.store.Work[0].Status = models.WorkCompleted
	f.store.Work[0].CompletedAt = &completedAt

	again, err := f.engine.EvaluateDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Work)
}

func TestEvaluateDueOutsideWindow(t *testing.T) {
	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	f := newFixture(now)

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rule := lowBatteryRule()
	rule.StartDate = &start
	f.store.Rules = append(f.store.Rules, rule)

	f.store.Crossings["cr1"] = &models.Crossing{ID: "cr1", Status: models.CrossingActive}
	readings := repotest.ReadingRepo{Store: f.store}
	require.NoError(t, readings.Insert(context.Background(), reading("r1", "cr1", 11.0, now)))

	result, err := f.engine.EvaluateDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Work)
}

func TestBatteryPercentage(t *testing.T) {
	assert.Equal(t, 0.0, BatteryPercentage(9.5))
	assert.Equal(t, 0.0, BatteryPercentage(10.0))
	assert.Equal(t, 50.0, BatteryPercentage(11.0))
	assert.Equal(t, 100.0, BatteryPercentage(12.0))
	assert.Equal(t, 100.0, BatteryPercentage(13.2))
}
