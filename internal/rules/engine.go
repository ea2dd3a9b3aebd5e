// FilePath: internal/rules/engine.go

// Package rules evaluates configurable preventive-maintenance rules against
// telemetry and schedules the resulting work orders.
package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository"
)

// Result collects what an evaluation newly created.
type Result struct {
	Work   []*models.MaintenanceWork
	Alerts []*models.Alert
}

// Engine evaluates maintenance rules. It keeps no rule cache: every
// evaluation reads a fresh snapshot from the rule store, so rule edits take
// effect on the next reading.
type Engine struct {
	crossings       repository.CrossingRepository
	readings        repository.ReadingRepository
	rules           repository.RuleRepository
	work            repository.WorkRepository
	alerts          repository.AlertRepository
	readingInterval time.Duration

	now func() time.Time
}

func New(
	crossings repository.CrossingRepository,
	readings repository.ReadingRepository,
	rules repository.RuleRepository,
	work repository.WorkRepository,
	alerts repository.AlertRepository,
	readingInterval time.Duration,
) *Engine {
	return &Engine{
		crossings:       crossings,
		readings:        readings,
		rules:           rules,
		work:            work,
		alerts:          alerts,
		readingInterval: readingInterval,
		now:             time.Now,
	}
}

// EvaluateReading runs every active rule applicable to the reading's
// crossing. A rule that errors is logged and skipped; the remaining rules
// still run.
func (e *Engine) EvaluateReading(ctx context.Context, reading *models.Reading) (*Result, error) {
	applicable, err := e.rules.ActiveForCrossing(ctx, reading.CrossingID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, rule := range applicable {
		fired, err := e.matches(ctx, rule, reading)
		if err != nil {
			nuts.L.Errorf("[RuleEngine] Failed to evaluate rule %s (%s): %v", rule.ID, rule.Name, err)
			continue
		}
		if !fired {
			continue
		}
		work, alert, err := e.apply(ctx, rule, reading)
		if err != nil {
			nuts.L.Errorf("[RuleEngine] Failed to apply rule %s (%s): %v", rule.ID, rule.Name, err)
			continue
		}
		if work != nil {
			result.Work = append(result.Work, work)
		}
		if alert != nil {
			result.Alerts = append(result.Alerts, alert)
		}
	}
	return result, nil
}

// EvaluateDue re-evaluates date-scoped rules independent of ingestion, so
// seasonal rules fire for crossings that stopped reporting. Intended to run
// on a timer.
func (e *Engine) EvaluateDue(ctx context.Context) (*Result, error) {
	dated, err := e.rules.ActiveDateScoped(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, rule := range dated {
		if !rule.InWindow(e.now()) {
			continue
		}

		targets, err := e.ruleTargets(ctx, rule)
		if err != nil {
			nuts.L.Errorf("[RuleEngine] Failed to resolve crossings for rule %s: %v", rule.ID, err)
			continue
		}

		for _, crossing := range targets {
			scheduled, err := e.work.ExistsScheduledOn(ctx, crossing.ID, rule.ID, e.now())
			if err != nil {
				nuts.L.Errorf("[RuleEngine] Failed to check scheduled work for crossing %s: %v", crossing.ID, err)
				continue
			}
			if scheduled {
				continue
			}

			latest, err := e.readings.Latest(ctx, crossing.ID)
			if err != nil {
				if !errors.IsNotFound(err) {
					nuts.L.Errorf("[RuleEngine] Failed to load latest reading for crossing %s: %v", crossing.ID, err)
				}
				continue
			}

			fired, err := e.matches(ctx, rule, latest)
			if err != nil {
				nuts.L.Errorf("[RuleEngine] Failed to evaluate rule %s for crossing %s: %v", rule.ID, crossing.ID, err)
				continue
			}
			if !fired {
				continue
			}

			work, alert, err := e.apply(ctx, rule, latest)
			if err != nil {
				nuts.L.Errorf("[RuleEngine] Failed to apply rule %s for crossing %s: %v", rule.ID, crossing.ID, err)
				continue
			}
			if work != nil {
				result.Work = append(result.Work, work)
			}
			if alert != nil {
				result.Alerts = append(result.Alerts, alert)
			}
		}
	}
	return result, nil
}

func (e *Engine) ruleTargets(ctx context.Context, rule *models.MaintenanceRule) ([]*models.Crossing, error) {
	if rule.CrossingID != nil {
		crossing, err := e.crossings.Get(ctx, *rule.CrossingID)
		if err != nil {
			return nil, err
		}
		return []*models.Crossing{crossing}, nil
	}
	return e.crossings.ListActive(ctx)
}

// matches reports whether every present condition of the rule holds for the
// reading. Conditions over absent signals are skipped. A rule with no
// conditions never fires.
func (e *Engine) matches(ctx context.Context, rule *models.MaintenanceRule, reading *models.Reading) (bool, error) {
	if rule.Conditions.Empty() {
		return false, nil
	}

	now := e.now()
	if !rule.InWindow(now) {
		return false, nil
	}

	if len(rule.Conditions.Months) > 0 {
		month := int(now.Month())
		found := false
		for _, m := range rule.Conditions.Months {
			if m == month {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	env := &signalEnv{engine: e, reading: reading, now: now}
	for name, cond := range rule.Conditions.Signals {
		resolve, known := signals[name]
		if !known {
			nuts.L.Warnf("[RuleEngine] Rule %s references unknown signal %q", rule.ID, name)
			continue
		}
		value, ok, err := resolve(ctx, env)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		holds, err := cond.Holds(value)
		if err != nil {
			return false, err
		}
		if !holds {
			return false, nil
		}
	}
	return true, nil
}

// apply schedules the rule's work order and, when configured, raises the
// companion alert. Returns (nil, nil, nil) when open work for the same
// (crossing, rule) already exists.
func (e *Engine) apply(ctx context.Context, rule *models.MaintenanceRule, reading *models.Reading) (*models.MaintenanceWork, *models.Alert, error) {
	now := e.now()
	scheduledAt := now.AddDate(0, 0, rule.Actions.LeadTimeDays)

	ruleID := rule.ID
	work := &models.MaintenanceWork{
		ID:            nuts.NID("mw", 12),
		CrossingID:    reading.CrossingID,
		RuleID:        &ruleID,
		Kind:          rule.Kind,
		Priority:      rule.Priority,
		Description:   e.describeWork(rule, reading),
		Status:        models.WorkPending,
		ScheduledAt:   scheduledAt,
		MetricsBefore: e.currentMetrics(ctx, reading.CrossingID),
		CreatedAt:     e.now(),
	}

	created, err := e.work.InsertIfAbsent(ctx, work)
	if err != nil {
		return nil, nil, err
	}
	if !created {
		return nil, nil, nil
	}

	nuts.L.Infof("[RuleEngine] Scheduled %s maintenance for crossing %s (rule %s, due %s)", work.Kind, work.CrossingID, rule.Name, scheduledAt.Format("2006-01-02"))

	if !rule.Actions.RaiseAlert {
		return work, nil, nil
	}

	alertType := rule.Actions.AlertType
	if alertType == "" {
		alertType = models.AlertMaintenanceDue
	}
	severity := rule.Actions.AlertSeverity
	if severity == "" {
		severity = models.SeverityWarning
	}

	readingID := reading.ID
	alert := &models.Alert{
		ID:          nuts.NID("al", 12),
		CrossingID:  reading.CrossingID,
		ReadingID:   &readingID,
		Type:        alertType,
		Severity:    severity,
		Description: fmt.Sprintf("Preventive maintenance scheduled: %s\n%s", rule.Name, work.Description),
		CreatedAt:   e.now(),
	}
	ok, err := e.alerts.InsertIfAbsent(ctx, alert)
	if err != nil {
		nuts.L.Errorf("[RuleEngine] Failed to raise alert for rule %s: %v", rule.ID, err)
		return work, nil, nil
	}
	if !ok {
		return work, nil, nil
	}
	return work, alert, nil
}

func (e *Engine) describeWork(rule *models.MaintenanceRule, reading *models.Reading) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Preventive maintenance: %s\n\nCurrent readings:\n", rule.Name)
	fmt.Fprintf(&b, "- Battery voltage: %.2fV\n", reading.BatteryVoltage)
	fmt.Fprintf(&b, "- Barrier voltage: %.2fV\n", reading.BarrierVoltage)
	if reading.SignalStrength != nil {
		fmt.Fprintf(&b, "- Signal strength: %d dBm\n", *reading.SignalStrength)
	}
	return b.String()
}

// currentMetrics snapshots the crossing's latest telemetry. Best-effort: an
// empty snapshot is acceptable on the work order.
func (e *Engine) currentMetrics(ctx context.Context, crossingID string) models.Metrics {
	latest, err := e.readings.Latest(ctx, crossingID)
	if err != nil {
		if !errors.IsNotFound(err) {
			nuts.L.Warnf("[RuleEngine] Failed to snapshot metrics for crossing %s: %v", crossingID, err)
		}
		return models.Metrics{}
	}
	m := models.Metrics{
		"battery_voltage": latest.BatteryVoltage,
		"barrier_voltage": latest.BarrierVoltage,
		"barrier_status":  string(latest.BarrierStatus),
		"timestamp":       latest.Timestamp.Format(time.RFC3339),
	}
	if latest.SignalStrength != nil {
		m["signal_strength"] = *latest.SignalStrength
	}
	if latest.Temperature != nil {
		m["temperature"] = *latest.Temperature
	}
	return m
}
