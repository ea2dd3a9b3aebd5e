// FilePath: internal/alerting/engine.go

// Package alerting converts raw readings into idempotent threshold alerts.
package alerting

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/models"
	"github.com/vialibre/crosshub/internal/repository"
)

// Threshold constants for the fixed checks. Voltage degradation alerts are
// rule-driven and live in the maintenance engine; these are the hardwired
// safety floor.
const (
	LowBatteryVoltage  = 11.0
	CabinetSensorLimit = 500
)

// Engine runs the threshold checks against each reading. Checks are
// independent: a failed store call for one check is logged and the rest
// still run.
type Engine struct {
	alerts repository.AlertRepository
}

func New(alerts repository.AlertRepository) *Engine {
	return &Engine{alerts: alerts}
}

type check struct {
	alertType   models.AlertType
	severity    models.AlertSeverity
	matches     func(*models.Reading) bool
	description func(*models.Reading) string
}

var checks = []check{
	{
		alertType: models.AlertLowBattery,
		severity:  models.SeverityCritical,
		matches:   func(r *models.Reading) bool { return r.BatteryVoltage < LowBatteryVoltage },
		description: func(r *models.Reading) string {
			return fmt.Sprintf("Battery voltage %.2fV below %.1fV", r.BatteryVoltage, LowBatteryVoltage)
		},
	},
	{
		alertType: models.AlertCabinetOpen,
		severity:  models.SeverityWarning,
		matches: func(r *models.Reading) bool {
			return r.Sensor1 != nil && *r.Sensor1 > CabinetSensorLimit
		},
		description: func(r *models.Reading) string {
			return fmt.Sprintf("Cabinet sensor reads %d (limit %d)", *r.Sensor1, CabinetSensorLimit)
		},
	},
}

// Evaluate runs every threshold check and returns the alerts that were
// newly created. Alerts already present for the same (crossing, type,
// reading) key are skipped by the store-level guard, so re-evaluating a
// reading is safe.
func (e *Engine) Evaluate(ctx context.Context, reading *models.Reading) ([]*models.Alert, error) {
	var created []*models.Alert
	var firstErr error

	for _, c := range checks {
		if !c.matches(reading) {
			continue
		}

		readingID := reading.ID
		alert := &models.Alert{
			ID:          nuts.NID("al", 12),
			CrossingID:  reading.CrossingID,
			ReadingID:   &readingID,
			Type:        c.alertType,
			Severity:    c.severity,
			Description: c.description(reading),
			CreatedAt:   time.Now(),
		}

		ok, err := e.alerts.InsertIfAbsent(ctx, alert)
		if err != nil {
			nuts.L.Errorf("[AlertEngine] Failed to store %s alert for crossing %s: %v", c.alertType, reading.CrossingID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}

		nuts.L.Infof("[AlertEngine] %s %s alert for crossing %s (reading %s)", alert.Severity, alert.Type, alert.CrossingID, reading.ID)
		created = append(created, alert)
	}

	return created, firstErr
}
