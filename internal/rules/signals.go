// FilePath: internal/rules/signals.go
package rules

import (
	"context"
	"time"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

const (
	// LowBatteryReference is the voltage below which a reading counts
	// towards the hours_low_battery aggregate.
	LowBatteryReference = 11.5

	// LowBatteryLookback bounds the hours_low_battery aggregate.
	LowBatteryLookback = 24 * time.Hour

	// NoMaintenanceSentinel is returned for days_since_maintenance when the
	// crossing has never had completed work. Large enough to trip any
	// overdue-maintenance rule.
	NoMaintenanceSentinel = 999
)

// signalEnv carries everything a resolver may need: the triggering reading
// plus store access for historical aggregates.
type signalEnv struct {
	engine  *Engine
	reading *models.Reading
	now     time.Time
}

// resolver returns the value of a named signal. ok=false means the signal is
// not present for this reading (nil sensor slot), in which case the condition
// is skipped rather than failed.
type resolver func(ctx context.Context, env *signalEnv) (value float64, ok bool, err error)

func fromField(get func(*models.Reading) float64) resolver {
	return func(ctx context.Context, env *signalEnv) (float64, bool, error) {
		return get(env.reading), true, nil
	}
}

func fromOptionalInt(n int) resolver {
	return func(ctx context.Context, env *signalEnv) (float64, bool, error) {
		v := env.reading.Sensor(n)
		if v == nil {
			return 0, false, nil
		}
		return float64(*v), true, nil
	}
}

// BatteryPercentage maps battery voltage onto a 0-100 scale where 10V is
// empty and 12V is full.
func BatteryPercentage(voltage float64) float64 {
	pct := ((voltage - 10.0) / 2.0) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

var signals = map[string]resolver{
	"battery_voltage": fromField(func(r *models.Reading) float64 { return r.BatteryVoltage }),
	"barrier_voltage": fromField(func(r *models.Reading) float64 { return r.BarrierVoltage }),
	"battery_percentage": fromField(func(r *models.Reading) float64 {
		return BatteryPercentage(r.BatteryVoltage)
	}),
	"sensor_1": fromOptionalInt(1),
	"sensor_2": fromOptionalInt(2),
	"sensor_3": fromOptionalInt(3),
	"sensor_4": fromOptionalInt(4),
	"signal_strength": func(ctx context.Context, env *signalEnv) (float64, bool, error) {
		if env.reading.SignalStrength == nil {
			return 0, false, nil
		}
		return float64(*env.reading.SignalStrength), true, nil
	},
	"temperature": func(ctx context.Context, env *signalEnv) (float64, bool, error) {
		if env.reading.Temperature == nil {
			return 0, false, nil
		}
		return *env.reading.Temperature, true, nil
	},
	"communication_lost_hours": func(ctx context.Context, env *signalEnv) (float64, bool, error) {
		latest, err := env.engine.readings.Latest(ctx, env.reading.CrossingID)
		if err != nil {
			if errors.IsNotFound(err) {
				return 0, false, nil
			}
			return 0, false, err
		}
		return env.now.Sub(latest.Timestamp).Hours(), true, nil
	},
	"hours_low_battery": func(ctx context.Context, env *signalEnv) (float64, bool, error) {
		since := env.now.Add(-LowBatteryLookback)
		count, err := env.engine.readings.CountLowBattery(ctx, env.reading.CrossingID, since, LowBatteryReference)
		if err != nil {
			return 0, false, err
		}
		// Each reading stands in for one reporting interval of low battery.
		return float64(count) * env.engine.readingInterval.Hours(), true, nil
	},
	"days_since_maintenance": func(ctx context.Context, env *signalEnv) (float64, bool, error) {
		last, err := env.engine.work.LastCompleted(ctx, env.reading.CrossingID)
		if err != nil {
			if errors.IsNotFound(err) {
				return NoMaintenanceSentinel, true, nil
			}
			return 0, false, err
		}
		days := int(env.now.Sub(*last.CompletedAt).Hours() / 24)
		return float64(days), true, nil
	},
}
