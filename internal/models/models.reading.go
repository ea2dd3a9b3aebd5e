// FilePath: internal/models/models.reading.go
package models

import "time"

// BarrierState is the physical barrier position derived from barrier voltage.
type BarrierState string

const (
	BarrierUp   BarrierState = "UP"
	BarrierDown BarrierState = "DOWN"
)

// Reading is one telemetry sample from a crossing's controller. Immutable
// once persisted, except for BarrierStatus which the state detector writes
// exactly once after ingest.
type Reading struct {
	ID             string       `json:"id" db:"id"`
	CrossingID     string       `json:"crossing_id" db:"crossing_id"`
	Timestamp      time.Time    `json:"timestamp" db:"timestamp"`
	BarrierVoltage float64      `json:"barrier_voltage" db:"barrier_voltage"`
	BatteryVoltage float64      `json:"battery_voltage" db:"battery_voltage"`
	Sensor1        *int         `json:"sensor_1,omitempty" db:"sensor_1"`
	Sensor2        *int         `json:"sensor_2,omitempty" db:"sensor_2"`
	Sensor3        *int         `json:"sensor_3,omitempty" db:"sensor_3"`
	Sensor4        *int         `json:"sensor_4,omitempty" db:"sensor_4"`
	SignalStrength *int         `json:"signal_strength,omitempty" db:"signal_strength"`
	Temperature    *float64     `json:"temperature,omitempty" db:"temperature"`
	BarrierStatus  BarrierState `json:"barrier_status" db:"barrier_status"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// Sensor returns the n-th auxiliary sensor slot (1-based), or nil when the
// slot is out of range or was not reported.
func (r *Reading) Sensor(n int) *int {
	switch n {
	case 1:
		return r.Sensor1
	case 2:
		return r.Sensor2
	case 3:
		return r.Sensor3
	case 4:
		return r.Sensor4
	}
	return nil
}

// StateEvent records one barrier-state transition. Append-only, ordered by
// EventTime per crossing.
type StateEvent struct {
	ID             string       `json:"id" db:"id"`
	CrossingID     string       `json:"crossing_id" db:"crossing_id"`
	ReadingID      string       `json:"reading_id" db:"reading_id"`
	State          BarrierState `json:"state" db:"state"`
	EventTime      time.Time    `json:"event_time" db:"event_time"`
	VoltageAtEvent float64      `json:"voltage_at_event" db:"voltage_at_event"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}
