// FilePath: internal/models/models.maintenance.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MaintenanceKind classifies what a rule or work order covers.
type MaintenanceKind string

const (
	MaintenanceInspection MaintenanceKind = "INSPECTION"
	MaintenanceBattery    MaintenanceKind = "BATTERY"
	MaintenanceBarrier    MaintenanceKind = "BARRIER"
	MaintenanceSeasonal   MaintenanceKind = "SEASONAL"
	MaintenanceCorrective MaintenanceKind = "CORRECTIVE"
)

// MaintenancePriority orders scheduled work.
type MaintenancePriority string

const (
	PriorityLow    MaintenancePriority = "LOW"
	PriorityMedium MaintenancePriority = "MEDIUM"
	PriorityHigh   MaintenancePriority = "HIGH"
	PriorityUrgent MaintenancePriority = "URGENT"
)

// WorkStatus is the lifecycle of a maintenance work order.
type WorkStatus string

const (
	WorkPending    WorkStatus = "PENDING"
	WorkInProgress WorkStatus = "IN_PROGRESS"
	WorkCompleted  WorkStatus = "COMPLETED"
	WorkCancelled  WorkStatus = "CANCELLED"
)

// CompareOp is a rule condition operator.
type CompareOp string

const (
	OpLt      CompareOp = "lt"
	OpLe      CompareOp = "le"
	OpGt      CompareOp = "gt"
	OpGe      CompareOp = "ge"
	OpEq      CompareOp = "eq"
	OpNe      CompareOp = "ne"
	OpBetween CompareOp = "between"
)

// Condition is one predicate over a named signal. The wire form is either a
// bare number (shorthand for {"operator":"lt","value":n}) or an object with
// an operator and a scalar value, or a two-element array for "between".
type Condition struct {
	Operator CompareOp
	Value    float64
	Low      float64
	High     float64
}

// Holds evaluates the condition against a resolved signal value.
func (c Condition) Holds(v float64) (bool, error) {
	switch c.Operator {
	case OpLt:
		return v < c.Value, nil
	case OpLe:
		return v <= c.Value, nil
	case OpGt:
		return v > c.Value, nil
	case OpGe:
		return v >= c.Value, nil
	case OpEq:
		return v == c.Value, nil
	case OpNe:
		return v != c.Value, nil
	case OpBetween:
		return c.Low <= v && v <= c.High, nil
	}
	return false, fmt.Errorf("unknown condition operator %q", c.Operator)
}

type conditionJSON struct {
	Operator CompareOp       `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// UnmarshalJSON accepts the bare-number shorthand and the object form.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var bare float64
	if err := json.Unmarshal(data, &bare); err == nil {
		*c = Condition{Operator: OpLt, Value: bare}
		return nil
	}

	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	if raw.Operator == "" {
		raw.Operator = OpLt
	}
	if raw.Value == nil {
		return fmt.Errorf("condition %q has no value", raw.Operator)
	}

	if raw.Operator == OpBetween {
		var bounds []float64
		if err := json.Unmarshal(raw.Value, &bounds); err != nil || len(bounds) != 2 {
			return fmt.Errorf("between condition requires a two-element array")
		}
		*c = Condition{Operator: OpBetween, Low: bounds[0], High: bounds[1]}
		return nil
	}

	var value float64
	if err := json.Unmarshal(raw.Value, &value); err != nil {
		return fmt.Errorf("condition %q has a non-numeric value", raw.Operator)
	}
	*c = Condition{Operator: raw.Operator, Value: value}
	return nil
}

// MarshalJSON writes the object form.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Operator == OpBetween {
		return json.Marshal(map[string]any{
			"operator": c.Operator,
			"value":    []float64{c.Low, c.High},
		})
	}
	return json.Marshal(map[string]any{
		"operator": c.Operator,
		"value":    c.Value,
	})
}

// ConditionSet is a rule's predicates keyed by signal name, plus the special
// "month" key which matches the current calendar month against a list.
type ConditionSet struct {
	Signals map[string]Condition
	Months  []int
}

// Empty reports whether the set has neither signal predicates nor months.
func (cs ConditionSet) Empty() bool {
	return len(cs.Signals) == 0 && len(cs.Months) == 0
}

// UnmarshalJSON splits the "month" key off from the signal predicates.
func (cs *ConditionSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid condition set: %w", err)
	}

	cs.Signals = make(map[string]Condition, len(raw))
	cs.Months = nil

	for key, val := range raw {
		if key == "month" {
			var months []int
			if err := json.Unmarshal(val, &months); err != nil {
				var single int
				if err := json.Unmarshal(val, &single); err != nil {
					return fmt.Errorf("month condition requires an int or int list")
				}
				months = []int{single}
			}
			cs.Months = months
			continue
		}
		var cond Condition
		if err := json.Unmarshal(val, &cond); err != nil {
			return fmt.Errorf("condition %q: %w", key, err)
		}
		cs.Signals[key] = cond
	}
	return nil
}

// MarshalJSON reassembles the single JSON object form.
func (cs ConditionSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(cs.Signals)+1)
	for key, cond := range cs.Signals {
		out[key] = cond
	}
	if len(cs.Months) > 0 {
		out["month"] = cs.Months
	}
	return json.Marshal(out)
}

// Value implements driver.Valuer for JSONB storage.
func (cs ConditionSet) Value() (driver.Value, error) {
	return json.Marshal(cs)
}

// Scan implements sql.Scanner for JSONB storage.
func (cs *ConditionSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*cs = ConditionSet{}
		return nil
	case []byte:
		return json.Unmarshal(v, cs)
	case string:
		return json.Unmarshal([]byte(v), cs)
	}
	return fmt.Errorf("cannot scan %T into ConditionSet", src)
}

// RuleActions configures what happens when a rule fires.
type RuleActions struct {
	LeadTimeDays  int           `json:"lead_time_days"`
	RaiseAlert    bool          `json:"raise_alert"`
	AlertType     AlertType     `json:"alert_type,omitempty"`
	AlertSeverity AlertSeverity `json:"alert_severity,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (a RuleActions) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB storage.
func (a *RuleActions) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = RuleActions{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return fmt.Errorf("cannot scan %T into RuleActions", src)
}

// Weekdays is a set of allowed weekdays (0=Sunday), stored as JSONB.
type Weekdays []int

// Contains reports whether the given weekday is in the set.
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int(day) {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer for JSONB storage.
func (w Weekdays) Value() (driver.Value, error) {
	if w == nil {
		return json.Marshal([]int{})
	}
	return json.Marshal([]int(w))
}

// Scan implements sql.Scanner for JSONB storage.
func (w *Weekdays) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*w = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]int)(w))
	case string:
		return json.Unmarshal([]byte(v), (*[]int)(w))
	}
	return fmt.Errorf("cannot scan %T into Weekdays", src)
}

// Metrics is a free-form snapshot of crossing telemetry, stored as JSONB.
type Metrics map[string]any

// Value implements driver.Valuer for JSONB storage.
func (m Metrics) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(map[string]any(m))
}

// Scan implements sql.Scanner for JSONB storage.
func (m *Metrics) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*map[string]any)(m))
	case string:
		return json.Unmarshal([]byte(v), (*map[string]any)(m))
	}
	return fmt.Errorf("cannot scan %T into Metrics", src)
}

// MaintenanceRule is a configurable preventive-maintenance trigger. Rules are
// edited by operators and read-only to the engine at evaluation time.
type MaintenanceRule struct {
	ID         string              `json:"id" db:"id"`
	Name       string              `json:"name" db:"name"`
	Kind       MaintenanceKind     `json:"kind" db:"kind"`
	Priority   MaintenancePriority `json:"priority" db:"priority"`
	Conditions ConditionSet        `json:"conditions" db:"conditions"`
	Actions    RuleActions         `json:"actions" db:"actions"`
	StartDate  *time.Time          `json:"start_date,omitempty" db:"start_date"`
	EndDate    *time.Time          `json:"end_date,omitempty" db:"end_date"`
	Weekdays   Weekdays            `json:"weekdays,omitempty" db:"weekdays"`
	CrossingID *string             `json:"crossing_id,omitempty" db:"crossing_id"` // nil = global
	Active     bool                `json:"active" db:"active"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" db:"updated_at"`
}

// InWindow reports whether the rule's validity window (date range plus
// allowed weekdays) includes the given instant.
func (r *MaintenanceRule) InWindow(now time.Time) bool {
	day := now.Truncate(24 * time.Hour)
	if r.StartDate != nil && day.Before(r.StartDate.Truncate(24*time.Hour)) {
		return false
	}
	if r.EndDate != nil && day.After(r.EndDate.Truncate(24*time.Hour)) {
		return false
	}
	if len(r.Weekdays) > 0 && !r.Weekdays.Contains(now.Weekday()) {
		return false
	}
	return true
}

// MaintenanceWork is a scheduled or corrective work order. The engine's
// idempotence guard allows at most one PENDING or IN_PROGRESS order per
// (crossing, rule).
type MaintenanceWork struct {
	ID            string              `json:"id" db:"id"`
	CrossingID    string              `json:"crossing_id" db:"crossing_id"`
	RuleID        *string             `json:"rule_id,omitempty" db:"rule_id"` // nil for corrective work
	Kind          MaintenanceKind     `json:"kind" db:"kind"`
	Priority      MaintenancePriority `json:"priority" db:"priority"`
	Description   string              `json:"description" db:"description"`
	Status        WorkStatus          `json:"status" db:"status"`
	ScheduledAt   time.Time           `json:"scheduled_at" db:"scheduled_at"`
	StartedAt     *time.Time          `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty" db:"completed_at"`
	MetricsBefore Metrics             `json:"metrics_before,omitempty" db:"metrics_before"`
	MetricsAfter  Metrics             `json:"metrics_after,omitempty" db:"metrics_after"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}
