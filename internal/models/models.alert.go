// FilePath: internal/models/models.alert.go
package models

import "time"

// AlertType identifies the condition an alert reports.
type AlertType string

const (
	AlertLowBattery      AlertType = "LOW_BATTERY"
	AlertVoltageCritical AlertType = "VOLTAGE_CRITICAL"
	AlertCabinetOpen     AlertType = "CABINET_OPEN"
	AlertCommunication   AlertType = "COMMUNICATION_LOST"
	AlertMaintenanceDue  AlertType = "MAINTENANCE_DUE"
)

// AlertSeverity grades an alert.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "CRITICAL"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityInfo     AlertSeverity = "INFO"
)

// NotificationLevel maps an alert severity onto the level used by the
// notifications room (error/warning/info).
func (s AlertSeverity) NotificationLevel() string {
	switch s {
	case SeverityCritical:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Alert is a raised condition for a crossing. At most one open alert exists
// per (crossing, type, triggering reading); resolution is an external
// mutation that sets Resolved/ResolvedAt.
type Alert struct {
	ID          string        `json:"id" db:"id"`
	CrossingID  string        `json:"crossing_id" db:"crossing_id"`
	ReadingID   *string       `json:"reading_id,omitempty" db:"reading_id"`
	Type        AlertType     `json:"type" db:"type"`
	Severity    AlertSeverity `json:"severity" db:"severity"`
	Description string        `json:"description" db:"description"`
	Resolved    bool          `json:"resolved" db:"resolved"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
