// FilePath: internal/models/models.crossing.go
package models

import "time"

// CrossingStatus describes the operational lifecycle of a crossing installation.
type CrossingStatus string

const (
	CrossingActive      CrossingStatus = "ACTIVE"
	CrossingInactive    CrossingStatus = "INACTIVE"
	CrossingMaintenance CrossingStatus = "MAINTENANCE"
)

// Crossing is a monitored level-crossing installation, the tenant unit for
// all readings, events and alerts.
type Crossing struct {
	ID           string         `json:"id" db:"id"`
	Name         string         `json:"name" db:"name"`
	Description  string         `json:"description" db:"description"`
	Location     string         `json:"location" db:"location"`
	Latitude     float64        `json:"latitude" db:"latitude"`
	Longitude    float64        `json:"longitude" db:"longitude"`
	Status       CrossingStatus `json:"status" db:"status"`
	Timezone     string         `json:"timezone" db:"timezone"`
	DeviceSerial string         `json:"device_serial" db:"device_serial" readxs:"system,admin,maintenance" writexs:"system,admin"`
	DeviceKey    string         `json:"device_key" db:"device_key" readxs:"system,admin" writexs:"system,admin"`
	LastSeen     time.Time      `json:"last_seen" db:"last_seen"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Operator is an authenticated principal allowed to open socket connections.
type Operator struct {
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	Email    string `json:"email" db:"email"`
	Role     string `json:"role" db:"role"`
	Active   bool   `json:"active" db:"active"`
}
