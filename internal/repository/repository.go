// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/vialibre/crosshub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// CrossingRepository defines the interface for crossing data operations
type CrossingRepository interface {
	Create(ctx context.Context, crossing *models.Crossing) error
	Get(ctx context.Context, id string) (*models.Crossing, error)
	Update(ctx context.Context, crossing *models.Crossing) error
	List(ctx context.Context, offset, limit int) ([]*models.Crossing, error)
	ListActive(ctx context.Context) ([]*models.Crossing, error)
	UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error
}

// ReadingRepository defines the interface for telemetry readings
type ReadingRepository interface {
	Insert(ctx context.Context, reading *models.Reading) error
	Get(ctx context.Context, id string) (*models.Reading, error)
	Latest(ctx context.Context, crossingID string) (*models.Reading, error)
	List(ctx context.Context, filters models.ReadingFilters) ([]*models.Reading, error)
	SetBarrierStatus(ctx context.Context, id string, state models.BarrierState) error
	CountLowBattery(ctx context.Context, crossingID string, since time.Time, maxVoltage float64) (int, error)
}

// StateEventRepository defines the interface for barrier-state transitions
type StateEventRepository interface {
	Latest(ctx context.Context, crossingID string) (*models.StateEvent, error)
	List(ctx context.Context, crossingID string, limit int) ([]*models.StateEvent, error)
	// InsertIfAbsent creates the event unless another event for the same
	// crossing exists within the debounce window before its event time.
	// Returns whether a row was created. Must be a single atomic statement.
	InsertIfAbsent(ctx context.Context, event *models.StateEvent, window time.Duration) (bool, error)
}

// AlertRepository defines the interface for alerts
type AlertRepository interface {
	// InsertIfAbsent creates the alert unless an open alert with the same
	// (crossing, type, reading) key exists. Returns whether a row was created.
	InsertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error)
	Get(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, filters models.AlertFilters) ([]*models.Alert, error)
	Resolve(ctx context.Context, id string, resolvedAt time.Time) (*models.Alert, error)
}

// RuleRepository defines read access to maintenance rules
type RuleRepository interface {
	// ActiveForCrossing returns active rules scoped to the crossing plus
	// active global rules.
	ActiveForCrossing(ctx context.Context, crossingID string) ([]*models.MaintenanceRule, error)
	// ActiveDateScoped returns active rules carrying a start date, the set
	// the scheduled sweep re-evaluates independent of ingestion.
	ActiveDateScoped(ctx context.Context) ([]*models.MaintenanceRule, error)
	Get(ctx context.Context, id string) (*models.MaintenanceRule, error)
}

// WorkRepository defines the interface for maintenance work orders
type WorkRepository interface {
	// InsertIfAbsent creates the work order unless PENDING or IN_PROGRESS
	// work already exists for the same (crossing, rule). Returns whether a
	// row was created. Must be a single atomic statement.
	InsertIfAbsent(ctx context.Context, work *models.MaintenanceWork) (bool, error)
	Get(ctx context.Context, id string) (*models.MaintenanceWork, error)
	FindOpen(ctx context.Context, crossingID, ruleID string) (*models.MaintenanceWork, error)
	LastCompleted(ctx context.Context, crossingID string) (*models.MaintenanceWork, error)
	ExistsScheduledOn(ctx context.Context, crossingID, ruleID string, day time.Time) (bool, error)
}

// OperatorRepository resolves socket-handshake principals
type OperatorRepository interface {
	Get(ctx context.Context, id string) (*models.Operator, error)
}
