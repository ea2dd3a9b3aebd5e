// FilePath: internal/hubservice/hubservice.crossing.go
package hubservice

import (
	"context"
	"time"

	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/broadcast"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

// CrossingService handles crossing-related business logic
type CrossingService interface {
	CreateCrossing(ctx context.Context, crossing *models.Crossing) error
	GetCrossing(ctx context.Context, id string) (*models.Crossing, error)
	UpdateCrossing(ctx context.Context, crossing *models.Crossing) error
	ListCrossings(ctx context.Context, offset, limit int) ([]*models.Crossing, error)
	GetCrossingStatus(ctx context.Context, id string) (*CrossingStatus, error)
}

// CrossingStatus combines a crossing with its latest telemetry.
type CrossingStatus struct {
	Crossing     *models.Crossing   `json:"crossing"`
	LastReading  *models.Reading    `json:"last_reading,omitempty"`
	BarrierState models.BarrierState `json:"barrier_state,omitempty"`
	OnlineStatus string             `json:"online_status"`
	OpenAlerts   int                `json:"open_alerts"`
}

// offlineAfter is how long a crossing may stay silent before its status
// reads offline.
const offlineAfter = 15 * time.Minute

// CreateCrossing creates a new crossing with validation and defaults
func (s *HubService) CreateCrossing(ctx context.Context, crossing *models.Crossing) error {
	if crossing.Name == "" {
		return errors.NewValidationError("crossing name is required", nil)
	}

	if crossing.ID == "" {
		crossing.ID = nuts.NID("cr", 12)
	}

	now := time.Now()
	crossing.CreatedAt = now
	crossing.UpdatedAt = now
	crossing.LastSeen = now

	if crossing.Timezone == "" {
		crossing.Timezone = "UTC"
	}
	if crossing.Status == "" {
		crossing.Status = models.CrossingActive
	}
	if crossing.DeviceKey == "" {
		crossing.DeviceKey = nuts.NID("dk", 24)
	}

	nuts.L.Infof("[CrossingService] Creating new crossing: %s (%s)", crossing.Name, crossing.ID)
	return s.Crossings.Create(ctx, crossing)
}

// GetCrossing retrieves a crossing with role-based field filtering
func (s *HubService) GetCrossing(ctx context.Context, id string) (*models.Crossing, error) {
	crossing, err := s.Crossings.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	roles := GetUserRoles(ctx)

	filteredMap, err := struccy.StructToMapFieldsWithReadXS(crossing, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to filter crossing fields", err)
	}
	filtered := &models.Crossing{}
	if _, err := struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles); err != nil {
		return nil, errors.NewInternalError("failed to map filtered fields to crossing struct", err)
	}
	return filtered, nil
}

// UpdateCrossing updates an existing crossing with role-based access
// control and broadcasts the mutation to the crossing's room.
func (s *HubService) UpdateCrossing(ctx context.Context, crossing *models.Crossing) error {
	existing, err := s.Crossings.Get(ctx, crossing.ID)
	if err != nil {
		return err
	}

	roles := GetUserRoles(ctx)

	updatedFields, _, err := struccy.UpdateStructFields(existing, crossing, roles, true, true)
	if err != nil {
		return errors.NewAuthorizationError("unauthorized field update", err)
	}

	existing.UpdatedAt = time.Now()
	if err := s.Crossings.Update(ctx, existing); err != nil {
		return err
	}
	*crossing = *existing

	nuts.L.Infof("[CrossingService] Updated crossing %s, fields changed: %v", crossing.ID, updatedFields)

	if payload, err := broadcast.EntityUpdatePayload(existing, existing.UpdatedAt); err == nil {
		s.Hub.Publish(broadcast.EventEntityUpdate, payload, broadcast.CrossingRoom(existing.ID))
	} else {
		nuts.L.Errorf("[CrossingService] Failed to serialize crossing %s update: %v", crossing.ID, err)
	}
	return nil
}

// ListCrossings retrieves a page of crossings
func (s *HubService) ListCrossings(ctx context.Context, offset, limit int) ([]*models.Crossing, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.Crossings.List(ctx, offset, limit)
}

// GetCrossingStatus aggregates the crossing's operational snapshot.
func (s *HubService) GetCrossingStatus(ctx context.Context, id string) (*CrossingStatus, error) {
	crossing, err := s.Crossings.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &CrossingStatus{
		Crossing:     crossing,
		OnlineStatus: "offline",
	}
	if time.Since(crossing.LastSeen) < offlineAfter {
		status.OnlineStatus = "online"
	}

	latest, err := s.Readings.Latest(ctx, id)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if latest != nil {
		status.LastReading = latest
		status.BarrierState = latest.BarrierStatus
	}

	open, err := s.Alerts.List(ctx, models.AlertFilters{CrossingID: id, OpenOnly: true})
	if err != nil {
		return nil, err
	}
	status.OpenAlerts = len(open)

	return status, nil
}
