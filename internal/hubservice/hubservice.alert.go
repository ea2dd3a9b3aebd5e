// FilePath: internal/hubservice/hubservice.alert.go
package hubservice

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vialibre/crosshub/internal/broadcast"
	"github.com/vialibre/crosshub/internal/models"
)

// AlertService handles alert queries and the external resolve action
type AlertService interface {
	ListAlerts(ctx context.Context, filters models.AlertFilters) ([]*models.Alert, error)
	ResolveAlert(ctx context.Context, id string) (*models.Alert, error)
}

// ListAlerts retrieves alerts matching the filters
func (s *HubService) ListAlerts(ctx context.Context, filters models.AlertFilters) ([]*models.Alert, error) {
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 100
	}
	return s.Alerts.List(ctx, filters)
}

// ResolveAlert marks an open alert resolved and broadcasts the resolution
// to the alerts room and the crossing's room.
func (s *HubService) ResolveAlert(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.Alerts.Resolve(ctx, id, time.Now())
	if err != nil {
		return nil, err
	}

	nuts.L.Infof("[AlertService] Alert %s resolved (crossing %s, type %s)", alert.ID, alert.CrossingID, alert.Type)

	if payload, err := broadcast.AlertResolvedPayload(alert); err == nil {
		s.Hub.Publish(broadcast.EventAlertResolved, payload,
			broadcast.RoomAlerts, broadcast.CrossingRoom(alert.CrossingID))
	} else {
		nuts.L.Errorf("[AlertService] Failed to serialize resolved alert %s: %v", alert.ID, err)
	}
	return alert, nil
}

// ListReadings retrieves readings matching the filters
func (s *HubService) ListReadings(ctx context.Context, filters models.ReadingFilters) ([]*models.Reading, error) {
	if filters.Limit <= 0 || filters.Limit > 1000 {
		filters.Limit = 100
	}
	return s.Readings.List(ctx, filters)
}

// ListStateEvents retrieves recent barrier transitions for a crossing
func (s *HubService) ListStateEvents(ctx context.Context, crossingID string, limit int) ([]*models.StateEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Events.List(ctx, crossingID, limit)
}
