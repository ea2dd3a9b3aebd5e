// FilePath: internal/hubservice/hubservice.go

// Package hubservice carries the business logic behind the HTTP surface:
// crossing management, reading queries and alert resolution.
package hubservice

import (
	"context"

	"github.com/vialibre/crosshub/internal/broadcast"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/repository"
)

type contextKey string

// RolesContextKey carries the caller's roles through request contexts.
const RolesContextKey contextKey = "user_roles"

// Publisher is the broadcaster surface the service needs for entity-update
// and alert-resolved events.
type Publisher interface {
	Publish(event string, payload []byte, rooms ...string)
}

// HubService contains all repositories and service-wide dependencies
type HubService struct {
	Crossings repository.CrossingRepository
	Readings  repository.ReadingRepository
	Events    repository.StateEventRepository
	Alerts    repository.AlertRepository
	Operators repository.OperatorRepository
	Hub       Publisher
}

// New creates a new HubService instance
func New(
	crossings repository.CrossingRepository,
	readings repository.ReadingRepository,
	events repository.StateEventRepository,
	alerts repository.AlertRepository,
	operators repository.OperatorRepository,
	hub Publisher,
) *HubService {
	return &HubService{
		Crossings: crossings,
		Readings:  readings,
		Events:    events,
		Alerts:    alerts,
		Operators: operators,
		Hub:       hub,
	}
}

// Validate checks if all required repositories are initialized
func (s *HubService) Validate() error {
	if s.Crossings == nil {
		return ErrMissingRepository("crossings")
	}
	if s.Readings == nil {
		return ErrMissingRepository("readings")
	}
	if s.Events == nil {
		return ErrMissingRepository("events")
	}
	if s.Alerts == nil {
		return ErrMissingRepository("alerts")
	}
	if s.Operators == nil {
		return ErrMissingRepository("operators")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}

// GetUserRoles retrieves the caller's roles from the request context.
func GetUserRoles(ctx context.Context) []string {
	if roles := ctx.Value(RolesContextKey); roles != nil {
		if r, ok := roles.([]string); ok {
			return r
		}
	}
	return []string{"guest"}
}

var _ Publisher = (*broadcast.Hub)(nil)
