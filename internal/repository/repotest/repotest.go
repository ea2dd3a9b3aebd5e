// FilePath: internal/repository/repotest/repotest.go

// Package repotest provides in-memory repository implementations for engine
// and pipeline tests. The idempotence guards mirror the store-level unique
// constraints of the postgres implementations.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

// Store holds all entities behind one mutex and implements every
// repository interface.
type Store struct {
	mu        sync.Mutex
	Crossings map[string]*models.Crossing
	Operators map[string]*models.Operator
	Readings  []*models.Reading
	Events    []*models.StateEvent
	Alerts    []*models.Alert
	Rules     []*models.MaintenanceRule
	Work      []*models.MaintenanceWork

	// FailNext, when set, makes the next store call return a database error.
	FailNext error
}

func NewStore() *Store {
	return &Store{
		Crossings: make(map[string]*models.Crossing),
		Operators: make(map[string]*models.Operator),
	}
}

func (s *Store) failed() error {
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return errors.NewDatabaseError("injected store failure", err)
	}
	return nil
}

// ---- CrossingRepository ----

func (s *Store) Create(ctx context.Context, crossing *models.Crossing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed(); err != nil {
		return err
	}
	s.Crossings[crossing.ID] = crossing
	return nil
}

func (s *Store) GetCrossing(ctx context.Context, id string) (*models.Crossing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.Crossings[id]; ok {
		return c, nil
	}
	return nil, errors.NewNotFoundError("crossing not found", nil)
}

func (s *Store) Update(ctx context.Context, crossing *models.Crossing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Crossings[crossing.ID]; !ok {
		return errors.NewNotFoundError("crossing not found", nil)
	}
	s.Crossings[crossing.ID] = crossing
	return nil
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]*models.Crossing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Crossing, 0, len(s.Crossings))
	for _, c := range s.Crossings {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActive(ctx context.Context) ([]*models.Crossing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Crossing{}
	for _, c := range s.Crossings {
		if c.Status == models.CrossingActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Crossings[id]
	if !ok {
		return errors.NewNotFoundError("crossing not found", nil)
	}
	c.LastSeen = lastSeen
	return nil
}

// CrossingRepo adapts Store to repository.CrossingRepository, whose Get
// would otherwise collide with the other entity getters.
type CrossingRepo struct{ *Store }

func (r CrossingRepo) Get(ctx context.Context, id string) (*models.Crossing, error) {
	return r.GetCrossing(ctx, id)
}

// ---- ReadingRepository ----

type ReadingRepo struct{ *Store }

func (r ReadingRepo) Insert(ctx context.Context, reading *models.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed(); err != nil {
		return err
	}
	r.Readings = append(r.Readings, reading)
	return nil
}

func (r ReadingRepo) Get(ctx context.Context, id string) (*models.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rd := range r.Readings {
		if rd.ID == id {
			return rd, nil
		}
	}
	return nil, errors.NewNotFoundError("reading not found", nil)
}

func (r ReadingRepo) Latest(ctx context.Context, crossingID string) (*models.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Reading
	for _, rd := range r.Readings {
		if rd.CrossingID != crossingID {
			continue
		}
		if latest == nil || rd.Timestamp.After(latest.Timestamp) {
			latest = rd
		}
	}
	if latest == nil {
		return nil, errors.NewNotFoundError("no readings for crossing", nil)
	}
	return latest, nil
}

func (r ReadingRepo) List(ctx context.Context, filters models.ReadingFilters) ([]*models.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Reading{}
	for _, rd := range r.Readings {
		if filters.CrossingID != "" && rd.CrossingID != filters.CrossingID {
			continue
		}
		out = append(out, rd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (r ReadingRepo) SetBarrierStatus(ctx context.Context, id string, state models.BarrierState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rd := range r.Readings {
		if rd.ID == id {
			rd.BarrierStatus = state
			return nil
		}
	}
	return errors.NewNotFoundError("reading not found", nil)
}

func (r ReadingRepo) CountLowBattery(ctx context.Context, crossingID string, since time.Time, maxVoltage float64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, rd := range r.Readings {
		if rd.CrossingID == crossingID && !rd.Timestamp.Before(since) && rd.BatteryVoltage < maxVoltage {
			count++
		}
	}
	return count, nil
}

// ---- StateEventRepository ----

type StateEventRepo struct{ *Store }

func (r StateEventRepo) Latest(ctx context.Context, crossingID string) (*models.StateEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.StateEvent
	for _, ev := range r.Events {
		if ev.CrossingID != crossingID {
			continue
		}
		if latest == nil || ev.EventTime.After(latest.EventTime) {
			latest = ev
		}
	}
	if latest == nil {
		return nil, errors.NewNotFoundError("no state events for crossing", nil)
	}
	return latest, nil
}

func (r StateEventRepo) List(ctx context.Context, crossingID string, limit int) ([]*models.StateEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.StateEvent{}
	for _, ev := range r.Events {
		if ev.CrossingID == crossingID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.After(out[j].EventTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r StateEventRepo) InsertIfAbsent(ctx context.Context, event *models.StateEvent, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed(); err != nil {
		return false, err
	}
	for _, ev := range r.Events {
		if ev.CrossingID == event.CrossingID && ev.EventTime.After(event.EventTime.Add(-window)) {
			return false, nil
		}
	}
	r.Events = append(r.Events, event)
	return true, nil
}

// ---- AlertRepository ----

type AlertRepo struct{ *Store }

func (r AlertRepo) InsertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed(); err != nil {
		return false, err
	}
	for _, a := range r.Alerts {
		if a.Resolved || a.CrossingID != alert.CrossingID || a.Type != alert.Type {
			continue
		}
		if a.ReadingID != nil && alert.ReadingID != nil && *a.ReadingID == *alert.ReadingID {
			return false, nil
		}
	}
	r.Alerts = append(r.Alerts, alert)
	return true, nil
}

func (r AlertRepo) Get(ctx context.Context, id string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.Alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.NewNotFoundError("alert not found", nil)
}

func (r AlertRepo) List(ctx context.Context, filters models.AlertFilters) ([]*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Alert{}
	for _, a := range r.Alerts {
		if filters.CrossingID != "" && a.CrossingID != filters.CrossingID {
			continue
		}
		if filters.Type != "" && string(a.Type) != filters.Type {
			continue
		}
		if filters.OpenOnly && a.Resolved {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r AlertRepo) Resolve(ctx context.Context, id string, resolvedAt time.Time) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.Alerts {
		if a.ID == id && !a.Resolved {
			a.Resolved = true
			a.ResolvedAt = &resolvedAt
			return a, nil
		}
	}
	return nil, errors.NewNotFoundError("open alert not found", nil)
}

// ---- RuleRepository ----

type RuleRepo struct{ *Store }

func (r RuleRepo) ActiveForCrossing(ctx context.Context, crossingID string) ([]*models.MaintenanceRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.MaintenanceRule{}
	for _, rule := range r.Rules {
		if !rule.Active {
			continue
		}
		if rule.CrossingID == nil || *rule.CrossingID == crossingID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r RuleRepo) ActiveDateScoped(ctx context.Context) ([]*models.MaintenanceRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.MaintenanceRule{}
	for _, rule := range r.Rules {
		if rule.Active && rule.StartDate != nil {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r RuleRepo) Get(ctx context.Context, id string) (*models.MaintenanceRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range r.Rules {
		if rule.ID == id {
			return rule, nil
		}
	}
	return nil, errors.NewNotFoundError("rule not found", nil)
}

// ---- WorkRepository ----

type WorkRepo struct{ *Store }

func (r WorkRepo) InsertIfAbsent(ctx context.Context, work *models.MaintenanceWork) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failed(); err != nil {
		return false, err
	}
	if work.RuleID != nil {
		for _, w := range r.Work {
			if w.CrossingID != work.CrossingID || w.RuleID == nil || *w.RuleID != *work.RuleID {
				continue
			}
			if w.Status == models.WorkPending || w.Status == models.WorkInProgress {
				return false, nil
			}
		}
	}
	r.Work = append(r.Work, work)
	return true, nil
}

func (r WorkRepo) Get(ctx context.Context, id string) (*models.MaintenanceWork, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.Work {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, errors.NewNotFoundError("maintenance work not found", nil)
}

func (r WorkRepo) FindOpen(ctx context.Context, crossingID, ruleID string) (*models.MaintenanceWork, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.Work {
		if w.CrossingID != crossingID || w.RuleID == nil || *w.RuleID != ruleID {
			continue
		}
		if w.Status == models.WorkPending || w.Status == models.WorkInProgress {
			return w, nil
		}
	}
	return nil, errors.NewNotFoundError("no open maintenance work", nil)
}

func (r WorkRepo) LastCompleted(ctx context.Context, crossingID string) (*models.MaintenanceWork, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.MaintenanceWork
	for _, w := range r.Work {
		if w.CrossingID != crossingID || w.Status != models.WorkCompleted || w.CompletedAt == nil {
			continue
		}
		if latest == nil || w.CompletedAt.After(*latest.CompletedAt) {
			latest = w
		}
	}
	if latest == nil {
		return nil, errors.NewNotFoundError("no completed maintenance work", nil)
	}
	return latest, nil
}

func (r WorkRepo) ExistsScheduledOn(ctx context.Context, crossingID, ruleID string, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	y, m, d := day.Date()
	for _, w := range r.Work {
		if w.CrossingID != crossingID || w.RuleID == nil || *w.RuleID != ruleID {
			continue
		}
		wy, wm, wd := w.ScheduledAt.Date()
		if wy == y && wm == m && wd == d {
			return true, nil
		}
	}
	return false, nil
}

// ---- OperatorRepository ----

type OperatorRepo struct{ *Store }

func (r OperatorRepo) Get(ctx context.Context, id string) (*models.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.Operators[id]; ok {
		return op, nil
	}
	return nil, errors.NewNotFoundError("operator not found", nil)
}
