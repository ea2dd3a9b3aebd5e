// FilePath: internal/repository/postgres/postgres.stateevent.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/vialibre/crosshub/internal/database"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

type StateEventRepo struct {
	PostgresBaseRepo
}

func NewStateEventRepository(db database.DB) *StateEventRepo {
	return &StateEventRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *StateEventRepo) Latest(ctx context.Context, crossingID string) (*models.StateEvent, error) {
	event := &models.StateEvent{}
	query := `SELECT * FROM state_events WHERE crossing_id = $1 ORDER BY event_time DESC LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, event, query, crossingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no state events for crossing", err)
		}
		return nil, errors.NewDatabaseError("failed to get latest state event", err)
	}
	return event, nil
}

func (r *StateEventRepo) List(ctx context.Context, crossingID string, limit int) ([]*models.StateEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	events := []*models.StateEvent{}
	query := `SELECT * FROM state_events WHERE crossing_id = $1 ORDER BY event_time DESC LIMIT $2`

	err := r.db.GetDB().SelectContext(ctx, &events, query, crossingID, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list state events", err)
	}
	return events, nil
}

// InsertIfAbsent creates the event unless another event for the crossing
// falls within the debounce window before the new event time. The guard and
// the insert are one statement so concurrent ingestion cannot slip two
// events inside the window.
func (r *StateEventRepo) InsertIfAbsent(ctx context.Context, event *models.StateEvent, window time.Duration) (bool, error) {
	query := `
		INSERT INTO state_events (id, crossing_id, reading_id, state, event_time, voltage_at_event, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM state_events
			WHERE crossing_id = $2 AND event_time > $5::timestamptz - make_interval(secs => $8)
		)`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		event.ID, event.CrossingID, event.ReadingID, event.State,
		event.EventTime, event.VoltageAtEvent, event.CreatedAt,
		window.Seconds(),
	)
	if err != nil {
		return false, errors.NewDatabaseError("failed to insert state event", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewDatabaseError("failed to get rows affected", err)
	}
	return rows > 0, nil
}
