// FilePath: internal/repository/postgres/postgres.work.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/vialibre/crosshub/internal/database"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

type WorkRepo struct {
	PostgresBaseRepo
}

func NewWorkRepository(db database.DB) *WorkRepo {
	return &WorkRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

// InsertIfAbsent creates the work order unless open work for the same
// (crossing, rule) already exists. The partial unique index on open work
// absorbs the conflict, so the engine's idempotence guard is a single
// atomic statement rather than a read-then-write.
func (r *WorkRepo) InsertIfAbsent(ctx context.Context, work *models.MaintenanceWork) (bool, error) {
	query := `
		INSERT INTO maintenance_work (
			id, crossing_id, rule_id, kind, priority, description,
			status, scheduled_at, started_at, completed_at,
			metrics_before, metrics_after, created_at
		) VALUES (
			:id, :crossing_id, :rule_id, :kind, :priority, :description,
			:status, :scheduled_at, :started_at, :completed_at,
			:metrics_before, :metrics_after, :created_at
		)
		ON CONFLICT (crossing_id, rule_id) WHERE status IN ('PENDING', 'IN_PROGRESS') AND rule_id IS NOT NULL
		DO NOTHING`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, work)
	if err != nil {
		return false, errors.NewDatabaseError("failed to insert maintenance work", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewDatabaseError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

func (r *WorkRepo) Get(ctx context.Context, id string) (*models.MaintenanceWork, error) {
	work := &models.MaintenanceWork{}
	query := `SELECT * FROM maintenance_work WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, work, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("maintenance work not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get maintenance work", err)
	}
	return work, nil
}

func (r *WorkRepo) FindOpen(ctx context.Context, crossingID, ruleID string) (*models.MaintenanceWork, error) {
	work := &models.MaintenanceWork{}
	query := `
		SELECT * FROM maintenance_work
		WHERE crossing_id = $1 AND rule_id = $2 AND status IN ('PENDING', 'IN_PROGRESS')
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, work, query, crossingID, ruleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no open maintenance work", err)
		}
		return nil, errors.NewDatabaseError("failed to find open maintenance work", err)
	}
	return work, nil
}

func (r *WorkRepo) LastCompleted(ctx context.Context, crossingID string) (*models.MaintenanceWork, error) {
	work := &models.MaintenanceWork{}
	query := `
		SELECT * FROM maintenance_work
		WHERE crossing_id = $1 AND status = 'COMPLETED' AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, work, query, crossingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no completed maintenance work", err)
		}
		return nil, errors.NewDatabaseError("failed to find completed maintenance work", err)
	}
	return work, nil
}

func (r *WorkRepo) ExistsScheduledOn(ctx context.Context, crossingID, ruleID string, day time.Time) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM maintenance_work
			WHERE crossing_id = $1 AND rule_id = $2 AND scheduled_at::date = $3::date
		)`

	err := r.db.GetDB().GetContext(ctx, &exists, query, crossingID, ruleID, day)
	if err != nil {
		return false, errors.NewDatabaseError("failed to check scheduled maintenance work", err)
	}
	return exists, nil
}
