// FilePath: internal/repository/postgres/postgres.alert.go
package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/vialibre/crosshub/internal/database"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

type AlertRepo struct {
	PostgresBaseRepo
}

func NewAlertRepository(db database.DB) *AlertRepo {
	return &AlertRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

// InsertIfAbsent creates the alert unless the partial unique index on
// (crossing_id, type, reading_id) already holds an open alert for the key.
// ON CONFLICT DO NOTHING makes repeated evaluation of the same reading a
// store-level no-op.
func (r *AlertRepo) InsertIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	query := `
		INSERT INTO alerts (id, crossing_id, reading_id, type, severity, description, resolved, resolved_at, created_at)
		VALUES (:id, :crossing_id, :reading_id, :type, :severity, :description, :resolved, :resolved_at, :created_at)
		ON CONFLICT (crossing_id, type, reading_id) WHERE NOT resolved AND reading_id IS NOT NULL
		DO NOTHING`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, alert)
	if err != nil {
		return false, errors.NewDatabaseError("failed to insert alert", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewDatabaseError("failed to get rows affected", err)
	}
	return rows > 0, nil
}

func (r *AlertRepo) Get(ctx context.Context, id string) (*models.Alert, error) {
	alert := &models.Alert{}
	query := `SELECT * FROM alerts WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, alert, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("alert not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get alert", err)
	}
	return alert, nil
}

func (r *AlertRepo) List(ctx context.Context, filters models.AlertFilters) ([]*models.Alert, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT * FROM alerts WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filters.CrossingID != "" {
		query += ` AND crossing_id = $` + strconv.Itoa(idx)
		args = append(args, filters.CrossingID)
		idx++
	}
	if filters.Type != "" {
		query += ` AND type = $` + strconv.Itoa(idx)
		args = append(args, filters.Type)
		idx++
	}
	if filters.Severity != "" {
		query += ` AND severity = $` + strconv.Itoa(idx)
		args = append(args, filters.Severity)
		idx++
	}
	if filters.OpenOnly {
		query += ` AND NOT resolved`
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(idx) + ` OFFSET $` + strconv.Itoa(idx+1)
	args = append(args, limit, offset)

	alerts := []*models.Alert{}
	if err := r.db.GetDB().SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, errors.NewDatabaseError("failed to list alerts", err)
	}
	return alerts, nil
}

func (r *AlertRepo) Resolve(ctx context.Context, id string, resolvedAt time.Time) (*models.Alert, error) {
	alert := &models.Alert{}
	query := `
		UPDATE alerts SET resolved = TRUE, resolved_at = $1
		WHERE id = $2 AND NOT resolved
		RETURNING *`

	err := r.db.GetDB().GetContext(ctx, alert, query, resolvedAt, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("open alert not found", err)
		}
		return nil, errors.NewDatabaseError("failed to resolve alert", err)
	}
	return alert, nil
}
