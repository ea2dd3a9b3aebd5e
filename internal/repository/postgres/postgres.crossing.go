// FilePath: internal/repository/postgres/postgres.crossing.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/vialibre/crosshub/internal/database"
	"github.com/vialibre/crosshub/internal/errors"
	"github.com/vialibre/crosshub/internal/models"
)

type CrossingRepo struct {
	PostgresBaseRepo
}

func NewCrossingRepository(db database.DB) *CrossingRepo {
	return &CrossingRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *CrossingRepo) Create(ctx context.Context, crossing *models.Crossing) error {
	query := `
		INSERT INTO crossings (
			id, name, description, location, latitude, longitude,
			status, timezone, device_serial, device_key,
			last_seen, created_at, updated_at
		) VALUES (
			:id, :name, :description, :location, :latitude, :longitude,
			:status, :timezone, :device_serial, :device_key,
			:last_seen, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, crossing)
	if err != nil {
		return errors.NewDatabaseError("failed to create crossing", err)
	}
	return nil
}

func (r *CrossingRepo) Get(ctx context.Context, id string) (*models.Crossing, error) {
	crossing := &models.Crossing{}
	query := `SELECT * FROM crossings WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, crossing, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("crossing not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get crossing", err)
	}
	return crossing, nil
}

func (r *CrossingRepo) Update(ctx context.Context, crossing *models.Crossing) error {
	query := `
		UPDATE crossings SET
			name = :name,
			description = :description,
			location = :location,
			latitude = :latitude,
			longitude = :longitude,
			status = :status,
			timezone = :timezone,
			device_serial = :device_serial,
			device_key = :device_key,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, crossing)
	if err != nil {
		return errors.NewDatabaseError("failed to update crossing", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("crossing not found", nil)
	}
	return nil
}

func (r *CrossingRepo) List(ctx context.Context, offset, limit int) ([]*models.Crossing, error) {
	crossings := []*models.Crossing{}
	query := `SELECT * FROM crossings ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	err := r.db.GetDB().SelectContext(ctx, &crossings, query, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list crossings", err)
	}
	return crossings, nil
}

func (r *CrossingRepo) ListActive(ctx context.Context) ([]*models.Crossing, error) {
	crossings := []*models.Crossing{}
	query := `SELECT * FROM crossings WHERE status = $1 ORDER BY name`

	err := r.db.GetDB().SelectContext(ctx, &crossings, query, models.CrossingActive)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list active crossings", err)
	}
	return crossings, nil
}

func (r *CrossingRepo) UpdateLastSeen(ctx context.Context, id string, lastSeen time.Time) error {
	query := `UPDATE crossings SET last_seen = $1 WHERE id = $2`
	result, err := r.db.GetDB().ExecContext(ctx, query, lastSeen, id)
	if err != nil {
		return errors.NewDatabaseError("failed to update last seen", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("crossing not found", nil)
	}
	return nil
}
