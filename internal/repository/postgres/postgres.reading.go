// FilePath: internal/repository/postgres/postgres.reading.go
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

type ReadingRepo struct {
	PostgresBaseRepo
}

func NewReadingRepository(db database.DB) *ReadingRepo {
	return &ReadingRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *ReadingRepo) Insert(ctx context.Context, reading *models.Reading) error {
	query := `
		INSERT INTO readings (
			id, crossing_id, timestamp, barrier_voltage, battery_voltage,
			sensor_1, sensor_2, sensor_3, sensor_4,
			signal_strength, temperature, barrier_status, created_at
		) VALUES (
			:id, :crossing_id, :timestamp, :barrier_voltage, :battery_voltage,
			:sensor_1, :sensor_2, :sensor_3, :sensor_4,
			:signal_strength, :temperature, :barrier_status, :created_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, reading)
	if err != nil {
		return errors.NewDatabaseError("failed to insert reading", err)
	}
	return nil
}

func (r *ReadingRepo) Get(ctx context.Context, id string) (*models.Reading, error) {
	reading := &models.Reading{}
	query := `SELECT * FROM readings WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, reading, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("reading not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get reading", err)
	}
	return reading, nil
}

func (r *ReadingRepo) Latest(ctx context.Context, crossingID string) (*models.Reading, error) {
	reading := &models.Reading{}
	query := `SELECT * FROM readings WHERE crossing_id = $1 ORDER BY timestamp DESC LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, reading, query, crossingID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("no readings for crossing", err)
		}
		return nil, errors.NewDatabaseError("failed to get latest reading", err)
	}
	return reading, nil
}

func (r *ReadingRepo) List(ctx context.Context, filters models.ReadingFilters) ([]*models.Reading, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT * FROM readings WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filters.CrossingID != "" {
		query += ` AND crossing_id = $` + strconv.Itoa(idx)
		args = append(args, filters.CrossingID)
		idx++
	}
	if filters.Start != nil {
		query += ` AND timestamp >= $` + strconv.Itoa(idx)
		args = append(args, *filters.Start)
		idx++
	}
	if filters.End != nil {
		query += ` AND timestamp <= $` + strconv.Itoa(idx)
		args = append(args, *filters.End)
		idx++
	}
	query += ` ORDER BY timestamp DESC LIMIT $` + strconv.Itoa(idx) + ` OFFSET $` + strconv.Itoa(idx+1)
	args = append(args, limit, offset)

	readings := []*models.Reading{}
	if err := r.db.GetDB().SelectContext(ctx, &readings, query, args...); err != nil {
		return nil, errors.NewDatabaseError("failed to list readings", err)
	}
	return readings, nil
}

func (r *ReadingRepo) SetBarrierStatus(ctx context.Context, id string, state models.BarrierState) error {
	query := `UPDATE readings SET barrier_status = $1 WHERE id = $2`
	result, err := r.db.GetDB().ExecContext(ctx, query, state, id)
	if err != nil {
		return errors.NewDatabaseError("failed to set barrier status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("reading not found", nil)
	}
	return nil
}

func (r *ReadingRepo) CountLowBattery(ctx context.Context, crossingID string, since time.Time, maxVoltage float64) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM readings
		WHERE crossing_id = $1 AND timestamp >= $2 AND battery_voltage < $3`

	err := r.db.GetDB().GetContext(ctx, &count, query, crossingID, since, maxVoltage)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to count low-battery readings", err)
	}
	return count, nil
}
