// FilePath: internal/database/database.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"
	"github.com/vialibre/crosshub/internal/config"
)

// DB is the database handle the repositories operate on
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sqlx.DB
}

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	db *sqlx.DB
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository represents common repository operations
type Repository interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.PostgresConfig) (DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}

	nuts.L.Infof("[PostgresDB] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)
	return &PostgresDB{db: db}, nil
}

// WrapDB wraps an existing sqlx handle. Used by tests with sqlmock.
func WrapDB(db *sqlx.DB) DB {
	return &PostgresDB{db: db}
}

// Implementation of DB interface for PostgresDB
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) GetDB() *sqlx.DB {
	return p.db
}
