// FilePath: internal/database/schema.go
package database

import (
	"context"
	"fmt"
)

// Schema is the DDL for the crosshub store. The two partial unique indexes
// are load-bearing: they back the alert create-if-absent key and the
// at-most-one-open-work guard, so repeated evaluation of the same reading is
// absorbed at the store instead of racing in application code.
const Schema = `
CREATE TABLE IF NOT EXISTS crossings (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'ACTIVE',
	timezone      TEXT NOT NULL DEFAULT 'UTC',
	device_serial TEXT NOT NULL DEFAULT '',
	device_key    TEXT NOT NULL DEFAULT '',
	last_seen     TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS operators (
	id       TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email    TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT 'OBSERVER',
	active   BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS readings (
	id              TEXT PRIMARY KEY,
	crossing_id     TEXT NOT NULL REFERENCES crossings(id),
	timestamp       TIMESTAMPTZ NOT NULL,
	barrier_voltage DOUBLE PRECISION NOT NULL,
	battery_voltage DOUBLE PRECISION NOT NULL,
	sensor_1        INTEGER,
	sensor_2        INTEGER,
	sensor_3        INTEGER,
	sensor_4        INTEGER,
	signal_strength INTEGER,
	temperature     DOUBLE PRECISION,
	barrier_status  TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS readings_crossing_ts_idx ON readings (crossing_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS state_events (
	id               TEXT PRIMARY KEY,
	crossing_id      TEXT NOT NULL REFERENCES crossings(id),
	reading_id       TEXT NOT NULL REFERENCES readings(id),
	state            TEXT NOT NULL,
	event_time       TIMESTAMPTZ NOT NULL,
	voltage_at_event DOUBLE PRECISION NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS state_events_crossing_time_idx ON state_events (crossing_id, event_time DESC);

CREATE TABLE IF NOT EXISTS alerts (
	id          TEXT PRIMARY KEY,
	crossing_id TEXT NOT NULL REFERENCES crossings(id),
	reading_id  TEXT REFERENCES readings(id),
	type        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	resolved    BOOLEAN NOT NULL DEFAULT FALSE,
	resolved_at TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS alerts_idempotence_idx
	ON alerts (crossing_id, type, reading_id)
	WHERE NOT resolved AND reading_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS alerts_crossing_open_idx ON alerts (crossing_id) WHERE NOT resolved;

CREATE TABLE IF NOT EXISTS maintenance_rules (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	priority    TEXT NOT NULL DEFAULT 'MEDIUM',
	conditions  JSONB NOT NULL DEFAULT '{}',
	actions     JSONB NOT NULL DEFAULT '{}',
	start_date  DATE,
	end_date    DATE,
	weekdays    JSONB NOT NULL DEFAULT '[]',
	crossing_id TEXT REFERENCES crossings(id),
	active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS maintenance_work (
	id             TEXT PRIMARY KEY,
	crossing_id    TEXT NOT NULL REFERENCES crossings(id),
	rule_id        TEXT REFERENCES maintenance_rules(id),
	kind           TEXT NOT NULL,
	priority       TEXT NOT NULL DEFAULT 'MEDIUM',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'PENDING',
	scheduled_at   TIMESTAMPTZ NOT NULL,
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ,
	metrics_before JSONB NOT NULL DEFAULT '{}',
	metrics_after  JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS maintenance_work_open_idx
	ON maintenance_work (crossing_id, rule_id)
	WHERE status IN ('PENDING', 'IN_PROGRESS') AND rule_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS maintenance_work_crossing_idx ON maintenance_work (crossing_id, scheduled_at DESC);
`

// Migrate applies the schema to the connected database
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.GetDB().ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	return nil
}
