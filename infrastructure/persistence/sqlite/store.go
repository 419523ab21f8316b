// Package sqlite provides a single-node persistence option backed by SQLite,
// used for development and self-hosted deployments where DynamoDB is
// unavailable.
package sqlite

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS schedule_entries (
	id                   TEXT PRIMARY KEY,
	learner_id           TEXT NOT NULL,
	unit_id              TEXT NOT NULL,
	session_type         TEXT NOT NULL,
	scheduled_at         TIMESTAMP NOT NULL,
	duration_minutes     INTEGER NOT NULL,
	priority_score       REAL NOT NULL,
	cognitive_load_score REAL NOT NULL,
	interval_days        INTEGER NOT NULL,
	status               TEXT NOT NULL,
	start_offset         INTEGER NOT NULL,
	end_offset           INTEGER NOT NULL,
	replaced_by          TEXT,
	completed_at         TIMESTAMP,
	created_at           TIMESTAMP NOT NULL,
	updated_at           TIMESTAMP NOT NULL,
	version              INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_learner_status    ON schedule_entries(learner_id, status);
CREATE INDEX IF NOT EXISTS idx_entries_learner_scheduled ON schedule_entries(learner_id, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_entries_status            ON schedule_entries(status);

CREATE TABLE IF NOT EXISTS review_records (
	id               TEXT PRIMARY KEY,
	learner_id       TEXT NOT NULL,
	unit_id          TEXT NOT NULL,
	event_id         TEXT NOT NULL,
	score            REAL NOT NULL,
	elapsed_minutes  REAL NOT NULL,
	predicted_recall REAL NOT NULL,
	half_life_days   REAL NOT NULL,
	recorded_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reviews_learner_unit ON review_records(learner_id, unit_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_reviews_learner_time ON review_records(learner_id, recorded_at);

CREATE TABLE IF NOT EXISTS learner_profiles (
	learner_id            TEXT PRIMARY KEY,
	retention_rate        REAL NOT NULL,
	cognitive_load_limit  REAL NOT NULL,
	difficulty_preference REAL NOT NULL,
	reading_speed         REAL NOT NULL,
	updated_at            TIMESTAMP NOT NULL,
	version               INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS material_units (
	id                TEXT PRIMARY KEY,
	material_id       TEXT NOT NULL,
	title             TEXT NOT NULL,
	order_index       INTEGER NOT NULL,
	start_offset      INTEGER NOT NULL,
	end_offset        INTEGER NOT NULL,
	word_count        INTEGER NOT NULL,
	difficulty        REAL NOT NULL,
	estimated_minutes INTEGER NOT NULL,
	created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_units_material ON material_units(material_id, order_index);

CREATE TABLE IF NOT EXISTS processed_events (
	learner_id TEXT NOT NULL,
	event_id   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (learner_id, event_id)
);
`

// Open opens the database at path and applies the schema
func Open(path string) (*sqlx.DB, error) {
	// Serialized access plus a busy timeout keeps concurrent handlers from
	// tripping over SQLITE_BUSY under the single-writer model
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// An in-memory database exists per connection, so the pool must be
	// pinned to one connection for the schema to be visible everywhere
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
