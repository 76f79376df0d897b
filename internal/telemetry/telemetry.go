// Package telemetry persists readings to a local sqlite database for later
// analysis, complementing the human-readable daily CSV files.
package telemetry

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/frostwatch/freezerctl/internal/errors"
	"codeberg.org/frostwatch/freezerctl/internal/logger"
	"codeberg.org/frostwatch/freezerctl/internal/sensor"
)

const dirPerm = 0o755

// Store is an append-only sqlite repository of readings, exposed to the
// monitor loop as an ordinary sink.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.WithMessage(errors.ErrStorageInit, "empty database path")
	}

	logger.Debug().Str("db_path", dbPath).Msg("Initializing telemetry store")

	if err := os.MkdirAll(filepath.Dir(dbPath), dirPerm); err != nil {
		return nil, errors.Wrap(errors.ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS readings (
            timestamp   INTEGER NOT NULL,
            source      TEXT    NOT NULL,
            temperature REAL,
            humidity    REAL,
            alert       INTEGER NOT NULL,
            sentinel    INTEGER NOT NULL,
            PRIMARY KEY (timestamp, source)
        )
    `)
	if err != nil {
		return errors.Wrap(errors.ErrStorageInit, err)
	}

	return nil
}

func (s *Store) Name() string {
	return "telemetry"
}

func (s *Store) Publish(ctx context.Context, r sensor.Reading) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO readings (timestamp, source, temperature, humidity, alert, sentinel)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp, source) DO NOTHING
    `,
		r.Time.Unix(),
		r.Source,
		nullable(r, sensor.Temperature),
		nullable(r, sensor.Humidity),
		boolToInt(r.Alert),
		boolToInt(r.Sentinel),
	)
	if err != nil {
		return errors.Wrap(errors.ErrStorageAccess, err)
	}

	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(errors.ErrStorageClose, err)
	}
	return nil
}

// nullable maps a missing or NaN value to SQL NULL.
func nullable(r sensor.Reading, quantity string) interface{} {
	v, ok := r.Value(quantity)
	if !ok || math.IsNaN(v) {
		return nil
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
