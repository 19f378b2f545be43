// Package history implements an optional Postgres-backed run-history
// recorder. It sits entirely outside the extraction engine: a Recorder never feeds
// data back into extraction or orphan computation, it only appends a row
// per completed run for operators who want a queryable audit trail across
// invocations. Wiring it or not changes nothing about a single run's
// output.
//
// Migrations follow golang-migrate/migrate/v4's standard source/iofs +
// database/postgres convention.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunSummary is one row of inventory_runs: the minimal audit trail of a
// completed extraction run.
type RunSummary struct {
	GeneratedAt    time.Time `db:"generated_at"`
	OutputDir      string    `db:"output_dir"`
	Preset         string    `db:"preset"`
	ExtractorKinds []string  `db:"extractor_kinds"`
	DurationMs     int64     `db:"duration_ms"`
	TotalObjects   int       `db:"total_objects"`
	TotalErrors    int       `db:"total_errors"`
	Partial        bool      `db:"partial"`
}

// Recorder appends RunSummary rows to Postgres. A nil *Recorder is valid
// and every method on it is a no-op, so callers can wire it unconditionally
// and only construct one when SFMC_HISTORY_DSN is set.
type Recorder struct {
	db  *sqlx.DB
	log *logger.Logger
}

// Open connects to dsn, applies pending migrations, and returns a Recorder.
func Open(ctx context.Context, dsn string, log *logger.Logger) (*Recorder, error) {
	if log == nil {
		log = logger.NewDefault("history")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("history: ping postgres: %w", err)
	}

	if err := applyMigrations(sqlDB); err != nil {
		return nil, err
	}

	return &Recorder{db: sqlx.NewDb(sqlDB, "postgres"), log: log}, nil
}

func applyMigrations(sqlDB *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("history: load migration source: %w", err)
	}
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("history: postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("history: init migrate: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("history: apply migrations: %w", err)
	}
	return nil
}

// Record appends one RunSummary row. It logs and swallows errors rather
// than failing the run: history is diagnostic, never load-bearing.
func (r *Recorder) Record(ctx context.Context, s RunSummary) {
	if r == nil || r.db == nil {
		return
	}
	const q = `
		INSERT INTO inventory_runs
			(generated_at, output_dir, preset, extractor_kinds, duration_ms, total_objects, total_errors, partial)
		VALUES
			(:generated_at, :output_dir, :preset, :extractor_kinds, :duration_ms, :total_objects, :total_errors, :partial)`
	bind := struct {
		GeneratedAt    time.Time      `db:"generated_at"`
		OutputDir      string         `db:"output_dir"`
		Preset         string         `db:"preset"`
		ExtractorKinds pq.StringArray `db:"extractor_kinds"`
		DurationMs     int64          `db:"duration_ms"`
		TotalObjects   int            `db:"total_objects"`
		TotalErrors    int            `db:"total_errors"`
		Partial        bool           `db:"partial"`
	}{
		GeneratedAt:    s.GeneratedAt,
		OutputDir:      s.OutputDir,
		Preset:         s.Preset,
		ExtractorKinds: pq.StringArray(s.ExtractorKinds),
		DurationMs:     s.DurationMs,
		TotalObjects:   s.TotalObjects,
		TotalErrors:    s.TotalErrors,
		Partial:        s.Partial,
	}
	if _, err := r.db.NamedExecContext(ctx, q, bind); err != nil {
		r.log.WithField("error", err.Error()).Warn("history: failed to record run summary")
	}
}

// Recent returns the most recently recorded runs, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var rows []struct {
		GeneratedAt    time.Time      `db:"generated_at"`
		OutputDir      string         `db:"output_dir"`
		Preset         string         `db:"preset"`
		ExtractorKinds pq.StringArray `db:"extractor_kinds"`
		DurationMs     int64          `db:"duration_ms"`
		TotalObjects   int            `db:"total_objects"`
		TotalErrors    int            `db:"total_errors"`
		Partial        bool           `db:"partial"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT generated_at, output_dir, preset, extractor_kinds, duration_ms, total_objects, total_errors, partial
		 FROM inventory_runs ORDER BY generated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, len(rows))
	for i, row := range rows {
		out[i] = RunSummary{
			GeneratedAt:    row.GeneratedAt,
			OutputDir:      row.OutputDir,
			Preset:         row.Preset,
			ExtractorKinds: []string(row.ExtractorKinds),
			DurationMs:     row.DurationMs,
			TotalObjects:   row.TotalObjects,
			TotalErrors:    row.TotalErrors,
			Partial:        row.Partial,
		}
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
