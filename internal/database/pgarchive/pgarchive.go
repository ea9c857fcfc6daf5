// Package pgarchive mirrors call records and transcripts into PostgreSQL
// for long-term reporting across call-agent instances. It is optional:
// the archive is only wired in when a DSN is configured, and the local
// SQLite store remains the source of truth.
package pgarchive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rupeeq/callagent/internal/event"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Archive implements event.Sink backed by PostgreSQL.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens a PostgreSQL connection and runs pending migrations.
func New(dsn string, logger *slog.Logger) (*Archive, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	a := &Archive{db: db, logger: logger.With("subsystem", "pgarchive")}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("postgresql archive opened")
	return a, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// migrate runs all pending SQL migration files in order.
func (a *Archive) migrate() error {
	_, err := a.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version := strings.TrimSuffix(entry.Name(), ".sql")

		var count int
		if err := a.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		tx, err := a.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %s: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", version, err)
		}

		slog.Info("applied migration", "version", version)
	}
	return nil
}

// Append archives one transcript line.
func (a *Archive) Append(ctx context.Context, e event.TranscriptEntry) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO archived_transcripts (session_id, speaker, message, state_id, intent, sentiment, spoken_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.SessionID, string(e.Speaker), e.Message, e.StateID, e.Intent, e.Sentiment, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("archiving transcript: %w", err)
	}
	return nil
}

// Notify archives the call outcome. Upsert on session id keeps the
// archive idempotent under redelivery.
func (a *Archive) Notify(ctx context.Context, e event.SessionEnded) error {
	collected, err := json.Marshal(e.CollectedData)
	if err != nil {
		return fmt.Errorf("encoding collected data: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO archived_calls (session_id, outcome, sentiment_score, collected_data, ended_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO UPDATE
		 SET outcome = EXCLUDED.outcome,
		     sentiment_score = EXCLUDED.sentiment_score,
		     collected_data = EXCLUDED.collected_data,
		     ended_at = EXCLUDED.ended_at`,
		e.SessionID, e.Outcome, e.Sentiment, string(collected), e.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("archiving call: %w", err)
	}
	return nil
}

// Ensure Archive satisfies event.Sink.
var _ event.Sink = (*Archive)(nil)
