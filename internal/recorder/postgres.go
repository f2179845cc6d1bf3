package recorder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pgTimeout = 5 * time.Second

// PostgresRecorder persists history to PostgreSQL through a pgx pool.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder connects, pings and migrates.
func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRecorder{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Println("[INFO] postgres recorder connected")
	return r, nil
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_events (
			id          BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			strategy    TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			items       INTEGER,
			duration_ms BIGINT,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_recorded_at ON fetch_events(recorded_at)`,

		`CREATE TABLE IF NOT EXISTS lookup_events (
			id          BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			query       TEXT NOT NULL,
			matched     TEXT,
			tier        TEXT,
			score       INTEGER,
			found       BOOLEAN NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lookup_recorded_at ON lookup_events(recorded_at)`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *PostgresRecorder) RecordFetch(evt *FetchEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `INSERT INTO fetch_events
		(strategy, outcome, items, duration_ms, error)
		VALUES ($1, $2, $3, $4, $5)`,
		evt.Strategy, evt.Outcome, evt.Items, evt.DurationMs, evt.Error,
	)
	return err
}

func (r *PostgresRecorder) RecordLookup(evt *LookupEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), pgTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `INSERT INTO lookup_events
		(query, matched, tier, score, found)
		VALUES ($1, $2, $3, $4, $5)`,
		evt.Query, evt.Matched, evt.Tier, evt.Score, evt.Found,
	)
	return err
}

func (r *PostgresRecorder) Close() error {
	log.Println("[INFO] closing postgres recorder")
	r.pool.Close()
	return nil
}
