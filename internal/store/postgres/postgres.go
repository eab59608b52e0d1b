// Package postgres stores progress snapshots as one JSONB document per user
// in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/store"
)

// PoolConfig holds the connection settings.
type PoolConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// NewPool opens a connection pool and checks the database is reachable.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	log.Info("Connected to PostgreSQL")
	return pool, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS progress_snapshots (
		user_id    TEXT PRIMARY KEY,
		snapshot   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// Migrate creates the snapshot table if it does not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create progress_snapshots: %w", err)
	}
	return nil
}

// Store is a ProgressStore backed by PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// New returns a Store using db.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Fetch returns the user's snapshot or store.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, userID string) (*progress.Snapshot, error) {
	query := `
		SELECT snapshot
		FROM progress_snapshots
		WHERE user_id = $1
	`

	var data []byte
	if err := s.db.QueryRow(ctx, query, userID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return store.Decode(data)
}

// Persist overwrites the user's snapshot.
func (s *Store) Persist(ctx context.Context, userID string, snap *progress.Snapshot) error {
	data, err := store.Encode(snap)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO progress_snapshots (user_id, snapshot, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot,
		    updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, userID, string(data)); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
