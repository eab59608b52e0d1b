// Package sqlite stores progress snapshots in a local SQLite database,
// one JSON document per user.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/store"
)

// Open opens (and creates if missing) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the snapshot table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS progress_snapshots (
		user_id TEXT PRIMARY KEY,
		snapshot TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Store is a ProgressStore backed by SQLite.
type Store struct {
	db *sql.DB
}

// New returns a Store using db.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Fetch(ctx context.Context, userID string) (*progress.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT snapshot FROM progress_snapshots WHERE user_id = ?`, userID)

	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("snapshot get: %w", err)
	}
	return store.Decode([]byte(data))
}

func (s *Store) Persist(ctx context.Context, userID string, snap *progress.Snapshot) error {
	data, err := store.Encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress_snapshots (user_id, snapshot, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE
		SET snapshot = excluded.snapshot, updated_at = CURRENT_TIMESTAMP
	`, userID, string(data))
	if err != nil {
		return fmt.Errorf("snapshot upsert: %w", err)
	}
	return nil
}
