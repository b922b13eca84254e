// Package sqlite persists channel bindings and known remote threads in a
// local SQLite file, so a restarted bot reuses the same delivery threads.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nextlevelbuilder/chefbot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS channel_bindings (
	surface_id  TEXT PRIMARY KEY,
	channel_id  TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS remote_threads (
	thread_id   TEXT PRIMARY KEY,
	scope_key   TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);`

// Store implements store.BindingStore and store.ThreadStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; sqlite serialises anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStores opens the database at path and wraps it as store.Stores.
func NewStores(path string) (*store.Stores, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &store.Stores{Bindings: s, Threads: s, Close: s.Close}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetBinding(ctx context.Context, surfaceID string) (string, error) {
	var channelID string
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id FROM channel_bindings WHERE surface_id = ?`, surfaceID).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get binding: %w", err)
	}
	return channelID, nil
}

func (s *Store) PutBinding(ctx context.Context, surfaceID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_bindings (surface_id, channel_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (surface_id) DO UPDATE SET channel_id = excluded.channel_id, updated_at = excluded.updated_at`,
		surfaceID, channelID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put binding: %w", err)
	}
	return nil
}

func (s *Store) DeleteBinding(ctx context.Context, surfaceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM channel_bindings WHERE surface_id = ?`, surfaceID); err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return nil
}

func (s *Store) IsKnownThread(ctx context.Context, threadID uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM remote_threads WHERE thread_id = ?`, threadID.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup thread: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkThread(ctx context.Context, threadID uuid.UUID, scopeKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO remote_threads (thread_id, scope_key, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (thread_id) DO NOTHING`,
		threadID.String(), scopeKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark thread: %w", err)
	}
	return nil
}

func (s *Store) ForgetThread(ctx context.Context, threadID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM remote_threads WHERE thread_id = ?`, threadID.String()); err != nil {
		return fmt.Errorf("forget thread: %w", err)
	}
	return nil
}

func (s *Store) ListThreads(ctx context.Context) ([]store.ThreadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, scope_key, created_at FROM remote_threads ORDER BY scope_key`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []store.ThreadRecord
	for rows.Next() {
		var (
			id  string
			rec store.ThreadRecord
		)
		if err := rows.Scan(&id, &rec.ScopeKey, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		if rec.ThreadID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse thread id %q: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
