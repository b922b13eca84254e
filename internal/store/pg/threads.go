package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/chefbot/internal/store"
)

// PGThreadStore implements store.ThreadStore backed by Postgres.
type PGThreadStore struct {
	db *sql.DB
}

func NewPGThreadStore(db *sql.DB) *PGThreadStore {
	return &PGThreadStore{db: db}
}

func (s *PGThreadStore) IsKnownThread(ctx context.Context, threadID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM chefbot_remote_threads WHERE thread_id = $1)`, threadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup thread: %w", err)
	}
	return exists, nil
}

func (s *PGThreadStore) MarkThread(ctx context.Context, threadID uuid.UUID, scopeKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chefbot_remote_threads (thread_id, scope_key) VALUES ($1, $2)
		 ON CONFLICT (thread_id) DO NOTHING`,
		threadID, scopeKey)
	if err != nil {
		return fmt.Errorf("mark thread: %w", err)
	}
	return nil
}

func (s *PGThreadStore) ForgetThread(ctx context.Context, threadID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chefbot_remote_threads WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("forget thread: %w", err)
	}
	return nil
}

func (s *PGThreadStore) ListThreads(ctx context.Context) ([]store.ThreadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id, scope_key, created_at FROM chefbot_remote_threads ORDER BY scope_key`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []store.ThreadRecord
	for rows.Next() {
		var rec store.ThreadRecord
		if err := rows.Scan(&rec.ThreadID, &rec.ScopeKey, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
