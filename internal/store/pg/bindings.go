package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/chefbot/internal/store"
)

// PGBindingStore implements store.BindingStore backed by Postgres.
type PGBindingStore struct {
	db *sql.DB
}

func NewPGBindingStore(db *sql.DB) *PGBindingStore {
	return &PGBindingStore{db: db}
}

func (s *PGBindingStore) GetBinding(ctx context.Context, surfaceID string) (string, error) {
	var channelID string
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id FROM chefbot_channel_bindings WHERE surface_id = $1`, surfaceID).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get binding: %w", err)
	}
	return channelID, nil
}

func (s *PGBindingStore) PutBinding(ctx context.Context, surfaceID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chefbot_channel_bindings (surface_id, channel_id, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (surface_id) DO UPDATE SET channel_id = EXCLUDED.channel_id, updated_at = NOW()`,
		surfaceID, channelID)
	if err != nil {
		return fmt.Errorf("put binding: %w", err)
	}
	return nil
}

func (s *PGBindingStore) DeleteBinding(ctx context.Context, surfaceID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chefbot_channel_bindings WHERE surface_id = $1`, surfaceID); err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	return nil
}
