package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storyloom/storyboard-api/internal/store"
)

// PostgresKVStore implements the store.KV interface using PostgreSQL.
// Values are stored as opaque bytes in the kv_entries table; expiry and
// TTL semantics remain the concern of the consuming component.
type PostgresKVStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresKVStore creates a new PostgresKVStore.
// If logger is nil, the default logger is used.
func NewPostgresKVStore(db store.DBTX, logger *slog.Logger) *PostgresKVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresKVStore{
		db:     db,
		logger: logger.With(slog.String("component", "postgres_kv_store")),
	}
}

// Ensure PostgresKVStore implements store.KV.
var _ store.KV = (*PostgresKVStore)(nil)

// Get retrieves the value stored under key.
// Returns store.ErrKeyNotFound if the key does not exist.
func (s *PostgresKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT value
		FROM kv_entries
		WHERE key = $1
	`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrKeyNotFound
		}
		s.logger.Error("failed to get key", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get key: %w", MapError(err))
	}

	return value, nil
}

// Set stores value under key, overwriting any existing value.
func (s *PostgresKVStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to set key", "key", key, "error", err)
		return fmt.Errorf("failed to set key: %w", MapError(err))
	}

	return nil
}

// Delete removes the value stored under key.
// Deleting a missing key is not an error.
func (s *PostgresKVStore) Delete(ctx context.Context, key string) error {
	query := `
		DELETE FROM kv_entries
		WHERE key = $1
	`

	_, err := s.db.ExecContext(ctx, query, key)
	if err != nil {
		s.logger.Error("failed to delete key", "key", key, "error", err)
		return fmt.Errorf("failed to delete key: %w", MapError(err))
	}

	return nil
}
