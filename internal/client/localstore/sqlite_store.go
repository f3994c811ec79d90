package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mkrupp/eventhub/internal/infra/database"
	"github.com/mkrupp/eventhub/internal/infra/logging"
)

// SQLiteStoreConfig holds configuration for the SQLite store.
type SQLiteStoreConfig struct {
	// DatabasePath is the filesystem path of the profile's SQLite database.
	// Every client instance of the profile opens the same file.
	DatabasePath string `env:"DATABASE_PATH" default:"var/profile/localstore.db"`
}

// SQLiteStore implements Store using SQLite as the storage backend.
type SQLiteStore struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStoreFactory creates a factory function that returns a new SQLiteStore.
func SQLiteStoreFactory(cfg SQLiteStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return NewSQLiteStore(ctx, cfg)
	}
}

const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`

// NewSQLiteStore creates a new SQLiteStore with the given configuration.
func NewSQLiteStore(ctx context.Context, cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	db, err := database.OpenSQLite(ctx, cfg.DatabasePath, schema)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		log:       logging.GetLogger("client.localstore.sqlite_store").With(logging.Group("db", "path", cfg.DatabasePath)),
		writeLock: new(sync.Mutex),
	}, nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string

	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}

	return value, true, nil
}

// Set implements Store.Set.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}

	s.log.DebugContext(ctx, "key set", "key", key)

	return nil
}

// Remove implements Store.Remove.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	s.log.DebugContext(ctx, "key removed", "key", key)

	return nil
}

// Keys implements Store.Keys.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) (_ []string, err error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key", prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}

	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", cerr)
		}
	}()

	keys := make([]string, 0)

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}

		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}

	return keys, nil
}

// RemovePrefix implements Store.RemovePrefix.
func (s *SQLiteStore) RemovePrefix(ctx context.Context, prefix string) (int, error) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE substr(key, 1, length(?)) = ?", prefix, prefix)
	if err != nil {
		return 0, fmt.Errorf("delete prefix %s: %w", prefix, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	s.log.DebugContext(ctx, "keys removed", "prefix", prefix, "count", removed)

	return int(removed), nil
}

// Close implements Store.Close.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
