// Package database opens the SQLite databases backing the repositories.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// OpenSQLite opens the database at path, applies the connection pragmas and
// runs the schema statements. Parent directories are created as needed.
func OpenSQLite(ctx context.Context, path string, schema ...string) (*sql.DB, error) {
	dsn := path

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir all: %w", err)
		}

		dsn = "file:" + filepath.Clean(path)
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", "busy_timeout(5000)")
	pragmas.Add("_pragma", "foreign_keys(1)")

	if path != MemoryPath {
		pragmas.Add("_pragma", "journal_mode(WAL)")
		pragmas.Add("_pragma", "synchronous(NORMAL)")
	}

	db, err := sql.Open("sqlite", dsn+"?"+pragmas.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if path == MemoryPath {
		// every pooled connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return db, nil
}

// IsPrimaryKeyViolation reports whether err is a primary key constraint failure.
func IsPrimaryKeyViolation(err error) bool {
	return constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	return constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func constraintCode(err error) int {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()
	}

	return 0
}

// BoolInt converts b to the 0/1 SQLite stores for booleans.
func BoolInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
