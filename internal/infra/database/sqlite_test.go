package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mkrupp/eventhub/internal/infra/database"
)

func TestOpenSQLiteConstraints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "nested", "test.db"),
		`CREATE TABLE IF NOT EXISTS items (id TEXT PRIMARY KEY, name TEXT UNIQUE NOT NULL)`,
	)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'one')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'two')`)
	if !database.IsPrimaryKeyViolation(err) || database.IsUniqueViolation(err) {
		t.Errorf("duplicate id: got %v, want primary key violation", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('b', 'one')`)
	if !database.IsUniqueViolation(err) || database.IsPrimaryKeyViolation(err) {
		t.Errorf("duplicate name: got %v, want unique violation", err)
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	t.Parallel()

	db, err := database.OpenSQLite(context.Background(), database.MemoryPath,
		`CREATE TABLE t (v INTEGER)`,
		`INSERT INTO t (v) VALUES (1), (2)`,
	)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count); err != nil || count != 2 {
		t.Errorf("count = %d, %v; want 2", count, err)
	}
}
