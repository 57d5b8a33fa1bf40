package sqlite

import (
	"context"
	"testing"
)

// setupTestDB opens a migrated in-memory database private to the test. The
// test name keys the shared cache, so parallel tests never see each other.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := openDB(context.Background(), memoryDSN(t.Name()), MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}
