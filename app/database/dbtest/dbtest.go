// Package dbtest opens throwaway migrated databases for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/lysyi3m/content-calendar/app/database"
)

// New opens a migrated database in a temporary directory that is removed
// when the test ends.
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "calendar.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}
