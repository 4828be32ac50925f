// Package repotest opens throwaway SQLite databases with the real schema for
// package tests.
package repotest

import (
	"path/filepath"
	"testing"

	"github.com/celiaho/HocusFocusToDo/internal/repository"
)

// Open returns a migrated SQLite database in a temp dir, closed on cleanup.
func Open(t testing.TB) *repository.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "hocusfocus.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := repository.NewDB("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}
