// Package testutil provides test-only helpers shared across the update
// engine's package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/teerank/teerank-update/internal/teerankdb"
)

// OpenDB opens a fresh sqlite database under the test's temp dir,
// migrated and seeded exactly like production, and closes it on
// cleanup.
func OpenDB(tb testing.TB) *teerankdb.DB {
	tb.Helper()
	ctx := context.Background()

	path := filepath.Join(tb.TempDir(), "teerank.db")
	db, err := teerankdb.Open(ctx, path)
	if err != nil {
		tb.Fatalf("opening test database: %v", err)
	}
	tb.Cleanup(func() {
		if err := db.Close(); err != nil {
			tb.Logf("closing test database: %v", err)
		}
	})

	return db
}
