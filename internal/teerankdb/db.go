// Package teerankdb is the update engine's persistence layer: it owns the
// single sqlite connection and every read/write used by the scheduler,
// poll pool, netclient registry and ranking engine.
package teerankdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ExpectedSchemaVersion is the schema version this build of the engine
// requires. Mirrors original_source/core/database.c's DATABASE_VERSION.
const ExpectedSchemaVersion = 6

// DB wraps the single sqlite connection used by the update engine. Only
// one connection is ever opened (spec.md §5): the presentation layer, a
// separate process, reads the same file concurrently thanks to WAL mode.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path, applies
// pragmas matching original_source/core/database.c's create_database, and
// runs pending migrations. It then checks the schema version and fails
// fast if it doesn't match ExpectedSchemaVersion.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	// The engine is single-threaded; never hand out more than one
	// physical connection, or sqlite's file lock will serialize them
	// anyway and our busy_timeout bookkeeping gets muddled.
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode on %s: %w", path, err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting synchronous mode on %s: %w", path, err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating database %s: %w", path, err)
	}

	db := &DB{conn: conn}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading schema version of %s: %w", path, err)
	}
	if version != ExpectedSchemaVersion {
		conn.Close()
		return nil, fmt.Errorf(
			"%s: schema version %d, expected %d", path, version, ExpectedSchemaVersion)
	}

	return db, nil
}

// Close closes the underlying connection, forcing a final WAL checkpoint.
func (d *DB) Close() error {
	return d.conn.Close()
}

// SchemaVersion reads the version row written at migration time.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := d.conn.QueryRowContext(ctx, "SELECT version FROM version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("querying version: %w", err)
	}
	return version, nil
}

// WALCheckpoint forces a WAL checkpoint, bounding the write-ahead log
// file's growth. Called after every rank recomputation.
func (d *DB) WALCheckpoint(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, "PRAGMA wal_checkpoint"); err != nil {
		return fmt.Errorf("checkpointing WAL: %w", err)
	}
	return nil
}

// Begin starts a transaction. Callers are expected to Commit or Rollback.
func (d *DB) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}

// Conn returns the underlying *sql.DB for callers that need raw access
// (the engine uses it to load endpoints and clear master references
// outside its per-batch transaction).
func (d *DB) Conn() *sql.DB {
	return d.conn
}
