package teerankdb

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/teerank/teerank-update/internal/model"
	"github.com/teerank/teerank-update/internal/teerankdb/migrations"
)

var gooseOnce sync.Once

// runMigrations applies the embedded goose migrations (the first of
// which also writes the version row), then seeds the default master
// list on a brand new database (goose itself only tracks which
// migration files ran, it knows nothing about teerank's own
// application-level seed data).
func runMigrations(conn *sql.DB) error {
	var dialectErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		dialectErr = goose.SetDialect("sqlite3")
	})
	if dialectErr != nil {
		return fmt.Errorf("setting goose dialect: %w", dialectErr)
	}

	if err := goose.Up(conn, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if err := seedDefaultMasters(conn); err != nil {
		return fmt.Errorf("seeding default masters: %w", err)
	}

	return nil
}

func seedDefaultMasters(conn *sql.DB) error {
	var count int
	if err := conn.QueryRow("SELECT COUNT(1) FROM masters").Scan(&count); err != nil {
		return fmt.Errorf("counting masters: %w", err)
	}
	if count > 0 {
		return nil
	}

	const insert = `
		INSERT OR IGNORE INTO masters (node, service, lastseen, expire)
		VALUES (?, ?, 0, 0)`

	for _, m := range model.DefaultMasters {
		if _, err := conn.Exec(insert, m.Node, m.Service); err != nil {
			return fmt.Errorf("inserting master %s:%s: %w", m.Node, m.Service, err)
		}
	}
	return nil
}
