// Package migrations embeds the goose migration files that define
// teerank's schema.
package migrations

import "embed"

// FS holds the embedded *.sql migration files, consumed by goose via
// goose.SetBaseFS.
//
//go:embed *.sql
var FS embed.FS
