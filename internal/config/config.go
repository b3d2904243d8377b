// Package config holds the update engine's process-wide configuration.
// Unlike the rest of teerank (the presentation layer, which is out of
// scope here), the update engine takes no command-line flags: it is
// configured entirely through a couple of environment variables, per the
// spec's CLI surface.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Config is the update engine's process-wide configuration.
type Config struct {
	// Root is the directory (or path prefix) holding the sqlite database
	// file. Set via TEERANK_ROOT.
	Root string

	// Verbose enables structured progress logging to standard error when
	// set via TEERANK_VERBOSE.
	Verbose bool
}

// DefaultRoot is used when TEERANK_ROOT is unset.
const DefaultRoot = "."

// DBFileName is the sqlite database file name inside Root.
const DBFileName = "teerank.db"

// Default returns a Config with the same defaults the original teerank
// binary falls back to when no environment is set.
func Default() Config {
	return Config{
		Root:    DefaultRoot,
		Verbose: false,
	}
}

// Load reads TEERANK_ROOT and TEERANK_VERBOSE from the environment,
// falling back to Default() for anything unset.
func Load() Config {
	cfg := Default()

	if root := os.Getenv("TEERANK_ROOT"); root != "" {
		cfg.Root = root
	}
	if v := os.Getenv("TEERANK_VERBOSE"); v != "" {
		cfg.Verbose = true
	}

	return cfg
}

// DBPath returns the path to the sqlite database file under Root.
func (c Config) DBPath() string {
	return filepath.Join(c.Root, DBFileName)
}

// LogLevel returns the slog level implied by Verbose.
func (c Config) LogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
