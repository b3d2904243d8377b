package teerankdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMigratesAndSeedsDefaultMasters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "teerank.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	masters, err := LoadMasters(ctx, db.Conn())
	require.NoError(t, err)
	assert.NotEmpty(t, masters)
}

func TestOpenIsIdempotentOnExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "teerank.db")

	db1, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(ctx, path)
	require.NoError(t, err)
	defer db2.Close()

	masters, err := LoadMasters(ctx, db2.Conn())
	require.NoError(t, err)
	assert.NotEmpty(t, masters, "re-opening must not re-seed duplicate masters nor lose them")
}
