package teerankdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerank/teerank-update/internal/model"
	"github.com/teerank/teerank-update/internal/testutil"
)

func TestLoadMastersIncludesSeededDefaults(t *testing.T) {
	db := testutil.OpenDB(t)
	masters, err := LoadMasters(context.Background(), db.Conn())
	require.NoError(t, err)
	assert.Len(t, masters, len(model.DefaultMasters))
}

func TestWriteMasterUpdatesExistingRow(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	q := db.Conn()

	m := model.Master{
		Node: "master1.teeworlds.com", Service: "8300",
		LastSeen: time.Now().Truncate(time.Second), Expire: time.Now().Add(time.Minute).Truncate(time.Second),
	}
	require.NoError(t, WriteMaster(ctx, q, &m))

	got, err := GetMaster(ctx, q, m.Node, m.Service)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, m.LastSeen.Equal(got.LastSeen))
	assert.True(t, m.Expire.Equal(got.Expire))
}

func TestGetMasterReturnsNilWhenUnknown(t *testing.T) {
	db := testutil.OpenDB(t)
	got, err := GetMaster(context.Background(), db.Conn(), "unknown.example.com", "1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
