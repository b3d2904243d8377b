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

func TestUpdatePlayersInsertsUnknownPlayers(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	q := db.Conn()

	s := &model.Server{IP: "1.2.3.4", Port: "8303", Clients: []model.Client{
		{Name: "alice", Clan: "x"},
	}}
	now := time.Now().Truncate(time.Second)
	require.NoError(t, UpdatePlayers(ctx, q, s, now))

	p, err := GetPlayer(ctx, q, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "x", p.Clan)
	assert.Equal(t, "1.2.3.4", p.ServerIP)
	assert.True(t, now.Equal(p.LastSeen))
}

func TestUpdatePlayersRefreshesKnownPlayers(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	q := db.Conn()

	s := &model.Server{IP: "1.2.3.4", Port: "8303", Clients: []model.Client{{Name: "alice", Clan: "x"}}}
	require.NoError(t, UpdatePlayers(ctx, q, s, time.Now()))

	s2 := &model.Server{IP: "5.6.7.8", Port: "8304", Clients: []model.Client{{Name: "alice", Clan: "y"}}}
	later := time.Now().Add(time.Minute).Truncate(time.Second)
	require.NoError(t, UpdatePlayers(ctx, q, s2, later))

	p, err := GetPlayer(ctx, q, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "y", p.Clan)
	assert.Equal(t, "5.6.7.8", p.ServerIP)
	assert.True(t, later.Equal(p.LastSeen))
}

func TestGetPlayerReturnsNilWhenUnknown(t *testing.T) {
	db := testutil.OpenDB(t)
	p, err := GetPlayer(context.Background(), db.Conn(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}
