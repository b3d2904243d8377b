package rank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teerank/teerank-update/internal/model"
	"github.com/teerank/teerank-update/internal/teerankdb"
	"github.com/teerank/teerank-update/internal/testutil"
)

func TestRecomputeAssignsDenseRanksByElo(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	q := db.Conn()

	for _, p := range []model.PendingElo{
		{Name: "alice", Gametype: "CTF", Map: "", Elo: 1600},
		{Name: "bob", Gametype: "CTF", Map: "", Elo: 1500},
		{Name: "carol", Gametype: "CTF", Map: "", Elo: 1700},
	} {
		require.NoError(t, teerankdb.StagePendingElo(ctx, q, p))
	}

	require.NoError(t, Recompute(ctx, db, nil))

	carol, err := teerankdb.GetRank(ctx, q, "carol", "CTF", "")
	require.NoError(t, err)
	require.NotNil(t, carol)
	require.NotNil(t, carol.Rank)
	assert.EqualValues(t, 1, *carol.Rank)

	alice, err := teerankdb.GetRank(ctx, q, "alice", "CTF", "")
	require.NoError(t, err)
	require.NotNil(t, alice.Rank)
	assert.EqualValues(t, 2, *alice.Rank)

	bob, err := teerankdb.GetRank(ctx, q, "bob", "CTF", "")
	require.NoError(t, err)
	require.NotNil(t, bob.Rank)
	assert.EqualValues(t, 3, *bob.Rank)
}

func TestRecomputeIsNoopWithNothingPending(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	require.NoError(t, Recompute(ctx, db, nil))

	rank, err := teerankdb.GetRank(ctx, db.Conn(), "nobody", "CTF", "")
	require.NoError(t, err)
	assert.Nil(t, rank)
}

func TestRecomputeRecordsHistoryAndClearsPending(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	q := db.Conn()

	require.NoError(t, teerankdb.StagePendingElo(ctx, q, model.PendingElo{
		Name: "alice", Gametype: "CTF", Map: "", Elo: 1600,
	}))
	require.NoError(t, Recompute(ctx, db, nil))

	var pendingCount int
	require.NoError(t, q.QueryRowContext(ctx, "SELECT COUNT(1) FROM pending").Scan(&pendingCount))
	assert.Equal(t, 0, pendingCount)

	var historyCount int
	require.NoError(t, q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM ranks_historic WHERE name = ?", "alice").Scan(&historyCount))
	assert.Equal(t, 1, historyCount)
}
