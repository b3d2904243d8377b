package teerankdb

import (
	"context"
	"fmt"
	"time"

	"github.com/teerank/teerank-update/internal/model"
)

// LatestElo returns the elo that should be used as a player's current
// score in (gametype, map): pending takes precedence over ranks because
// a recomputation may not have flushed it yet. Mirrors
// original_source/update/rank.c's latest_elo. found is false only when
// the player has never been ranked before, in which case the caller
// should fall back to model.DefaultElo.
func LatestElo(ctx context.Context, q Querier, name, gametype, mapName string) (elo int, found bool, err error) {
	err = q.QueryRowContext(ctx,
		"SELECT elo FROM pending WHERE name = ? AND gametype = ? AND map = ?",
		name, gametype, mapName).Scan(&elo)
	if err == nil {
		return elo, true, nil
	}
	if !isNoRows(err) {
		return 0, false, fmt.Errorf("querying pending elo of %q: %w", name, err)
	}

	err = q.QueryRowContext(ctx,
		"SELECT elo FROM ranks WHERE name = ? AND gametype = ? AND map = ?",
		name, gametype, mapName).Scan(&elo)
	if err == nil {
		return elo, true, nil
	}
	if isNoRows(err) {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("querying ranked elo of %q: %w", name, err)
}

// StagePendingElo records a new elo score for (name, gametype, map),
// waiting for the next rank recomputation to make it visible. Mirrors
// update_elos' INSERT OR REPLACE INTO pending.
func StagePendingElo(ctx context.Context, q Querier, p model.PendingElo) error {
	_, err := q.ExecContext(ctx,
		"INSERT OR REPLACE INTO pending (name, gametype, map, elo) VALUES (?, ?, ?, ?)",
		p.Name, p.Gametype, p.Map, p.Elo)
	if err != nil {
		return fmt.Errorf("staging pending elo of %q (%s/%s): %w", p.Name, p.Gametype, p.Map, err)
	}
	return nil
}

// PendingLeague identifies one (gametype, map) combination with staged
// changes waiting to be flushed.
type PendingLeague struct {
	Gametype string
	Map      string
}

// PendingLeagues lists the distinct (gametype, map) pairs with at least
// one staged change, mirroring recompute_ranks' GROUP BY query — only
// these leagues need their ranks recomputed.
func PendingLeagues(ctx context.Context, q Querier) ([]PendingLeague, error) {
	rows, err := q.QueryContext(ctx, "SELECT gametype, map FROM pending GROUP BY gametype, map")
	if err != nil {
		return nil, fmt.Errorf("listing pending leagues: %w", err)
	}
	defer rows.Close()

	var out []PendingLeague
	for rows.Next() {
		var l PendingLeague
		if err := rows.Scan(&l.Gametype, &l.Map); err != nil {
			return nil, fmt.Errorf("scanning pending league: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DropRankIndices drops the index maintained on the ranks table
// (ranks_by_gametype), so recomputation doesn't pay its maintenance
// cost row by row. The players table's index is left in place.
// Mirrors drop_all_indices.
func DropRankIndices(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, "DROP INDEX IF EXISTS ranks_by_gametype"); err != nil {
		return fmt.Errorf("dropping ranks_by_gametype: %w", err)
	}
	return nil
}

// CreateRankIndices recreates the index dropped by DropRankIndices.
// Mirrors create_all_indices.
func CreateRankIndices(ctx context.Context, q Querier) error {
	_, err := q.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS ranks_by_gametype ON ranks (gametype, map, rank)")
	if err != nil {
		return fmt.Errorf("creating ranks_by_gametype: %w", err)
	}
	return nil
}

// ApplyPendingElo commits every staged elo change into the live ranks
// table, picking up each player's lastseen from the players table.
// Ranks aren't assigned here; DoRecomputeRanks does that right after.
// Mirrors apply_pending_elo.
func ApplyPendingElo(ctx context.Context, q Querier) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO ranks (name, gametype, map, elo, lastseen, rank)
		SELECT p.name, p.gametype, p.map, p.elo,
		       COALESCE((SELECT lastseen FROM players WHERE players.name = p.name), 0),
		       NULL
		FROM pending AS p`)
	if err != nil {
		return fmt.Errorf("applying pending elo: %w", err)
	}
	return nil
}

// DoRecomputeRanks assigns dense ranks within one (gametype, map)
// league, ordered by elo desc, lastseen desc, name desc (the same
// tie-break the original used to make ranks deterministic). Mirrors
// do_recompute_ranks.
func DoRecomputeRanks(ctx context.Context, q Querier, gametype, mapName string) error {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM ranks
		 WHERE gametype = ? AND map = ?
		 ORDER BY elo DESC, lastseen DESC, name DESC`, gametype, mapName)
	if err != nil {
		return fmt.Errorf("selecting league %s/%s: %w", gametype, mapName, err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning league %s/%s: %w", gametype, mapName, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for i, name := range names {
		rank := i + 1
		_, err := q.ExecContext(ctx,
			"UPDATE ranks SET rank = ? WHERE name = ? AND gametype = ? AND map = ?",
			rank, name, gametype, mapName)
		if err != nil {
			return fmt.Errorf("ranking %q in %s/%s: %w", name, gametype, mapName, err)
		}
	}
	return nil
}

// RecordChanges appends one ranks_historic row per player with a
// pending change, then empties the pending table. Mirrors
// record_changes.
func RecordChanges(ctx context.Context, q Querier, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO ranks_historic (name, ts, gametype, map, elo, rank)
		SELECT ranks.name, ?, ranks.gametype, ranks.map, ranks.elo, ranks.rank
		FROM pending
		JOIN ranks
		  ON pending.name = ranks.name
		 AND pending.gametype = ranks.gametype
		 AND pending.map = ranks.map`, now.Unix())
	if err != nil {
		return fmt.Errorf("recording rank history: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM pending"); err != nil {
		return fmt.Errorf("flushing pending: %w", err)
	}
	return nil
}

// PruneHistoryBefore deletes every ranks_historic row older than cutoff.
// Not called anywhere in the engine's own loop; a retention hook for a
// deployment that wants to bound ranks_historic's growth.
func PruneHistoryBefore(ctx context.Context, q Querier, cutoff time.Time) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM ranks_historic WHERE ts < ?", cutoff.Unix()); err != nil {
		return fmt.Errorf("pruning rank history before %s: %w", cutoff, err)
	}
	return nil
}

// GetRank returns a player's live rank in a league, or nil if unranked.
func GetRank(ctx context.Context, q Querier, name, gametype, mapName string) (*model.Rank, error) {
	var r model.Rank
	var lastseen int64
	var rank *uint

	err := q.QueryRowContext(ctx,
		`SELECT name, gametype, map, elo, lastseen, rank
		 FROM ranks WHERE name = ? AND gametype = ? AND map = ?`,
		name, gametype, mapName).
		Scan(&r.Name, &r.Gametype, &r.Map, &r.Elo, &lastseen, &rank)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying rank of %q: %w", name, err)
	}

	r.LastSeen = time.Unix(lastseen, 0)
	r.Rank = rank
	return &r, nil
}
