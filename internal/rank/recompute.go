package rank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teerank/teerank-update/internal/teerankdb"
)

// RecomputeInterval is the normal spacing between recomputations.
// Mirrors original_source/update/main.c's recomputation schedule.
const RecomputeInterval = 5 * time.Minute

// RecomputeWarmup is how long the engine waits after startup before the
// very first recomputation, giving the first batch of polls a chance to
// land some pending changes.
const RecomputeWarmup = 10 * time.Second

// Recompute flushes every staged elo change into the live ranks table
// and recomputes dense ranks for every (gametype, map) league touched
// by a change, inside a single transaction. Indices are dropped before
// the bulk writes and recreated after, since per-row index maintenance
// is by far the most expensive part of this operation. Mirrors
// recompute_ranks.
func Recompute(ctx context.Context, db *teerankdb.DB, log *slog.Logger) error {
	start := time.Now()

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting recomputation transaction: %w", err)
	}
	defer tx.Rollback()

	leagues, err := teerankdb.PendingLeagues(ctx, tx)
	if err != nil {
		return fmt.Errorf("listing pending leagues: %w", err)
	}
	if len(leagues) == 0 {
		return nil
	}

	if err := teerankdb.DropRankIndices(ctx, tx); err != nil {
		return fmt.Errorf("dropping indices: %w", err)
	}

	if err := teerankdb.ApplyPendingElo(ctx, tx); err != nil {
		return fmt.Errorf("applying pending elo: %w", err)
	}

	for _, l := range leagues {
		if err := teerankdb.DoRecomputeRanks(ctx, tx, l.Gametype, l.Map); err != nil {
			return fmt.Errorf("recomputing league %s/%s: %w", l.Gametype, l.Map, err)
		}
	}

	if err := teerankdb.RecordChanges(ctx, tx, time.Now()); err != nil {
		return fmt.Errorf("recording rank history: %w", err)
	}

	if err := teerankdb.CreateRankIndices(ctx, tx); err != nil {
		return fmt.Errorf("recreating indices: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing recomputation: %w", err)
	}

	if err := db.WALCheckpoint(ctx); err != nil {
		return fmt.Errorf("checkpointing after recomputation: %w", err)
	}

	if log != nil {
		log.Info("recomputed ranks",
			"leagues", len(leagues), "elapsed", time.Since(start))
	}
	return nil
}
