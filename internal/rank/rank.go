// Package rank implements the Elo ranking engine: turning a pair of
// server snapshots into staged elo changes, and periodically flushing
// those changes into live, user-visible ranks. Grounded on
// original_source/update/rank.c.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/teerank/teerank-update/internal/model"
	"github.com/teerank/teerank-update/internal/teerankdb"
)

// K is the Elo K-factor: the maximum points exchanged per game.
const K = 25

// minElapsed and maxElapsed bound how far apart two snapshots of the
// same game can be and still be considered the same, ranked session.
const (
	minElapsed = 60
	maxElapsed = 30 * 60
)

// minRankablePlayers is the smallest rankable population a game can
// have and still be ranked; fewer makes the result too volatile.
const minRankablePlayers = 4

// newGameScoreDrop is the average-score-drop threshold past which two
// snapshots are assumed to belong to different games (a new round
// started between polls).
const newGameScoreDrop = 3.0

// playerInfo carries everything needed to rank one player present in
// the new snapshot. Mirrors rank.c's struct player_info.
type playerInfo struct {
	name string

	gametypeElo int
	mapElo      int

	rankable bool

	old *model.Client
	new *model.Client
}

// loadPlayers builds one playerInfo per unique client in new, fetching
// each one's latest known elo. Mirrors load_players.
func loadPlayers(ctx context.Context, q teerankdb.Querier, old, new *model.Server) ([]*playerInfo, error) {
	seen := make(map[string]bool)
	var players []*playerInfo

	for i := range new.Clients {
		c := &new.Clients[i]
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true

		gametypeElo, err := latestEloOrDefault(ctx, q, c.Name, new.Gametype, "")
		if err != nil {
			return nil, err
		}
		mapElo, err := latestEloOrDefault(ctx, q, c.Name, new.Gametype, new.Map)
		if err != nil {
			return nil, err
		}

		players = append(players, &playerInfo{
			name:        c.Name,
			gametypeElo: gametypeElo,
			mapElo:      mapElo,
			new:         c,
			old:         old.FindClient(c.Name),
		})
	}

	return players, nil
}

func latestEloOrDefault(ctx context.Context, q teerankdb.Querier, name, gametype, mapName string) (int, error) {
	elo, found, err := teerankdb.LatestElo(ctx, q, name, gametype, mapName)
	if err != nil {
		return 0, fmt.Errorf("loading elo of %q: %w", name, err)
	}
	if !found {
		return model.DefaultElo, nil
	}
	return elo, nil
}

// isNewGame reports whether the average score dropped enough between
// old and new to believe the round restarted. Mirrors is_new_game.
func isNewGame(players []*playerInfo) bool {
	var oldTotal, newTotal, n int

	for _, p := range players {
		if p.old != nil && p.new != nil {
			oldTotal += p.old.Score
			newTotal += p.new.Score
			n++
		}
	}
	if n == 0 {
		return false
	}

	oldAvg := float64(oldTotal) / float64(n)
	newAvg := float64(newTotal) / float64(n)
	return oldAvg-newAvg > newGameScoreDrop
}

// markRankablePlayers decides, for the whole snapshot pair, whether
// this update can be ranked at all, and if so which players in it
// count. Mirrors mark_rankable_players.
func markRankablePlayers(old, new *model.Server, players []*playerInfo, elapsed int64) {
	dontRank := func() {
		for _, p := range players {
			p.rankable = false
		}
	}

	if isNewGame(players) {
		dontRank()
		return
	}
	if new.Gametype != old.Gametype || new.Map != old.Map {
		dontRank()
		return
	}
	if elapsed > maxElapsed || elapsed < minElapsed {
		dontRank()
		return
	}

	rankable := 0
	for _, p := range players {
		if p.old != nil && p.new.InGame {
			p.rankable = true
			rankable++
		}
	}

	if rankable < minRankablePlayers {
		dontRank()
	}
}

// elapsedSeconds mirrors get_elapsed_time: negative spans (a clock
// going backwards) are treated as zero elapsed time, which always
// fails the minElapsed check below.
func elapsedSeconds(old, new *model.Server) int64 {
	if old.LastSeen.After(new.LastSeen) {
		return 0
	}
	return int64(new.LastSeen.Sub(old.LastSeen).Seconds())
}

// eloP is Elo's logistic expected-score function, clamped to +/-400 so
// that one lopsided pairing can't dominate the average. Mirrors p().
func eloP(delta float64) float64 {
	if delta > 400 {
		delta = 400
	} else if delta < -400 {
		delta = -400
	}
	return 1.0 / (1.0 + math.Pow(10, -delta/400))
}

// eloDelta computes the gametype and map elo deltas of p1 against p2
// for this round. Mirrors compute_elo_delta.
func eloDelta(p1, p2 *playerInfo) (gametype, mapDelta int) {
	d1 := p1.new.Score - p1.old.Score
	d2 := p2.new.Score - p2.old.Score

	var w float64
	switch {
	case d1 < d2:
		w = 0.0
	case d1 == d2:
		w = 0.5
	default:
		w = 1.0
	}

	gametype = int(K * (w - eloP(float64(p1.gametypeElo-p2.gametypeElo))))
	mapDelta = int(K * (w - eloP(float64(p1.mapElo-p2.mapElo))))
	return gametype, mapDelta
}

// newElo averages player's delta against every other rankable player
// in the round, multiplayer Elo's way of generalizing a two-player
// formula. Mirrors compute_new_elo.
func newElo(player *playerInfo, players []*playerInfo) (gametype, mapElo int) {
	var totalGametype, totalMap, count int

	for _, p := range players {
		if p == player || !p.rankable {
			continue
		}
		dg, dm := eloDelta(player, p)
		totalGametype += dg
		totalMap += dm
		count++
	}

	if count == 0 {
		return player.gametypeElo, player.mapElo
	}
	return player.gametypeElo + totalGametype/count, player.mapElo + totalMap/count
}

// RankPlayers compares a server's previous and current snapshot,
// decides whether the round is rankable, and if so stages new elo
// scores in the pending table. It never assigns ranks directly — that
// happens later, in Recompute. Mirrors rank_players.
func RankPlayers(ctx context.Context, q teerankdb.Querier, old, new *model.Server, log *slog.Logger) error {
	players, err := loadPlayers(ctx, q, old, new)
	if err != nil {
		return fmt.Errorf("loading players of %s:%s: %w", new.IP, new.Port, err)
	}

	elapsed := elapsedSeconds(old, new)
	markRankablePlayers(old, new, players, elapsed)

	ranked := 0
	for _, p := range players {
		if p.rankable {
			ranked++
		}
	}
	if ranked > 0 && log != nil {
		log.Debug("ranking players",
			"server", new.IP+":"+new.Port, "count", ranked,
			"gametype", new.Gametype, "map", new.Map)
	}

	for _, p := range players {
		if !p.rankable {
			continue
		}
		gametypeElo, mapElo := newElo(p, players)

		if err := teerankdb.StagePendingElo(ctx, q, model.PendingElo{
			Name: p.name, Gametype: new.Gametype, Map: "", Elo: gametypeElo,
		}); err != nil {
			return err
		}
		if err := teerankdb.StagePendingElo(ctx, q, model.PendingElo{
			Name: p.name, Gametype: new.Gametype, Map: new.Map, Elo: mapElo,
		}); err != nil {
			return err
		}
	}

	return nil
}
