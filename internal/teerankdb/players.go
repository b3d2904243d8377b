package teerankdb

import (
	"context"
	"fmt"
	"time"

	"github.com/teerank/teerank-update/internal/model"
)

// UpdatePlayers refreshes the players table from a server's current
// client list: known players get their clan/lastseen/server refreshed,
// unknown ones are inserted. Mirrors original_source/update/main.c's
// update_players, called right after a server reply is ingested.
func UpdatePlayers(ctx context.Context, q Querier, s *model.Server, now time.Time) error {
	for _, c := range s.Clients {
		exists, err := playerExists(ctx, q, c.Name)
		if err != nil {
			return fmt.Errorf("checking player %q: %w", c.Name, err)
		}

		if exists {
			_, err = q.ExecContext(ctx,
				`UPDATE players SET clan = ?, lastseen = ?, server_ip = ?, server_port = ?
				 WHERE name = ?`,
				c.Clan, now.Unix(), s.IP, s.Port, c.Name)
		} else {
			_, err = q.ExecContext(ctx,
				`INSERT INTO players (name, clan, lastseen, server_ip, server_port)
				 VALUES (?, ?, ?, ?, ?)`,
				c.Name, c.Clan, now.Unix(), s.IP, s.Port)
		}
		if err != nil {
			return fmt.Errorf("upserting player %q: %w", c.Name, err)
		}
	}
	return nil
}

func playerExists(ctx context.Context, q Querier, name string) (bool, error) {
	var discard int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM players WHERE name = ?", name).Scan(&discard)
	if err == nil {
		return true, nil
	}
	if isNoRows(err) {
		return false, nil
	}
	return false, err
}

// GetPlayer returns a single player by name, or nil if unknown.
func GetPlayer(ctx context.Context, q Querier, name string) (*model.Player, error) {
	var p model.Player
	var lastseen int64

	err := q.QueryRowContext(ctx,
		`SELECT name, clan, lastseen, server_ip, server_port
		 FROM players WHERE name = ?`, name).
		Scan(&p.Name, &p.Clan, &lastseen, &p.ServerIP, &p.ServerPort)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying player %q: %w", name, err)
	}

	p.LastSeen = time.Unix(lastseen, 0)
	return &p, nil
}
