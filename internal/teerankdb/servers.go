package teerankdb

import (
	"context"
	"fmt"
	"time"

	"github.com/teerank/teerank-update/internal/model"
)

const allServerColumns = `
	ip, port, name, gametype, map, lastseen, expire,
	master_node, master_service, max_clients`

// LoadServers returns every server row, without their clients. Used once
// at startup to repopulate the netclient registry.
func LoadServers(ctx context.Context, q Querier) ([]model.Server, error) {
	rows, err := q.QueryContext(ctx, "SELECT"+allServerColumns+" FROM servers")
	if err != nil {
		return nil, fmt.Errorf("querying servers: %w", err)
	}
	defer rows.Close()

	var out []model.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetServer returns the server at (ip, port), or nil if it doesn't exist.
func GetServer(ctx context.Context, q Querier, ip, port string) (*model.Server, error) {
	row := q.QueryRowContext(ctx,
		"SELECT"+allServerColumns+" FROM servers WHERE ip = ? AND port = ?", ip, port)

	s, err := scanServer(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying server %s:%s: %w", ip, port, err)
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (model.Server, error) {
	var s model.Server
	var lastseen, expire int64

	err := row.Scan(
		&s.IP, &s.Port, &s.Name, &s.Gametype, &s.Map,
		&lastseen, &expire, &s.MasterNode, &s.MasterService, &s.MaxClients)
	if err != nil {
		return model.Server{}, err
	}

	s.LastSeen = time.Unix(lastseen, 0)
	s.Expire = time.Unix(expire, 0)
	return s, nil
}

// LoadServerClients replaces server.Clients with the current contents of
// server_clients for (server.IP, server.Port), ordered by score
// descending (matching original_source/update/server.c's
// read_server_clients, used so that presentation-layer listings don't
// need their own ORDER BY).
func LoadServerClients(ctx context.Context, q Querier, server *model.Server) error {
	rows, err := q.QueryContext(ctx,
		`SELECT name, clan, score, ingame
		 FROM server_clients
		 WHERE ip = ? AND port = ?
		 ORDER BY score DESC`, server.IP, server.Port)
	if err != nil {
		return fmt.Errorf("querying clients of %s:%s: %w", server.IP, server.Port, err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		var ingame int
		if err := rows.Scan(&c.Name, &c.Clan, &c.Score, &ingame); err != nil {
			return fmt.Errorf("scanning client of %s:%s: %w", server.IP, server.Port, err)
		}
		c.InGame = ingame != 0
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	server.Clients = clients
	server.NumClients = len(clients)
	return nil
}

// WriteServer upserts the server row.
func WriteServer(ctx context.Context, q Querier, s *model.Server) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO servers`+" ("+allServerColumns+") "+
			`VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.IP, s.Port, s.Name, s.Gametype, s.Map,
		s.LastSeen.Unix(), s.Expire.Unix(), s.MasterNode, s.MasterService, s.MaxClients)
	if err != nil {
		return fmt.Errorf("writing server %s:%s: %w", s.IP, s.Port, err)
	}
	return nil
}

// WriteServerClients replaces every server_clients row for (ip, port)
// with the server's current in-memory client list: one DELETE, then one
// INSERT per client. The replacement is atomic only when q is a
// transaction, as it is inside the engine's per-batch transaction.
func WriteServerClients(ctx context.Context, q Querier, s *model.Server) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM server_clients WHERE ip = ? AND port = ?", s.IP, s.Port); err != nil {
		return fmt.Errorf("flushing clients of %s:%s: %w", s.IP, s.Port, err)
	}

	const insert = `
		INSERT OR REPLACE INTO server_clients (ip, port, name, clan, score, ingame)
		VALUES (?, ?, ?, ?, ?, ?)`

	for _, c := range s.Clients {
		ingame := 0
		if c.InGame {
			ingame = 1
		}
		if _, err := q.ExecContext(ctx, insert, s.IP, s.Port, c.Name, c.Clan, c.Score, ingame); err != nil {
			return fmt.Errorf("writing client %q of %s:%s: %w", c.Name, s.IP, s.Port, err)
		}
	}
	return nil
}

// CreateServer inserts a new, empty server row if one doesn't already
// exist, owned by the given master.
func CreateServer(ctx context.Context, q Querier, ip, port, masterNode, masterService string) (model.Server, error) {
	s := model.Server{
		IP: ip, Port: port,
		MasterNode: masterNode, MasterService: masterService,
	}

	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO servers`+" ("+allServerColumns+") "+
			`VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.IP, s.Port, s.Name, s.Gametype, s.Map,
		s.LastSeen.Unix(), s.Expire.Unix(), s.MasterNode, s.MasterService, s.MaxClients)
	if err != nil {
		return model.Server{}, fmt.Errorf("creating server %s:%s: %w", ip, port, err)
	}
	return s, nil
}

// RemoveServer deletes the server and its clients.
func RemoveServer(ctx context.Context, q Querier, ip, port string) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM server_clients WHERE ip = ? AND port = ?", ip, port); err != nil {
		return fmt.Errorf("removing clients of %s:%s: %w", ip, port, err)
	}
	if _, err := q.ExecContext(ctx,
		"DELETE FROM servers WHERE ip = ? AND port = ?", ip, port); err != nil {
		return fmt.Errorf("removing server %s:%s: %w", ip, port, err)
	}
	return nil
}

// ClearMasterReference clears master_node/master_service on every server
// currently owned by the given master. Called right before sending that
// master's request, so servers that disappear from its list naturally
// lose the reference.
func ClearMasterReference(ctx context.Context, q Querier, masterNode, masterService string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE servers SET master_node = '', master_service = ''
		 WHERE master_node = ? AND master_service = ?`, masterNode, masterService)
	if err != nil {
		return fmt.Errorf("clearing master reference %s:%s: %w", masterNode, masterService, err)
	}
	return nil
}

// SetServerMaster updates the master reference on an existing server.
func SetServerMaster(ctx context.Context, q Querier, ip, port, masterNode, masterService string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE servers SET master_node = ?, master_service = ?
		 WHERE ip = ? AND port = ?`, masterNode, masterService, ip, port)
	if err != nil {
		return fmt.Errorf("setting master of %s:%s: %w", ip, port, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return err != nil && err.Error() == "sql: no rows in result set"
}
