package teerankdb

import (
	"context"
	"fmt"
	"time"

	"github.com/teerank/teerank-update/internal/model"
)

// LoadMasters returns every master row, scheduled at startup the same
// way LoadServers repopulates server netclients.
func LoadMasters(ctx context.Context, q Querier) ([]model.Master, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT node, service, lastseen, expire FROM masters")
	if err != nil {
		return nil, fmt.Errorf("querying masters: %w", err)
	}
	defer rows.Close()

	var out []model.Master
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMaster returns the master at (node, service), or nil if unknown.
func GetMaster(ctx context.Context, q Querier, node, service string) (*model.Master, error) {
	row := q.QueryRowContext(ctx,
		"SELECT node, service, lastseen, expire FROM masters WHERE node = ? AND service = ?",
		node, service)

	m, err := scanMaster(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying master %s:%s: %w", node, service, err)
	}
	return &m, nil
}

func scanMaster(row scanner) (model.Master, error) {
	var m model.Master
	var lastseen, expire int64

	if err := row.Scan(&m.Node, &m.Service, &lastseen, &expire); err != nil {
		return model.Master{}, err
	}

	m.LastSeen = time.Unix(lastseen, 0)
	m.Expire = time.Unix(expire, 0)
	return m, nil
}

// WriteMaster upserts the master's lastseen/expire bookkeeping after a
// successful or failed poll.
func WriteMaster(ctx context.Context, q Querier, m *model.Master) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO masters (node, service, lastseen, expire)
		 VALUES (?, ?, ?, ?)`,
		m.Node, m.Service, m.LastSeen.Unix(), m.Expire.Unix())
	if err != nil {
		return fmt.Errorf("writing master %s:%s: %w", m.Node, m.Service, err)
	}
	return nil
}
