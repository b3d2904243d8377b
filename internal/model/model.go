// Package model holds the plain value types shared by the update engine:
// servers, their connected clients, masters, players and the ranking
// tables. None of these types carry behavior tied to a storage engine or
// the network layer — they are the nouns the rest of the engine operates
// on.
package model

import "time"

// MaxClients bounds the number of clients a single server can report, for
// both the vanilla and the legacy-64 dialects.
const MaxClients = 64

// DefaultElo is the Elo score assigned to a player the first time it is
// ranked in a given (gametype, map) league.
const DefaultElo = 1500

// Client is a snapshot of one connected player as reported by a server.
type Client struct {
	Name   string
	Clan   string
	Score  int
	InGame bool
}

// Server is the state of a game server as of its last successful poll.
type Server struct {
	IP   string
	Port string

	Name     string
	Gametype string
	Map      string

	LastSeen time.Time
	Expire   time.Time

	NumClients int
	MaxClients int

	MasterNode    string
	MasterService string

	Clients []Client
}

// SupportsLegacy64 reports whether the server advertises capacity beyond
// the vanilla 16-client limit, and therefore may reply across several
// legacy-64 packets.
func (s *Server) SupportsLegacy64() bool {
	return s.MaxClients > 16
}

// FindClient returns the client with the given name, or nil.
func (s *Server) FindClient(name string) *Client {
	for i := range s.Clients {
		if s.Clients[i].Name == name {
			return &s.Clients[i]
		}
	}
	return nil
}

// Master is a master server: a directory of live game servers.
type Master struct {
	Node    string
	Service string

	LastSeen time.Time
	Expire   time.Time
}

// DefaultMasters is the built-in master list seeded on first startup.
// Mirrors original_source/core/master.c's DEFAULT_MASTERS.
var DefaultMasters = []Master{
	{Node: "master1.teeworlds.com", Service: "8300"},
	{Node: "master2.teeworlds.com", Service: "8300"},
	{Node: "master3.teeworlds.com", Service: "8300"},
	{Node: "master4.teeworlds.com", Service: "8300"},
}

// Player is a player known to the ranking system, last seen on some
// server.
type Player struct {
	Name       string
	Clan       string
	LastSeen   time.Time
	ServerIP   string
	ServerPort string
}

// Rank is a player's live, user-visible elo and rank within one league
// (gametype, map). Map is empty to denote the "all maps of this
// gametype" league.
type Rank struct {
	Name     string
	Gametype string
	Map      string
	Elo      int
	LastSeen time.Time
	Rank     *uint
}

// PendingElo is a staged elo change, not yet reflected in Rank, waiting
// to be picked up by the next rank recomputation.
type PendingElo struct {
	Name     string
	Gametype string
	Map      string
	Elo      int
}

// RankHistory is one append-only historical record of a rank change.
type RankHistory struct {
	Name     string
	Time     time.Time
	Gametype string
	Map      string
	Elo      int
	Rank     uint
}
