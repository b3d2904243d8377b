package protocol

import (
	"errors"

	"github.com/teerank/teerank-update/internal/model"
)

// ErrMalformedPacket is returned when a packet fails the unpacker's
// sticky error check or one of the sanity checks below.
var ErrMalformedPacket = errors.New("protocol: malformed packet")

// ServerInfo accumulates one server's reply across however many packets
// it takes to deliver it. A single vanilla/extended packet completes it
// immediately; legacy-64 and extended-continuation replies span several
// packets that must be fed in as they arrive. Mirrors the "received so
// far" counter design note for coroutine-like continuation.
type ServerInfo struct {
	Name     string
	Map      string
	Gametype string

	MaxClients int

	// reportedClients is num_clients as announced by the first packet
	// of this reply; Complete compares it against len(Clients).
	reportedClients int
	headerSeen      bool

	Clients []model.Client
}

// Complete reports whether every announced client has been received.
func (s *ServerInfo) Complete() bool {
	return s.headerSeen && len(s.Clients) >= s.reportedClients
}

// Feed decodes one packet (with the connectionless transport header
// already stripped) into the accumulator. It returns ErrMalformedPacket
// for an unrecognized magic, a broken field, or a sanity-check failure;
// such a packet should be dropped and the endpoint left to time out.
func (s *ServerInfo) Feed(data []byte) error {
	d, payload, ok := detectDialect(data)
	if !ok {
		return ErrMalformedPacket
	}

	up := newUnpacker(payload)
	up.skip() // token

	if d != dialectExtendedMore {
		up.skip() // version
		name := up.str()
		mapName := up.str()

		if d == dialectExtended {
			up.skip() // map_crc
			up.skip() // map_size
		}

		gametype := up.str()
		up.skip() // flags
		up.skip() // num_players
		up.skip() // max_players
		numClients := up.int()
		maxClients := up.int()

		if up.err {
			return ErrMalformedPacket
		}
		if numClients > maxClients || numClients > model.MaxClients || maxClients > model.MaxClients {
			return ErrMalformedPacket
		}

		s.Name = name
		s.Map = mapName
		s.Gametype = gametype
		s.reportedClients = numClients
		s.MaxClients = maxClients
		s.headerSeen = true
	}

	switch d {
	case dialectVanilla:
		// no extra per-packet header
	case dialectLegacy64:
		up.skip() // client offset
	case dialectExtendedMore:
		up.skip() // packet number
		up.skip() // reserved
	case dialectExtended:
		up.skip() // reserved
	}

	for up.canUnpack() && len(s.Clients) < model.MaxClients {
		var c model.Client
		c.Name = up.str()
		c.Clan = up.str()
		up.skip() // country
		c.Score = up.int()
		c.InGame = up.int() != 0

		if d == dialectExtended || d == dialectExtendedMore {
			up.skip() // reserved
		}

		if up.err {
			return ErrMalformedPacket
		}
		s.Clients = append(s.Clients, c)
	}

	if up.err {
		return ErrMalformedPacket
	}
	return nil
}
