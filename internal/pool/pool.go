// Package pool implements the update engine's poll pool: a bounded set
// of in-flight UDP requests, retried on timeout and reported as failed
// once retries are exhausted. Grounded on original_source/update/pool.c.
package pool

import (
	"net"
	"time"

	"github.com/teerank/teerank-update/internal/transport"
)

// MaxPending bounds the number of simultaneously in-flight requests.
const MaxPending = 25

// MaxRetries is how many times an entry is retried before being
// reported as failed.
const MaxRetries = 2

// MaxPing is how long a pending entry waits for a reply before it's
// considered timed out.
const MaxPing = 999 * time.Millisecond

// Entry is one endpoint's outstanding (or about to be sent) request.
// Owner identifies the endpoint to the caller; the pool never
// interprets it.
type Entry struct {
	Addr    net.Addr
	Request []byte
	Owner   any

	// Polled reports whether at least one reply matched this entry
	// since it last left the idle list. Endpoints that expect several
	// reply packets per request (masters) use this to distinguish "went
	// quiet after replying" from "never replied" once the entry finally
	// times out.
	Polled bool

	retries   int
	startTime time.Time
}

// Pool categorizes entries into idle/pending/failed and drives them
// through the transport. It is not safe for concurrent use — the
// engine's single loop is its only caller.
type Pool struct {
	sockets *transport.Sockets

	idle    []*Entry
	pending []*Entry
	failed  []*Entry
}

// New returns an empty pool driven by sockets.
func New(sockets *transport.Sockets) *Pool {
	return &Pool{sockets: sockets}
}

// Add enqueues entry on the idle list, to be sent on a future Poll.
// Newly added entries are serviced after older ones (FIFO fairness,
// spec.md §5(iii)).
func (p *Pool) Add(entry *Entry) {
	p.idle = append(p.idle, entry)
}

// RemoveFromPending takes entry out of the pending list, preventing it
// from being re-polled on a future timeout. Handlers call this once
// they've consumed an entry's reply.
func (p *Pool) RemoveFromPending(entry *Entry) {
	p.pending = removeEntry(p.pending, entry)
}

// Len reports the number of entries in each list, for invariant checks
// (spec.md §8: |idle|+|pending|+|failed| never exceeds the netclient
// count).
func (p *Pool) Len() (idle, pending, failed int) {
	return len(p.idle), len(p.pending), len(p.failed)
}

func removeEntry(list []*Entry, entry *Entry) []*Entry {
	for i, e := range list {
		if e == entry {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// entryExpired moves entry from pending into either idle (with a
// bumped retry count) or failed, depending on MaxRetries. Mirrors
// entry_expired.
func (p *Pool) entryExpired(entry *Entry) {
	if entry.retries >= MaxRetries {
		p.failed = append(p.failed, entry)
		return
	}
	entry.retries++
	p.idle = append(p.idle, entry)
}

// timeoutExpiredPending moves every pending entry whose elapsed time
// exceeds MaxPing according to the state machine. Mirrors
// clean_expired_pending_entries.
func (p *Pool) timeoutExpiredPending(now time.Time) {
	var stillPending []*Entry
	for _, entry := range p.pending {
		if now.Sub(entry.startTime) >= MaxPing {
			p.entryExpired(entry)
		} else {
			stillPending = append(stillPending, entry)
		}
	}
	p.pending = stillPending
}

// fillPending drains idle entries, oldest first, into pending until
// the pool is full or idle runs dry, sending each one's request. A send
// failure is treated identically to a timeout.
// Mirrors fill_pending_list/add_pending_entry.
func (p *Pool) fillPending(now time.Time) {
	for len(p.idle) > 0 && len(p.pending) < MaxPending {
		entry := p.idle[0]
		p.idle = p.idle[1:]

		if err := p.sockets.Send(entry.Request, entry.Addr); err != nil {
			p.entryExpired(entry)
			continue
		}

		entry.startTime = now
		entry.Polled = false
		p.pending = append(p.pending, entry)
	}
}

func sameAddr(a, b net.Addr) bool {
	ua, ok1 := a.(*net.UDPAddr)
	ub, ok2 := b.(*net.UDPAddr)
	if !ok1 || !ok2 {
		return a.String() == b.String()
	}
	return ua.Port == ub.Port && ua.IP.Equal(ub.IP)
}

func (p *Pool) matchPending(addr net.Addr) *Entry {
	for _, e := range p.pending {
		if sameAddr(e.Addr, addr) {
			return e
		}
	}
	return nil
}

// Poll drives one round of the pool's state machine, per spec.md §4.4.
// It may block once on the transport's timed receive. It returns:
//   - (entry, nil, true, nil) for a failed entry (exhausted retries),
//   - (entry, packet, true, nil) for a matched reply,
//   - (nil, nil, false, nil) if there is nothing pending to wait on.
func (p *Pool) Poll() (entry *Entry, packet *transport.Packet, ok bool, err error) {
	for {
		now := time.Now()
		p.timeoutExpiredPending(now)
		p.fillPending(now)

		if len(p.failed) > 0 {
			entry = p.failed[0]
			p.failed = p.failed[1:]
			return entry, nil, true, nil
		}

		if len(p.pending) == 0 {
			return nil, nil, false, nil
		}

		pkt, received, err := p.sockets.Receive()
		if err != nil {
			return nil, nil, false, err
		}
		if !received {
			continue
		}

		matched := p.matchPending(pkt.Addr)
		if matched == nil {
			// Unknown sender; discard and restart the whole algorithm.
			continue
		}

		matched.startTime = time.Now()
		matched.Polled = true
		return matched, &pkt, true, nil
	}
}
