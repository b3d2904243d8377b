// Package netclient is the fixed-capacity registry of polled endpoints
// (game servers and masters), backed by an arena with an explicit free
// list of indices. Grounded on original_source/update/netclient.c, per
// spec.md §9's guidance to replace the intrusive free-list-of-structs
// with an arena of slots.
package netclient

import (
	"fmt"
	"net"

	"github.com/teerank/teerank-update/internal/model"
)

// Capacity is the maximum number of simultaneously tracked endpoints.
const Capacity = 4096

// Type discriminates what a Client polls.
type Type int

const (
	TypeServer Type = iota
	TypeMaster
)

// Client is one tracked endpoint: a game server or a master, resolved
// to a network address. Exactly one of Server/Master is set, matching
// Type.
type Client struct {
	Type   Type
	Server *model.Server
	Master *model.Master
	Addr   net.Addr

	slot     int
	occupied bool
}

// Slot returns the index this client occupies in the registry, stable
// for the client's lifetime (used to correlate pool entries and
// scheduler jobs back to their owning endpoint).
func (c *Client) Slot() int {
	return c.slot
}

// Client returns the endpoint occupying slot, or nil if slot is out of
// range or was since removed (e.g. a server dropped by
// handleServerTimeout while a stale scheduler job for it was still
// queued).
func (r *Registry) Client(slot int) *Client {
	if slot < 0 || slot >= len(r.slots) || !r.slots[slot].occupied {
		return nil
	}
	return &r.slots[slot]
}

// Resolver resolves a (node, service) pair to a network address. In
// production this is net.Resolver; tests substitute a stub.
type Resolver interface {
	Resolve(node, service string) (net.Addr, error)
}

// Registry is the arena of tracked endpoints.
type Registry struct {
	slots    []Client
	nextFree int // -1 when full
	resolver Resolver
}

// New returns an empty registry of Capacity slots, backed by resolver
// for address lookups.
func New(resolver Resolver) *Registry {
	r := &Registry{
		slots:    make([]Client, Capacity),
		resolver: resolver,
	}
	for i := range r.slots {
		r.slots[i].slot = i
	}
	r.rebuildFreeList()
	return r
}

func (r *Registry) rebuildFreeList() {
	r.nextFree = -1
	for i := len(r.slots) - 1; i >= 0; i-- {
		if !r.slots[i].occupied {
			r.slots[i].slot = r.nextFree
			r.nextFree = i
		}
	}
}

// ErrCapacityExceeded is returned by AddServer/AddMaster when the
// registry is full. Per spec.md §7 this is a recoverable, non-fatal
// condition: the caller should log and skip the endpoint this cycle.
type ErrCapacityExceeded struct{}

func (ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("netclient: registry full (capacity %d)", Capacity)
}

func (r *Registry) allocate() (*Client, bool) {
	if r.nextFree < 0 {
		return nil, false
	}
	idx := r.nextFree
	slot := &r.slots[idx]
	r.nextFree = slot.slot // reuse of the field as a free-list link while unoccupied
	*slot = Client{slot: idx, occupied: true}
	return slot, true
}

// AddServer registers a game server endpoint, resolving its address.
// On resolve failure the slot is returned to the free list and the
// call fails.
func (r *Registry) AddServer(s *model.Server) (*Client, error) {
	slot, ok := r.allocate()
	if !ok {
		return nil, ErrCapacityExceeded{}
	}

	addr, err := r.resolver.Resolve(s.IP, s.Port)
	if err != nil {
		r.Remove(slot)
		return nil, fmt.Errorf("resolving server %s:%s: %w", s.IP, s.Port, err)
	}

	slot.Type = TypeServer
	slot.Server = s
	slot.Addr = addr
	return slot, nil
}

// AddMaster registers a master endpoint, resolving its address.
func (r *Registry) AddMaster(m *model.Master) (*Client, error) {
	slot, ok := r.allocate()
	if !ok {
		return nil, ErrCapacityExceeded{}
	}

	addr, err := r.resolver.Resolve(m.Node, m.Service)
	if err != nil {
		r.Remove(slot)
		return nil, fmt.Errorf("resolving master %s:%s: %w", m.Node, m.Service, err)
	}

	slot.Type = TypeMaster
	slot.Master = m
	slot.Addr = addr
	return slot, nil
}

// Remove returns a slot to the free list.
func (r *Registry) Remove(c *Client) {
	idx := c.slot
	r.slots[idx] = Client{slot: r.nextFree}
	r.nextFree = idx
}

// Len reports how many slots are currently occupied.
func (r *Registry) Len() int {
	n := 0
	for i := range r.slots {
		if r.slots[i].occupied {
			n++
		}
	}
	return n
}

// net.Resolver-backed implementation of Resolver, used in production.
type OSResolver struct{}

func (OSResolver) Resolve(node, service string) (net.Addr, error) {
	return net.ResolveUDPAddr("udp", net.JoinHostPort(node, service))
}
