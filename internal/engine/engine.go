// Package engine drives the update loop: scheduling polls, pumping them
// through the pool, and dispatching replies/timeouts to the
// server/master handlers. Grounded on original_source/update/main.c's
// update().
package engine

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/teerank/teerank-update/internal/model"
	"github.com/teerank/teerank-update/internal/netclient"
	"github.com/teerank/teerank-update/internal/pool"
	"github.com/teerank/teerank-update/internal/protocol"
	"github.com/teerank/teerank-update/internal/rank"
	"github.com/teerank/teerank-update/internal/scheduler"
	"github.com/teerank/teerank-update/internal/teerankdb"
	"github.com/teerank/teerank-update/internal/transport"
)

// recomputeJob is a distinguished scheduler.Job value identifying the
// periodic rank recomputation, as opposed to a netclient re-poll.
type recomputeJob struct{}

// Engine owns every piece of in-memory state the update loop touches:
// the netclient registry, the scheduler, the poll pool, and the
// in-progress server replies still accumulating across packets.
type Engine struct {
	db       *teerankdb.DB
	sockets  *transport.Sockets
	registry *netclient.Registry
	sched    *scheduler.Scheduler
	pl       *pool.Pool
	log      *slog.Logger

	inProgress map[int]*protocol.ServerInfo
}

// New constructs an engine ready to Run. Callers must call LoadEndpoints
// once before Run to populate the registry and scheduler from the
// database (mirrors load_netclients, called once at process startup).
func New(db *teerankdb.DB, sockets *transport.Sockets, log *slog.Logger) *Engine {
	return &Engine{
		db:         db,
		sockets:    sockets,
		registry:   netclient.New(netclient.OSResolver{}),
		sched:      scheduler.New(),
		pl:         pool.New(sockets),
		log:        log,
		inProgress: make(map[int]*protocol.ServerInfo),
	}
}

// LoadEndpoints loads every known server and master, registers it in
// the netclient registry, and schedules its next poll at its stored
// expiry. Mirrors load_netclients.
func (e *Engine) LoadEndpoints(ctx context.Context) error {
	servers, err := teerankdb.LoadServers(ctx, e.db.Conn())
	if err != nil {
		return err
	}
	for i := range servers {
		s := &servers[i]
		if err := teerankdb.LoadServerClients(ctx, e.db.Conn(), s); err != nil {
			return err
		}

		client, err := e.registry.AddServer(s)
		if err != nil {
			e.log.Warn("dropping server at startup", "ip", s.IP, "port", s.Port, "err", err)
			continue
		}
		e.sched.Schedule(client.Slot(), s.Expire)
	}

	masters, err := teerankdb.LoadMasters(ctx, e.db.Conn())
	if err != nil {
		return err
	}
	for i := range masters {
		m := &masters[i]
		client, err := e.registry.AddMaster(m)
		if err != nil {
			e.log.Warn("dropping master at startup", "node", m.Node, "service", m.Service, "err", err)
			continue
		}
		e.sched.Schedule(client.Slot(), m.Expire)
	}

	return nil
}

// Run executes the update loop until ctx is cancelled, finishing the
// current batch before returning. Mirrors update()'s while (!stop)
// loop.
func (e *Engine) Run(ctx context.Context) error {
	if !e.sched.HaveSchedule() {
		return nil
	}

	// Schedule the first rank recomputation after a short warmup, so a
	// brand new database quickly has ranked players.
	e.sched.Schedule(recomputeJob{}, time.Now().Add(rank.RecomputeWarmup))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		e.waitUntilNext(ctx)
		if ctx.Err() != nil {
			return nil
		}

		recompute := e.drainDueJobs()

		if err := e.runBatch(ctx, recompute); err != nil {
			return err
		}
	}
}

// waitUntilNext blocks until the scheduler's head deadline, or returns
// immediately if the queue is empty. Mirrors wait_until_next_schedule.
func (e *Engine) waitUntilNext(ctx context.Context) {
	deadline, ok := e.sched.WaitUntil(time.Now())
	if !ok {
		return
	}

	d := time.Until(deadline)
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// drainDueJobs pops every due scheduler job, enqueueing re-polls into
// the pool and reporting whether the recompute job fired (in which case
// it is requeued RecomputeInterval later).
func (e *Engine) drainDueJobs() bool {
	recompute := false
	now := time.Now()

	for {
		job, ok := e.sched.NextDue(now)
		if !ok {
			break
		}

		if _, isRecompute := job.(recomputeJob); isRecompute {
			recompute = true
			e.sched.Schedule(recomputeJob{}, now.Add(rank.RecomputeInterval))
			continue
		}

		slot := job.(int)
		e.addToPool(slot)
	}

	return recompute
}

// addToPool enqueues the given netclient slot's request. Mirrors
// add_to_pool, including clearing a master's server references right
// before its request goes out.
func (e *Engine) addToPool(slot int) {
	client := e.registry.Client(slot)
	if client == nil {
		return
	}

	var request []byte
	switch client.Type {
	case netclient.TypeServer:
		request = protocol.GetInfo()
	case netclient.TypeMaster:
		ctx := context.Background()
		if err := teerankdb.ClearMasterReference(ctx, e.db.Conn(), client.Master.Node, client.Master.Service); err != nil {
			e.log.Warn("clearing master reference", "node", client.Master.Node, "err", err)
		}
		request = protocol.GetList()
	}

	e.pl.Add(&pool.Entry{Addr: client.Addr, Request: request, Owner: slot})
}

// runBatch drains the pool (sending due polls, handling replies and
// timeouts) inside one database transaction, matching the BEGIN/COMMIT
// bracket around the whole batch in the original C loop. If requested,
// ranks are recomputed after that transaction commits, in the separate
// transaction rank.Recompute opens.
func (e *Engine) runBatch(ctx context.Context, recompute bool) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for {
		entry, packet, ok, err := e.pl.Poll()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		slot := entry.Owner.(int)
		if err := e.handle(ctx, tx, slot, entry, packet); err != nil {
			e.log.Warn("handling reply", "slot", slot, "err", err)
		}
	}

	if recompute {
		if err := tx.Commit(); err != nil {
			return err
		}
		return rank.Recompute(ctx, e.db, e.log)
	}

	return tx.Commit()
}

func (e *Engine) handle(ctx context.Context, tx teerankdb.Querier, slot int, entry *pool.Entry, packet *transport.Packet) error {
	client := e.registry.Client(slot)
	if client == nil {
		return nil
	}

	switch client.Type {
	case netclient.TypeServer:
		if packet != nil {
			return e.handleServerPacket(ctx, tx, client, entry, packet)
		}
		return e.handleServerTimeout(ctx, tx, client, entry)
	case netclient.TypeMaster:
		if packet != nil {
			return e.handleMasterPacket(ctx, tx, client, packet)
		}
		return e.handleMasterTimeout(ctx, tx, client, entry)
	}
	return nil
}

// jitter returns now + sec +/- maxdist, uniformly distributed. Mirrors
// expire_in.
func jitter(sec, maxdist time.Duration) time.Time {
	min := sec - maxdist
	max := sec + maxdist
	span := max - min
	offset := time.Duration(rand.Int63n(int64(span) + 1))
	return time.Now().Add(min + offset)
}

// doubleExpiry mirrors double_expiry_date: an offline endpoint is
// checked less and less often, bounded to [5min, 2h].
func doubleExpiry(lastExpire, lastSeen time.Time) time.Time {
	const minDist = 5 * time.Minute
	const maxDist = 2 * time.Hour

	d := minDist
	if lastExpire.After(lastSeen) {
		d = lastExpire.Sub(lastSeen)
	}
	if d > maxDist {
		d = maxDist
	} else if d < minDist {
		d = minDist
	}

	dist := 2 * d
	if dist > maxDist {
		dist = maxDist
	} else if dist < minDist {
		dist = minDist
	}

	return jitter(dist, 0)
}

// handleServerPacket feeds one packet into the server's in-progress
// accumulator. A vanilla/extended reply completes on the first packet;
// legacy-64 and extended-continuation replies span several. Unlike
// handleMasterPacket, a server is expected to finish its one reply
// within this polling cycle, so the pool entry is only released — and
// the server row only touched — once the accumulator is Complete. A
// malformed packet abandons the accumulator outright and leaves the
// entry pending to retry on its own timeout.
func (e *Engine) handleServerPacket(ctx context.Context, tx teerankdb.Querier, client *netclient.Client, entry *pool.Entry, packet *transport.Packet) error {
	info, inProgress := e.inProgress[client.Slot()]
	if !inProgress {
		info = &protocol.ServerInfo{}
		e.inProgress[client.Slot()] = info
	}

	if err := info.Feed(packet.Data); err != nil {
		delete(e.inProgress, client.Slot())
		e.log.Debug("dropping malformed server packet", "ip", client.Server.IP, "err", err)
		return nil
	}

	if !info.Complete() {
		return nil
	}

	delete(e.inProgress, client.Slot())
	e.pl.RemoveFromPending(entry)

	old := *client.Server
	now := time.Now()

	new := client.Server
	new.LastSeen = now
	new.Name = info.Name
	new.Map = info.Map
	new.Gametype = info.Gametype
	new.MaxClients = info.MaxClients
	new.Clients = info.Clients
	new.NumClients = len(info.Clients)

	if err := teerankdb.UpdatePlayers(ctx, tx, new, now); err != nil {
		return err
	}
	if err := rank.RankPlayers(ctx, tx, &old, new, e.log); err != nil {
		return err
	}
	if err := teerankdb.WriteServerClients(ctx, tx, new); err != nil {
		return err
	}

	new.Expire = jitter(5*time.Minute, 30*time.Second)
	if err := teerankdb.WriteServer(ctx, tx, new); err != nil {
		return err
	}
	e.sched.Schedule(client.Slot(), new.Expire)
	return nil
}

func (e *Engine) handleServerTimeout(ctx context.Context, tx teerankdb.Querier, client *netclient.Client, entry *pool.Entry) error {
	server := client.Server
	elapsedDays := int(time.Since(server.LastSeen).Hours() / 24)

	if elapsedDays >= 1 {
		if err := teerankdb.RemoveServer(ctx, tx, server.IP, server.Port); err != nil {
			return err
		}
		delete(e.inProgress, client.Slot())
		e.registry.Remove(client)
		return nil
	}

	server.Expire = doubleExpiry(server.Expire, server.LastSeen)
	e.sched.Schedule(client.Slot(), server.Expire)
	return teerankdb.WriteServer(ctx, tx, server)
}

// handleMasterPacket processes one reply packet from a master. Unlike
// servers, masters may send several reply packets before going quiet;
// the entry is deliberately left pending so the pool keeps matching
// further packets from the same address until it finally times out
// (handleMasterTimeout then does the rescheduling). Mirrors
// handle_master_packet.
func (e *Engine) handleMasterPacket(ctx context.Context, tx teerankdb.Querier, client *netclient.Client, packet *transport.Packet) error {
	addrs, err := protocol.DecodeMasterList(packet.Data)
	if err != nil {
		e.log.Debug("dropping malformed master packet", "node", client.Master.Node, "err", err)
		return nil
	}

	for _, a := range addrs {
		if err := e.referenceServer(ctx, tx, a.IP, a.Port, client.Master); err != nil {
			e.log.Warn("referencing server", "ip", a.IP, "port", a.Port, "err", err)
		}
	}
	return nil
}

// referenceServer mirrors reference_server: creates the server (owned
// by master) if unknown and schedules it immediately, otherwise just
// refreshes its master reference.
func (e *Engine) referenceServer(ctx context.Context, tx teerankdb.Querier, ip, port string, master *model.Master) error {
	existing, err := teerankdb.GetServer(ctx, tx, ip, port)
	if err != nil {
		return err
	}

	if existing == nil {
		s, err := teerankdb.CreateServer(ctx, tx, ip, port, master.Node, master.Service)
		if err != nil {
			return err
		}
		client, err := e.registry.AddServer(&s)
		if err != nil {
			e.log.Warn("capacity exceeded adding discovered server", "ip", ip, "port", port)
			return nil
		}
		e.sched.Schedule(client.Slot(), time.Now())
		return nil
	}

	return teerankdb.SetServerMaster(ctx, tx, ip, port, master.Node, master.Service)
}

func (e *Engine) handleMasterTimeout(ctx context.Context, tx teerankdb.Querier, client *netclient.Client, entry *pool.Entry) error {
	master := client.Master

	if entry.Polled {
		master.LastSeen = time.Now()
		master.Expire = jitter(5*time.Minute, time.Minute)
	} else {
		master.Expire = doubleExpiry(master.Expire, master.LastSeen)
	}

	if err := teerankdb.WriteMaster(ctx, tx, master); err != nil {
		return err
	}
	e.sched.Schedule(client.Slot(), master.Expire)
	return nil
}
