package cluster

import (
	"context"
	"log/slog"
	"time"
)

// TopologyProvider supplies a fresh topology on demand — e.g. a remote
// CLUSTER SLOTS-style call, or a static text-format file loaded once. The
// periodic refresh loop polls it and applies updates that differ from the
// current topology.
type TopologyProvider interface {
	FetchTopology(ctx context.Context) (*Topology, error)
}

// Manager owns the connection pool, topology, and router. Its Run goroutine
// executes functions submitted through Do and the periodic topology
// refresh. Topology updates are not forced through that goroutine: callers
// may invoke TopologyManager.UpdateTopology directly, and readers take
// topology snapshots via TopologyManager.Snapshot under its read lock.
type Manager struct {
	Pool      *ConnectionPool
	Topology  *TopologyManager
	Router    *Router
	Multiplex *Multiplexer
	// ValidationTimeout is the TOPOLOGY_VALIDATION_TIMEOUT gate: how long
	// an incoming request waits for the first topology before being
	// served against whatever is current (spec.md Scenario S6).
	ValidationTimeout time.Duration
	provider          TopologyProvider
	refresh           time.Duration
	logger            *slog.Logger
	commands          chan func()
	cancelLoop        context.CancelFunc
}

// NewManager wires a ConnectionPool, TopologyManager, Router, and
// Multiplexer into a Manager whose Run goroutine executes Do calls and the
// periodic topology refresh. validationTimeout is the TOPOLOGY_VALIDATION_TIMEOUT gate
// (0 waits indefinitely, see TopologyManager.WaitReady).
func NewManager(pool *ConnectionPool, selfHost string, refresh time.Duration, provider TopologyProvider, validationTimeout time.Duration) *Manager {
	topoMgr := NewTopologyManager(pool)
	return &Manager{
		Pool:              pool,
		Topology:          topoMgr,
		Router:            NewRouter(topoMgr, pool, selfHost),
		Multiplex:         NewMultiplexer(NewPartitionCtx(0, nil, 0)),
		ValidationTimeout: validationTimeout,
		provider:          provider,
		refresh:           refresh,
		logger:            slog.Default().With("component", "cluster-manager"),
		commands:          make(chan func(), 64),
	}
}

// Run starts the manager's owning goroutine: it drains the command channel
// and, if a TopologyProvider was supplied, polls it every refresh interval
// (the Go equivalent of the original's updateTopoTimer / CLUSTERREFRESH).
// Run blocks until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancelLoop = cancel

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if m.provider != nil && m.refresh > 0 {
		ticker = time.NewTicker(m.refresh)
		tickC = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-loopCtx.Done():
			return
		case fn := <-m.commands:
			fn()
		case <-tickC:
			m.refreshTopology(loopCtx)
		}
	}
}

// Stop cancels the manager's run loop.
func (m *Manager) Stop() {
	if m.cancelLoop != nil {
		m.cancelLoop()
	}
}

// Do serializes fn onto the manager's owning goroutine and blocks until it
// completes.
func (m *Manager) Do(fn func()) {
	done := make(chan struct{})
	m.commands <- func() {
		fn()
		close(done)
	}
	<-done
}

func (m *Manager) refreshTopology(ctx context.Context) {
	newTopo, err := m.provider.FetchTopology(ctx)
	if err != nil {
		m.logger.Warn("CLUSTERREFRESH failed", "error", err)
		return
	}
	current := m.Topology.Snapshot()
	if topologiesEqual(current, newTopo) {
		return
	}
	if err := m.Topology.UpdateTopology(newTopo); err != nil {
		m.logger.Warn("rejected refreshed topology", "error", err)
		return
	}
	m.Multiplex.EnsureSize(newTopo)
	m.logger.Info("topology updated", "num_shards", len(newTopo.Shards), "num_slots", newTopo.NumSlots)
}

// topologiesEqual is a coarse structural comparison used to decide whether
// a freshly polled topology differs from the current one — the "apply only
// if the reply differs" gate.
func topologiesEqual(a, b *Topology) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.NumSlots != b.NumSlots || a.HashFunc != b.HashFunc || len(a.Shards) != len(b.Shards) {
		return false
	}
	for i := range a.Shards {
		if a.Shards[i].StartSlot != b.Shards[i].StartSlot || a.Shards[i].EndSlot != b.Shards[i].EndSlot {
			return false
		}
		if len(a.Shards[i].Nodes) != len(b.Shards[i].Nodes) {
			return false
		}
		for j := range a.Shards[i].Nodes {
			if a.Shards[i].Nodes[j].ID != b.Shards[i].Nodes[j].ID {
				return false
			}
		}
	}
	return true
}
