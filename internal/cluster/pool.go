package cluster

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// poolEntry is the ordered set of connections the pool maintains for one
// node id.
type poolEntry struct {
	endpoint Endpoint
	conns    []*Conn
	rrIndex  atomic.Uint64
}

// ConnectionPool holds connsPerShard connections per node id. Mutation
// (Add/Disconnect) is meant to happen only on the owning Manager goroutine;
// Get is safe for concurrent callers since it only reads.
type ConnectionPool struct {
	mu            sync.RWMutex
	entries       map[string]*poolEntry
	connsPerShard int
	auth          string
	tls           TlsProvider
	logger        *slog.Logger
}

// NewConnectionPool builds a pool with connsPerShard connections per node.
// connsPerShard=0 is clamped to 1 (SPEC_FULL.md Open Question decision #1).
func NewConnectionPool(connsPerShard int, auth string, tls TlsProvider) *ConnectionPool {
	if connsPerShard <= 0 {
		connsPerShard = 1
	}
	return &ConnectionPool{
		entries:       make(map[string]*poolEntry),
		connsPerShard: connsPerShard,
		auth:          auth,
		tls:           tls,
		logger:        slog.Default().With("component", "conn-pool"),
	}
}

// ConnsPerShard returns the configured connections-per-node count, useful as
// a default fan-out concurrency bound.
func (p *ConnectionPool) ConnsPerShard() int { return p.connsPerShard }

// Get returns a Connected connection for nodeID via round-robin, or (nil,
// false) if none are Connected.
func (p *ConnectionPool) Get(nodeID string) (*Conn, bool) {
	p.mu.RLock()
	entry, ok := p.entries[nodeID]
	p.mu.RUnlock()
	if !ok || len(entry.conns) == 0 {
		return nil, false
	}
	n := uint64(len(entry.conns))
	start := entry.rrIndex.Add(1)
	for i := uint64(0); i < n; i++ {
		c := entry.conns[(start+i)%n]
		if c.State() == StateConnected {
			return c, true
		}
	}
	return nil, false
}

// Add is idempotent: if the endpoint already matches the pool entry for
// nodeID, it's a no-op. Otherwise it replaces the entire entry, freeing old
// connections first. If connect is true the new connections start
// immediately.
func (p *ConnectionPool) Add(nodeID string, ep Endpoint, connect bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.entries[nodeID]; ok {
		if existing.endpoint.Equal(ep) {
			return
		}
		for _, c := range existing.conns {
			c.Stop()
		}
	}

	entry := &poolEntry{endpoint: ep}
	entry.conns = make([]*Conn, p.connsPerShard)
	for i := 0; i < p.connsPerShard; i++ {
		entry.conns[i] = NewConn(nodeID, ep, p.auth, p.tls)
	}
	p.entries[nodeID] = entry

	if connect {
		for _, c := range entry.conns {
			c.Start()
		}
	}
}

// Disconnect deletes the pool entry for nodeID; in-flight commands on its
// connections fail with TransportClosed once Stop detaches them.
func (p *ConnectionPool) Disconnect(nodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[nodeID]
	if !ok {
		return
	}
	for _, c := range entry.conns {
		c.Stop()
	}
	delete(p.entries, nodeID)
	p.logger.Info("disconnected node", "node_id", nodeID)
}

// ConnectAll starts every Disconnected connection across every node entry;
// idempotent for connections in any other state. Returns the number of
// connections transitioned out of Disconnected.
func (p *ConnectionPool) ConnectAll() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	started := 0
	for _, entry := range p.entries {
		for _, c := range entry.conns {
			if c.State() == StateDisconnected {
				c.Start()
				started++
			}
		}
	}
	return started
}

// CheckConnections reports whether every (or, if mastersOnly, every master)
// node has at least one Connected connection.
func (p *ConnectionPool) CheckConnections(nodes *NodeMap, mastersOnly bool) bool {
	ok := true
	nodes.IterateAll(func(n Node) bool {
		if mastersOnly && !n.IsMaster() {
			return true
		}
		if _, connected := p.Get(n.ID); !connected {
			ok = false
			return false
		}
		return true
	})
	return ok
}
