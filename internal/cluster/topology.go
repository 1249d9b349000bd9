package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Shard is a contiguous slot range and its ordered list of nodes. By
// convention the first node is the master unless a node explicitly carries
// NodeMaster.
type Shard struct {
	StartSlot int
	EndSlot   int
	Nodes     []Node
}

// Master returns the shard's master node, if any.
func (s Shard) Master() (Node, bool) {
	for _, n := range s.Nodes {
		if n.IsMaster() {
			return n, true
		}
	}
	if len(s.Nodes) > 0 {
		return s.Nodes[0], true
	}
	return Node{}, false
}

// Contains reports whether slot falls within this shard's range.
func (s Shard) Contains(slot int) bool {
	return slot >= s.StartSlot && slot <= s.EndSlot
}

// Width is the number of slots this shard covers.
func (s Shard) Width() int { return s.EndSlot - s.StartSlot + 1 }

// Topology is the cluster-wide mapping of slots to shards and nodes.
type Topology struct {
	NumSlots int
	HashFunc HashFunc
	Shards   []Shard
}

// IsValid checks the required invariants: positive shard and slot counts,
// and full slot coverage. A shard with zero nodes is rejected
// (SPEC_FULL.md Open Question decision #3) since it can never serve a
// node-select call.
func (t *Topology) IsValid() bool {
	if t == nil || len(t.Shards) == 0 || t.NumSlots <= 0 {
		return false
	}
	total := 0
	selfCount := 0
	for _, sh := range t.Shards {
		if len(sh.Nodes) == 0 {
			return false
		}
		total += sh.Width()
		for _, n := range sh.Nodes {
			if n.IsSelf() {
				selfCount++
			}
		}
	}
	if selfCount > 1 {
		return false
	}
	return total >= t.NumSlots
}

// FindShard returns the shard whose range contains slot via a linear scan —
// bounded by a few thousand shards in practice.
func (t *Topology) FindShard(slot int) (Shard, bool) {
	for _, sh := range t.Shards {
		if sh.Contains(slot) {
			return sh, true
		}
	}
	return Shard{}, false
}

// NodeIDSet returns the set of node ids appearing anywhere in the topology.
func (t *Topology) NodeIDSet() map[string]struct{} {
	out := make(map[string]struct{})
	for _, sh := range t.Shards {
		for _, n := range sh.Nodes {
			out[n.ID] = struct{}{}
		}
	}
	return out
}

// SelfNode returns the node flagged Self and its owning shard, if any.
func (t *Topology) SelfNode() (Node, Shard, bool) {
	for _, sh := range t.Shards {
		for _, n := range sh.Nodes {
			if n.IsSelf() {
				return n, sh, true
			}
		}
	}
	return Node{}, Shard{}, false
}

// TopologyManager owns the live topology, node map, and connection pool,
// reconciling updates against the live state. A sync.RWMutex guards it:
// UpdateTopology holds the write lock while it reconciles and replaces the
// topology, and Snapshot takes the read lock, so a reader sees either the
// old or the new topology, never a partial one.
type TopologyManager struct {
	mu          sync.RWMutex
	current     *Topology
	nodes       *NodeMap
	pool        *ConnectionPool
	ready       chan struct{}
	becameReady bool
}

// NewTopologyManager builds a manager with an empty topology and node map,
// backed by the given connection pool.
func NewTopologyManager(pool *ConnectionPool) *TopologyManager {
	return &TopologyManager{current: &Topology{}, nodes: NewNodeMap(), pool: pool, ready: make(chan struct{})}
}

// Snapshot returns the current topology. Callers must not mutate it.
func (m *TopologyManager) Snapshot() *Topology {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Nodes returns the current node map.
func (m *TopologyManager) Nodes() *NodeMap {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes
}

// UpdateTopology reconciles new against the current topology: upsert every
// (shard, node) pair into the pool and node map, disconnect ids that
// disappeared, then atomically replace the topology.
// Rejected topologies (failing IsValid) leave the prior one intact.
func (m *TopologyManager) UpdateTopology(newTopo *Topology) error {
	if !newTopo.IsValid() {
		return fmt.Errorf("rejected topology: invalid (shards=%d, numSlots=%d)", len(newTopo.Shards), newTopo.NumSlots)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	oldIDs := m.nodes.IDs()
	newNodes := NewNodeMap()

	for _, sh := range newTopo.Shards {
		for _, n := range sh.Nodes {
			m.pool.Add(n.ID, n.Endpoint, true)
			newNodes.Add(n)
			delete(oldIDs, n.ID)
		}
	}

	for id := range oldIDs {
		m.pool.Disconnect(id)
	}

	m.nodes = newNodes
	m.current = newTopo
	if !m.becameReady {
		m.becameReady = true
		close(m.ready)
	}
	return nil
}

// WaitReady blocks until the first topology has been successfully applied,
// ctx is canceled, or timeout elapses, whichever comes first. timeout<=0
// waits indefinitely (Open Question decision #2). It reports whether
// topology was ready when it returned — the TOPOLOGY_VALIDATION_TIMEOUT
// gate (spec.md Scenario S6) calls this once per incoming request and
// proceeds regardless of the result, serving against whatever topology is
// current.
func (m *TopologyManager) WaitReady(ctx context.Context, timeout time.Duration) bool {
	m.mu.RLock()
	ready := m.ready
	m.mu.RUnlock()

	select {
	case <-ready:
		return true
	default:
	}

	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}
	select {
	case <-ready:
		return true
	case <-timeoutC:
		return false
	case <-ctx.Done():
		return false
	}
}
