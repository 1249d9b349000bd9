package cluster

import (
	"math/rand"

	apperrors "github.com/shardmesh/searchcore/pkg/errors"
)

// CoordinationStrategy selects how a node is picked among a shard's
// replicas.
type CoordinationStrategy int

const (
	LocalCoordination CoordinationStrategy = iota
	RemoteCoordination
	FlatCoordination
)

// Router computes slot -> shard -> node routing and composes with the
// connection pool to dispatch commands.
type Router struct {
	topo        *TopologyManager
	pool        *ConnectionPool
	selfHost    string
	mastersOnly bool
}

// NewRouter builds a Router over the given topology manager and pool.
// selfHost is this process's host, used by LocalCoordination.
func NewRouter(topo *TopologyManager, pool *ConnectionPool, selfHost string) *Router {
	return &Router{topo: topo, pool: pool, selfHost: selfHost}
}

// Slot computes the target slot for cmd: an explicit pinned slot wins;
// otherwise the sharding key is hashed under the current
// topology's hash function.
func (r *Router) Slot(cmd *Command) (int, bool) {
	if cmd.HasPinnedSlot() {
		return cmd.TargetSlot, true
	}
	key, ok := cmd.ShardingKey()
	if !ok {
		return 0, false
	}
	t := r.topo.Snapshot()
	if t.NumSlots == 0 {
		return 0, false
	}
	slot := int(t.HashFunc.Hash(key)) % t.NumSlots
	return slot, true
}

// FindShard resolves a slot to its owning shard.
func (r *Router) FindShard(slot int) (Shard, bool) {
	return r.topo.Snapshot().FindShard(slot)
}

// SelectNode picks a node within shard per strategy, optionally restricted
// to masters. Returns (Node{}, false) if no node matches.
func (r *Router) SelectNode(sh Shard, strategy CoordinationStrategy, mastersOnly bool) (Node, bool) {
	candidates := sh.Nodes
	if mastersOnly {
		filtered := candidates[:0:0]
		for _, n := range candidates {
			if n.IsMaster() {
				filtered = append(filtered, n)
			}
		}
		candidates = filtered
	}
	if len(candidates) == 0 {
		return Node{}, false
	}

	switch strategy {
	case LocalCoordination:
		for _, n := range candidates {
			if n.Endpoint.Host == r.selfHost {
				return n, true
			}
		}
		return Node{}, false
	case RemoteCoordination:
		for _, n := range candidates {
			if n.Endpoint.Host != r.selfHost {
				return n, true
			}
		}
		return Node{}, false
	default: // FlatCoordination
		if mastersOnly {
			return candidates[0], true
		}
		return candidates[rand.Intn(len(candidates))], true
	}
}

// SendCommand composes router + pool: route -> select -> get connection ->
// send. Fails with NoRoute, NoNode, or NoConnection as
// appropriate.
func (r *Router) SendCommand(strategy CoordinationStrategy, cmd *Command) (map[string]any, error) {
	slot, ok := r.Slot(cmd)
	if !ok {
		return nil, apperrors.NewQueryError(apperrors.KindNoRoute, "command has no sharding key or pinned slot")
	}
	shard, ok := r.FindShard(slot)
	if !ok {
		return nil, apperrors.NewQueryError(apperrors.KindNoRoute, "no shard owns slot %d", slot)
	}
	node, ok := r.SelectNode(shard, strategy, r.mastersOnly)
	if !ok {
		return nil, apperrors.NewQueryError(apperrors.KindNoNode, "no node in shard [%d,%d] matches strategy", shard.StartSlot, shard.EndSlot)
	}
	conn, ok := r.pool.Get(node.ID)
	if !ok {
		return nil, apperrors.NewQueryError(apperrors.KindNoConnection, "no connected connection to node %s", node.ID)
	}
	return conn.Send(cmd, 0)
}

// FanoutCommand sends one copy of cmd to every node yielded by the
// appropriate node-map iterator (LocalCoordination -> IterateHost(selfHost),
// else IterateAll), returning the count of successfully enqueued sends.
func (r *Router) FanoutCommand(strategy CoordinationStrategy, cmd *Command) int {
	nodes := r.topo.Nodes()
	sent := 0
	visit := func(n Node) bool {
		conn, ok := r.pool.Get(n.ID)
		if !ok {
			return true
		}
		if _, err := conn.Send(cmd, 0); err == nil {
			sent++
		}
		return true
	}
	if strategy == LocalCoordination {
		nodes.IterateHost(r.selfHost, visit)
	} else {
		nodes.IterateAll(visit)
	}
	return sent
}
