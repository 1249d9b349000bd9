package cluster

import "testing"

func TestRouterSelectNodeLocal(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	topoMgr := NewTopologyManager(pool)
	r := NewRouter(topoMgr, pool, "host-a")

	shard := Shard{Nodes: []Node{
		{ID: "n0", Endpoint: Endpoint{Host: "host-b"}},
		{ID: "n1", Endpoint: Endpoint{Host: "host-a"}},
	}}

	node, ok := r.SelectNode(shard, LocalCoordination, false)
	if !ok || node.ID != "n1" {
		t.Fatalf("SelectNode(Local) = (%+v, %v), want n1", node, ok)
	}
}

func TestRouterSelectNodeRemote(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	topoMgr := NewTopologyManager(pool)
	r := NewRouter(topoMgr, pool, "host-a")

	shard := Shard{Nodes: []Node{
		{ID: "n0", Endpoint: Endpoint{Host: "host-a"}},
		{ID: "n1", Endpoint: Endpoint{Host: "host-b"}},
	}}

	node, ok := r.SelectNode(shard, RemoteCoordination, false)
	if !ok || node.ID != "n1" {
		t.Fatalf("SelectNode(Remote) = (%+v, %v), want n1", node, ok)
	}
}

func TestRouterSelectNodeFlatMastersOnly(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	topoMgr := NewTopologyManager(pool)
	r := NewRouter(topoMgr, pool, "host-a")

	shard := Shard{Nodes: []Node{
		{ID: "n0", Flags: NodeMaster},
		{ID: "n1"},
	}}

	node, ok := r.SelectNode(shard, FlatCoordination, true)
	if !ok || node.ID != "n0" {
		t.Fatalf("SelectNode(Flat, mastersOnly) = (%+v, %v), want n0", node, ok)
	}
}

func TestRouterSelectNodeNoneMatches(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	topoMgr := NewTopologyManager(pool)
	r := NewRouter(topoMgr, pool, "host-a")

	shard := Shard{Nodes: []Node{{ID: "n0", Endpoint: Endpoint{Host: "host-b"}}}}
	if _, ok := r.SelectNode(shard, LocalCoordination, false); ok {
		t.Fatal("expected no match for LocalCoordination when no node shares selfHost")
	}
}

func TestRouterSendCommandNoConnection(t *testing.T) {
	pool := NewConnectionPool(1, "", nil)
	topoMgr := NewTopologyManager(pool)
	r := NewRouter(topoMgr, pool, "host-a")

	topo := &Topology{NumSlots: 16384, HashFunc: HashNone, Shards: []Shard{
		{StartSlot: 0, EndSlot: 16383, Nodes: []Node{{ID: "n0", Endpoint: Endpoint{Host: "host-a"}}}},
	}}
	if err := topoMgr.UpdateTopology(topo); err != nil {
		t.Fatalf("UpdateTopology: %v", err)
	}

	cmd := NewCommand("SET", "foo", "v")
	cmd.ShardingKeyPos = 1
	if _, err := r.SendCommand(LocalCoordination, cmd); err == nil {
		t.Fatal("expected NoConnection error since the dial to host-a:0 cannot reach Connected")
	}
}
