package cluster

// NodeFlags is a bitmask over a Node's role in the cluster.
type NodeFlags uint8

const (
	NodeMaster NodeFlags = 1 << iota
	NodeSelf
	NodeCoordinator
)

func (f NodeFlags) Has(flag NodeFlags) bool { return f&flag != 0 }

// Node is one addressable cluster member: a stable opaque id, its endpoint,
// and its role flags. A node is valid only while its id appears in the
// current topology.
type Node struct {
	ID       string
	Endpoint Endpoint
	Flags    NodeFlags
}

func (n Node) IsMaster() bool      { return n.Flags.Has(NodeMaster) }
func (n Node) IsSelf() bool        { return n.Flags.Has(NodeSelf) }
func (n Node) IsCoordinator() bool { return n.Flags.Has(NodeCoordinator) }
