package cluster

import "strings"

// NodeMap indexes nodes twice: by id (unique) and by host (non-unique, used
// for routing locality). It preserves stable insertion order for
// IterateAll, matching the original node_map's iteration contract.
type NodeMap struct {
	order []string
	byID  map[string]Node
}

// NewNodeMap builds an empty NodeMap.
func NewNodeMap() *NodeMap {
	return &NodeMap{byID: make(map[string]Node)}
}

// Add inserts or replaces a node by id.
func (m *NodeMap) Add(n Node) {
	if _, exists := m.byID[n.ID]; !exists {
		m.order = append(m.order, n.ID)
	}
	m.byID[n.ID] = n
}

// Remove deletes a node by id.
func (m *NodeMap) Remove(id string) {
	if _, ok := m.byID[id]; !ok {
		return
	}
	delete(m.byID, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Get looks up a node by id.
func (m *NodeMap) Get(id string) (Node, bool) {
	n, ok := m.byID[id]
	return n, ok
}

// IDs returns the current set of node ids.
func (m *NodeMap) IDs() map[string]struct{} {
	out := make(map[string]struct{}, len(m.byID))
	for id := range m.byID {
		out[id] = struct{}{}
	}
	return out
}

// IterateAll yields every node once, in stable insertion order.
func (m *NodeMap) IterateAll(fn func(Node) bool) {
	for _, id := range m.order {
		n, ok := m.byID[id]
		if !ok {
			continue
		}
		if !fn(n) {
			return
		}
	}
}

// IterateHost yields only nodes whose endpoint host compares case-insensitive
// equal to host.
func (m *NodeMap) IterateHost(host string, fn func(Node) bool) {
	for _, id := range m.order {
		n, ok := m.byID[id]
		if !ok {
			continue
		}
		if strings.EqualFold(n.Endpoint.Host, host) {
			if !fn(n) {
				return
			}
		}
	}
}

// Len returns the number of nodes currently tracked.
func (m *NodeMap) Len() int { return len(m.byID) }
