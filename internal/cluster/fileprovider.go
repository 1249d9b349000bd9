package cluster

import (
	"context"
	"fmt"
	"os"
)

// FileTopologyProvider implements TopologyProvider by re-reading and
// re-parsing a topology file on every FetchTopology call. Paired with
// Manager's CLUSTERREFRESH ticker, it lets an operator edit the topology
// file in place (e.g. after a shard resize) and have every coordinator
// process pick up the change within one refresh interval, with no restart
// and no external discovery service required.
type FileTopologyProvider struct {
	path string
}

// NewFileTopologyProvider returns a TopologyProvider backed by the topology
// file at path.
func NewFileTopologyProvider(path string) *FileTopologyProvider {
	return &FileTopologyProvider{path: path}
}

// FetchTopology implements TopologyProvider.
func (p *FileTopologyProvider) FetchTopology(ctx context.Context) (*Topology, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	topo, err := ParseTopology(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing topology file: %w", err)
	}
	return topo, nil
}
