package cluster

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTopology parses the minimal topology text format grounded on
// original_source/coord/src/rmr/redise.c:
//
//	MYID <id> [HASHFUNC CRC12|CRC16] [NUMSLOTS n] RANGES k
//	  SHARD <shard-id> SLOTRANGE <start> <end> ADDR <host:port>
//	       [UNIXADDR <path>] [MASTER]
//	  ...
//
// Constraints: 1<=NUMSLOTS<=16384, start<=end<NUMSLOTS, MYID required,
// RANGES count must equal shard count, trailing tokens error.
func ParseTopology(text string) (*Topology, error) {
	toks := strings.Fields(text)
	p := &tokParser{toks: toks}

	myID, ok := p.expectValue("MYID")
	if !ok {
		return nil, fmt.Errorf("topology text missing required MYID")
	}

	hashFunc := HashNone
	if p.peek() == "HASHFUNC" {
		p.next()
		raw := p.next()
		hf, ok := ParseHashFunc(raw)
		if !ok {
			return nil, fmt.Errorf("unknown HASHFUNC %q", raw)
		}
		hashFunc = hf
	}

	numSlots := 16384
	if p.peek() == "NUMSLOTS" {
		p.next()
		n, err := strconv.Atoi(p.next())
		if err != nil {
			return nil, fmt.Errorf("invalid NUMSLOTS: %w", err)
		}
		numSlots = n
	}
	if numSlots < 1 || numSlots > 16384 {
		return nil, fmt.Errorf("NUMSLOTS %d out of range [1,16384]", numSlots)
	}

	rangesStr, ok := p.expectValue("RANGES")
	if !ok {
		return nil, fmt.Errorf("topology text missing required RANGES")
	}
	ranges, err := strconv.Atoi(rangesStr)
	if err != nil {
		return nil, fmt.Errorf("invalid RANGES: %w", err)
	}

	topo := &Topology{NumSlots: numSlots, HashFunc: hashFunc}
	for i := 0; i < ranges; i++ {
		sh, err := parseShard(p, myID)
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		if sh.StartSlot > sh.EndSlot || sh.EndSlot >= numSlots {
			return nil, fmt.Errorf("shard %d: invalid slot range [%d,%d] for NUMSLOTS %d", i, sh.StartSlot, sh.EndSlot, numSlots)
		}
		topo.Shards = append(topo.Shards, sh)
	}

	if !p.atEnd() {
		return nil, fmt.Errorf("trailing tokens in topology text: %v", p.toks[p.pos:])
	}
	return topo, nil
}

func parseShard(p *tokParser, myID string) (Shard, error) {
	nodeID, ok := p.expectValue("SHARD")
	if !ok {
		return Shard{}, fmt.Errorf("missing SHARD")
	}
	start, ok1 := p.expectValue("SLOTRANGE")
	if !ok1 {
		return Shard{}, fmt.Errorf("missing SLOTRANGE start")
	}
	end := p.next()
	startSlot, err := strconv.Atoi(start)
	if err != nil {
		return Shard{}, fmt.Errorf("invalid start slot: %w", err)
	}
	endSlot, err := strconv.Atoi(end)
	if err != nil {
		return Shard{}, fmt.Errorf("invalid end slot: %w", err)
	}
	addr, ok := p.expectValue("ADDR")
	if !ok {
		return Shard{}, fmt.Errorf("missing ADDR")
	}
	host, port, err := splitHostPort(addr)
	if err != nil {
		return Shard{}, err
	}

	node := Node{ID: nodeID, Endpoint: Endpoint{Host: host, Port: port}}
	if nodeID == myID {
		node.Flags |= NodeSelf
	}
	for {
		switch p.peek() {
		case "UNIXADDR":
			p.next()
			node.Endpoint.UnixSocket = p.next()
		case "MASTER":
			p.next()
			node.Flags |= NodeMaster
		default:
			return Shard{StartSlot: startSlot, EndSlot: endSlot, Nodes: []Node{node}}, nil
		}
	}
}

func splitHostPort(addr string) (string, int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid ADDR %q: missing port", addr)
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid ADDR %q: %w", addr, err)
	}
	return addr[:idx], port, nil
}

// Render serializes a Topology back to the text format ParseTopology
// accepts, so that serialize -> parse -> serialize is a fixed point
// (ignoring ordering of equal-priority tokens). selfID is emitted as MYID.
func (t *Topology) Render(selfID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MYID %s HASHFUNC %s NUMSLOTS %d RANGES %d\n", selfID, t.HashFunc, t.NumSlots, len(t.Shards))
	for _, sh := range t.Shards {
		nodeID := selfID
		if len(sh.Nodes) > 0 {
			nodeID = sh.Nodes[0].ID
		}
		fmt.Fprintf(&b, "SHARD %s SLOTRANGE %d %d", nodeID, sh.StartSlot, sh.EndSlot)
		for _, n := range sh.Nodes {
			fmt.Fprintf(&b, " ADDR %s:%d", n.Endpoint.Host, n.Endpoint.Port)
			if n.Endpoint.UnixSocket != "" {
				fmt.Fprintf(&b, " UNIXADDR %s", n.Endpoint.UnixSocket)
			}
			if n.IsMaster() {
				b.WriteString(" MASTER")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// tokParser is a minimal whitespace-token cursor used by ParseTopology.
type tokParser struct {
	toks []string
	pos  int
}

func (p *tokParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *tokParser) next() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *tokParser) atEnd() bool { return p.pos >= len(p.toks) }

// expectValue consumes keyword then returns the following token.
func (p *tokParser) expectValue(keyword string) (string, bool) {
	if p.peek() != keyword {
		return "", false
	}
	p.next()
	if p.atEnd() {
		return "", false
	}
	return p.next(), true
}
