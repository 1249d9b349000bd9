package cluster

import "strconv"

// GeneratorKind selects a command-multiplexer strategy.
type GeneratorKind int

const (
	GenDefault GeneratorKind = iota
	GenNoPartition
	GenSpellCheck
)

// Multiplexer rewrites a single logical command into one command per
// partition, tagging the sharding-key argument (or the target slot) so each
// copy deterministically routes to its own shard.
type Multiplexer struct {
	partitions *PartitionCtx
	aliases    map[string]string
}

// NewMultiplexer builds a Multiplexer over the given partition context.
func NewMultiplexer(partitions *PartitionCtx) *Multiplexer {
	return &Multiplexer{partitions: partitions, aliases: make(map[string]string)}
}

// SetAlias registers an alias -> underlying index name mapping, consulted
// when a command carries FlagAliased.
func (m *Multiplexer) SetAlias(alias, target string) {
	m.aliases[alias] = target
}

// EnsureSize initializes the partition count from topo's shard count (if
// unset) and precomputes the per-partition slot-tag table.
func (m *Multiplexer) EnsureSize(topo *Topology) {
	if m.partitions.Size() > 0 {
		return
	}
	numPartitions := len(topo.Shards)
	if numPartitions == 0 {
		return
	}
	m.partitions.SetSize(numPartitions)
	table := buildSlotTagTable(topo.HashFunc, topo.NumSlots)
	m.partitions.SetSlotTable(table, topo.NumSlots)
}

// buildSlotTagTable precomputes, for every slot in [0, numSlots), a tag
// string guaranteed to hash to that slot under hashFunc. It tries
// incrementing candidate tags until every slot has an assigned tag.
func buildSlotTagTable(hashFunc HashFunc, numSlots int) []string {
	table := make([]string, numSlots)
	filled := 0
	for i := 0; filled < numSlots; i++ {
		candidate := "tag" + strconv.Itoa(i)
		slot := int(hashFunc.Hash(candidate)) % numSlots
		if table[slot] == "" {
			table[slot] = candidate
			filled++
		}
		if i > numSlots*64 {
			// Pathological hash distribution; fill any remaining
			// slots with their own decimal string under HashNone
			// semantics so every slot still has a usable tag.
			break
		}
	}
	for slot, tag := range table {
		if tag == "" {
			table[slot] = strconv.Itoa(slot)
		}
	}
	return table
}

// MultiplexCommand produces, for the given generator kind, one rewritten
// Command per partition. A command with a pinned target slot bypasses
// rewriting entirely and is returned as a single-element slice.
func (m *Multiplexer) MultiplexCommand(cmd *Command, kind GeneratorKind) []*Command {
	if cmd.HasPinnedSlot() {
		return []*Command{cmd}
	}

	keyPos := cmd.ShardingKeyPos
	if cmd.Flags&FlagAliased != 0 && keyPos >= 0 && keyPos < len(cmd.Args) {
		if target, ok := m.aliases[cmd.Args[keyPos]]; ok {
			rewritten := cmd.Clone()
			rewritten.Args[keyPos] = target
			cmd = rewritten
		}
	}

	numPartitions := m.partitions.Size()
	out := make([]*Command, 0, numPartitions)
	for i := 0; i < numPartitions; i++ {
		c := cmd.Clone()
		switch kind {
		case GenNoPartition:
			c.TargetSlot = GetSlotByPartition(m.partitions.tableSize, numPartitions, i)
		case GenSpellCheck:
			if !rewriteShardKey(c, keyPos, m.partitions, i) {
				return []*Command{cmd}
			}
			c.Args = insertAt(c.Args, 3, "FULLSCOREINFO")
		default: // GenDefault
			if !rewriteShardKey(c, keyPos, m.partitions, i) {
				return []*Command{cmd}
			}
		}
		out = append(out, c)
	}
	return out
}

// rewriteShardKey replaces c.Args[keyPos] with "key{tag_i}" where tag_i is
// partition i's canonical slot-table entry. Returns false (aborting the
// whole rewrite, per the "argument out of range" rule) if keyPos is out of
// range.
func rewriteShardKey(c *Command, keyPos int, partitions *PartitionCtx, partition int) bool {
	if keyPos < 0 || keyPos >= len(c.Args) {
		return false
	}
	tag, ok := partitions.SlotTag(partition)
	if !ok {
		return false
	}
	key, _, _ := ParseTaggedID(c.Args[keyPos])
	c.Args[keyPos] = WriteTaggedID(key, tag)
	return true
}

// insertAt inserts value at index idx in args, clamping idx to len(args).
func insertAt(args []string, idx int, value string) []string {
	if idx > len(args) {
		idx = len(args)
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[:idx]...)
	out = append(out, value)
	out = append(out, args[idx:]...)
	return out
}
