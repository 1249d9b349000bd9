package cluster

// PartitionCtx mirrors the original's PartitionCtx (partition.c): a
// precomputed per-partition slot table used to tag multiplexed commands so
// each rewritten copy deterministically lands on its own partition.
type PartitionCtx struct {
	size      int
	table     []string
	tableSize int
}

// NewPartitionCtx initializes a partition context over numPartitions
// partitions and a slot table of the given size.
func NewPartitionCtx(numPartitions int, table []string, tableSize int) *PartitionCtx {
	return &PartitionCtx{size: numPartitions, table: table, tableSize: tableSize}
}

// SetSlotTable replaces the slot table (e.g. after EnsureSize recomputes
// it for a new topology).
func (c *PartitionCtx) SetSlotTable(table []string, tableSize int) {
	c.table = table
	c.tableSize = tableSize
}

// SetSize sets the number of partitions.
func (c *PartitionCtx) SetSize(size int) { c.size = size }

// Size returns the number of partitions.
func (c *PartitionCtx) Size() int { return c.size }

// GetSlotByPartition computes the canonical slot for partition i, grounded
// verbatim on original_source/coord/src/partition.c:
//
//	step = tableSize / size
//	slot = ((partition+1)*step - 1) % tableSize
func GetSlotByPartition(tableSize, numPartitions, partition int) int {
	step := tableSize / numPartitions
	return ((partition+1)*step - 1) % tableSize
}

// SlotTag returns the canonical tag string for partition i's slot — the
// precomputed table entry guaranteed to hash to GetSlotByPartition(i) (the
// canonical slot-table entry for that partition).
func (c *PartitionCtx) SlotTag(partition int) (string, bool) {
	slot := GetSlotByPartition(c.tableSize, c.size, partition)
	if slot < 0 || slot >= len(c.table) {
		return "", false
	}
	return c.table[slot], true
}
