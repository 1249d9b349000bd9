package cluster

import "strings"

// CommandFlags mark per-command routing behavior.
type CommandFlags uint8

const (
	// FlagAliased means the sharding-key argument must be resolved
	// through the alias registry before partitioning.
	FlagAliased CommandFlags = 1 << iota
	// FlagRootCommand discriminates a top-level command from one already
	// rewritten for a specific shard.
	FlagRootCommand
)

// Command is an array of binary-safe argument strings with an optional
// pre-assigned target slot and a sharding-key argument position.
type Command struct {
	Args            []string
	TargetSlot      int // -1 when unset
	ShardingKeyPos  int // index into Args, -1 when the command has none
	Flags           CommandFlags
}

// NewCommand builds a Command with no pre-assigned slot and no sharding key.
func NewCommand(args ...string) *Command {
	return &Command{Args: args, TargetSlot: -1, ShardingKeyPos: -1}
}

// Clone returns a deep copy of the command, including its argument slice.
func (c *Command) Clone() *Command {
	args := make([]string, len(c.Args))
	copy(args, c.Args)
	return &Command{Args: args, TargetSlot: c.TargetSlot, ShardingKeyPos: c.ShardingKeyPos, Flags: c.Flags}
}

// HasPinnedSlot reports whether the command already carries an explicit
// non-negative target slot, bypassing shard-key extraction.
func (c *Command) HasPinnedSlot() bool { return c.TargetSlot >= 0 }

// ShardingKey extracts the substring between the last '{' and its matching
// '}' inside the designated key argument, or the full argument if no brace
// pair exists. Returns ("", false) if the command has no sharding-key
// argument at all.
func (c *Command) ShardingKey() (string, bool) {
	if c.ShardingKeyPos < 0 || c.ShardingKeyPos >= len(c.Args) {
		return "", false
	}
	return extractShardTag(c.Args[c.ShardingKeyPos]), true
}

// extractShardTag implements the brace-extraction rule: the substring
// between the last '{' and the first '}' following it, else the whole
// argument.
func extractShardTag(arg string) string {
	open := strings.LastIndex(arg, "{")
	if open < 0 {
		return arg
	}
	close := strings.Index(arg[open+1:], "}")
	if close < 0 {
		return arg
	}
	return arg[open+1 : open+1+close]
}

// WriteTaggedID rewrites key with a "{tag}" shard-tag suffix, the inverse of
// ParseTaggedID.
func WriteTaggedID(key, tag string) string {
	return key + "{" + tag + "}"
}

// ParseTaggedID is the inverse of WriteTaggedID: given "key{tag}" it returns
// (key, tag, true); given a key with no brace pair it returns (key, "",
// false).
func ParseTaggedID(tagged string) (key, tag string, ok bool) {
	open := strings.LastIndex(tagged, "{")
	if open < 0 {
		return tagged, "", false
	}
	closeRel := strings.Index(tagged[open+1:], "}")
	if closeRel < 0 {
		return tagged, "", false
	}
	return tagged[:open], tagged[open+1 : open+1+closeRel], true
}
