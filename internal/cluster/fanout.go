package cluster

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ShardReply pairs one multiplexed command's reply with any error sending
// it, indexed by partition.
type ShardReply struct {
	Partition int
	Reply     map[string]any
	Err       error
}

// DispatchMultiplexed sends every command produced by MultiplexCommand to
// its target shard concurrently, bounded by maxConcurrency, and collects
// one ShardReply per partition in partition order. This is the coordinator
// side of the per-shard command flow ("command set from multiplexer ->
// dispatch over connection pool"), using errgroup for bounded concurrency
// instead of a raw sync.WaitGroup.
func (m *Manager) DispatchMultiplexed(ctx context.Context, cmd *Command, kind GeneratorKind, strategy CoordinationStrategy, maxConcurrency int) []ShardReply {
	commands := m.Multiplex.MultiplexCommand(cmd, kind)
	replies := make([]ShardReply, len(commands))

	g, _ := errgroup.WithContext(ctx)
	if maxConcurrency > 0 {
		g.SetLimit(maxConcurrency)
	}

	for i, c := range commands {
		i, c := i, c
		g.Go(func() error {
			reply, err := m.Router.SendCommand(strategy, c)
			replies[i] = ShardReply{Partition: i, Reply: reply, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return replies
}
