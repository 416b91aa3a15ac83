package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/distmem/internal/clusterproto"
	"github.com/dreamware/distmem/internal/director"
	"github.com/dreamware/distmem/internal/wire"
)

// pushDirectoryToAll sends the current rank->address snapshot to every
// known Shard in parallel, the same "broadcast to all nodes, log but
// don't fail on individual errors" shape as the teacher's
// handleBroadcast, generalized from an arbitrary JSON path to a
// TagDirectory envelope.
func pushDirectoryToAll(d *director.Director, snapshot map[int]string, log *zap.SugaredLogger) {
	var wg sync.WaitGroup
	for rank, addr := range snapshot {
		wg.Add(1)
		go func(rank int, addr string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
			defer cancel()

			client := clusterproto.NewClient(addr)
			env, err := wire.Encode(0, wire.TagDirectory, wire.DirectoryRequest{Addresses: snapshot})
			if err != nil {
				return
			}
			if err := client.Send(ctx, env, nil); err != nil && log != nil {
				log.Warnw("failed to push directory to shard", "shard_rank", rank, "err", err)
			}
		}(rank, addr)
	}
	wg.Wait()
}
