package shardsvc

import (
	"context"
	"strconv"
	"strings"

	"github.com/dreamware/distmem/internal/clusterproto"
	"github.com/dreamware/distmem/internal/funcs"
	"github.com/dreamware/distmem/internal/wire"
)

// handleReduce implements one hop of the distributed fold (spec §4.4):
// fold the local stripe into acc, then either forward the rest of the
// chain to the next stripe's owner, or — if this was the last stripe —
// deliver the final accumulator straight to the Director.
//
// The envelope returned here is just a receipt to whoever sent us this
// REDUCE; neither the Director nor a previous hop waits on it for the
// actual result, per the protocol's fire-and-forget chaining.
func (d *Dispatcher) handleReduce(ctx context.Context, env wire.Envelope) wire.Envelope {
	var req wire.ReduceRequest
	_ = env.Decode(&req)

	ack, _ := wire.Encode(d.rank, wire.TagReduce, struct{}{})

	if len(req.Names) == 0 {
		return ack
	}

	fn, err := d.funcs.Reduce(req.Fn)
	if err != nil {
		if d.log != nil {
			d.log.Errorw("reduce: unregistered function", "name", req.Fn.Name, "err", err)
		}
		return ack
	}

	acc, _ := d.store.Fold(req.Names[0], fn, req.Acc)

	rest := req.Names[1:]
	if len(rest) > 0 {
		d.forwardReduce(ctx, rest, req.Fn, acc)
	} else {
		d.deliverReduceResult(ctx, acc)
	}
	return ack
}

func (d *Dispatcher) forwardReduce(ctx context.Context, rest []string, fn funcs.Ref, acc int64) {
	nextRank, ok := rankOfLocalName(rest[0])
	if !ok {
		if d.log != nil {
			d.log.Errorw("reduce: malformed local name", "local_name", rest[0])
		}
		return
	}
	addr, ok := d.directory.Lookup(nextRank)
	if !ok {
		if d.log != nil {
			d.log.Errorw("reduce: no known address for shard", "shard_rank", nextRank)
		}
		return
	}

	client := clusterproto.NewClient(addr)
	env, err := wire.Encode(d.rank, wire.TagReduce, wire.ReduceRequest{Names: rest, Fn: fn, Acc: acc})
	if err != nil {
		return
	}
	if err := client.Send(ctx, env, nil); err != nil && d.log != nil {
		d.log.Errorw("reduce: failed to forward to next shard", "shard_rank", nextRank, "err", err)
	}
}

func (d *Dispatcher) deliverReduceResult(ctx context.Context, acc int64) {
	client := clusterproto.NewClient(d.directorAddr)
	env, err := wire.Encode(d.rank, wire.TagReduce, wire.ReduceReply{Acc: acc})
	if err != nil {
		return
	}
	if err := client.Send(ctx, env, nil); err != nil && d.log != nil {
		d.log.Errorw("reduce: failed to deliver final result to director", "err", err)
	}
}

// rankOfLocalName recovers a LocalName's owning rank from its
// "<rank>-<counter>" prefix — same scheme as director.shardOfLocalName,
// duplicated here since a Shard has no dependency on the director package.
func rankOfLocalName(name string) (int, bool) {
	idx := strings.IndexByte(name, '-')
	if idx < 0 {
		return 0, false
	}
	rank, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, false
	}
	return rank, true
}
