package shardsvc

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dreamware/distmem/internal/clock"
	"github.com/dreamware/distmem/internal/clusterproto"
	"github.com/dreamware/distmem/internal/direrr"
	"github.com/dreamware/distmem/internal/funcs"
	"github.com/dreamware/distmem/internal/obsmetrics"
	"github.com/dreamware/distmem/internal/store"
	"github.com/dreamware/distmem/internal/wire"
)

// request is one (envelope, reply-destination) pair sitting in the
// mailbox. reply receives exactly one envelope for every tag; after
// answering a TagQuit, Run stops draining the mailbox.
type request struct {
	env   wire.Envelope
	reply chan wire.Envelope
}

// Dispatcher is the Shard's single-threaded message loop. Every exported
// method that touches state does so by posting to mailbox and waiting for
// Run (the one goroutine draining it) to produce a reply — mirroring
// spec §4.3's "receive one message from ANY source with ANY tag".
type Dispatcher struct {
	rank         int
	store        *store.Store
	funcs        *funcs.Registry
	clock        clock.Clock
	directory    *clusterproto.Directory
	directorAddr string
	log          *zap.SugaredLogger
	metrics      *obsmetrics.ShardMetrics

	mailbox chan request
	done    chan struct{}
}

// Config bundles Dispatcher construction options.
type Config struct {
	Rank         int
	DirectorAddr string
	Clock        clock.Clock
	Log          *zap.SugaredLogger
	Metrics      *obsmetrics.ShardMetrics
	Funcs        *funcs.Registry // nil defaults to funcs.NewRegistry()
}

// New returns a Dispatcher for rank, with an empty Store and directory.
// Call Run in its own goroutine before Submit-ing anything.
func New(cfg Config) *Dispatcher {
	c := cfg.Clock
	if c == nil {
		c = clock.WallClock{}
	}
	fr := cfg.Funcs
	if fr == nil {
		fr = funcs.NewRegistry()
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		rank:         cfg.Rank,
		store:        store.New(cfg.Rank),
		funcs:        fr,
		clock:        c,
		directory:    clusterproto.NewDirectory(),
		directorAddr: cfg.DirectorAddr,
		log:          log,
		metrics:      cfg.Metrics,
		mailbox:      make(chan request, 64),
		done:         make(chan struct{}),
	}
}

// Directory exposes the Shard's rank->address book, refreshed whenever
// the Director pushes a TagDirectory update.
func (d *Dispatcher) Directory() *clusterproto.Directory {
	return d.directory
}

// Submit enqueues env and blocks until Run has produced a reply, or ctx
// is canceled. This is what every /rpc handler calls.
func (d *Dispatcher) Submit(ctx context.Context, env wire.Envelope) (wire.Envelope, error) {
	req := request{env: env, reply: make(chan wire.Envelope, 1)}
	select {
	case d.mailbox <- req:
	case <-ctx.Done():
		return wire.Envelope{}, ctx.Err()
	case <-d.done:
		return wire.Envelope{}, fmt.Errorf("shardsvc: dispatcher has quit")
	}

	select {
	case reply := <-req.reply:
		return reply, nil
	case <-ctx.Done():
		return wire.Envelope{}, ctx.Err()
	}
}

// Run drains the mailbox until a TagQuit message arrives or ctx is
// canceled. It must run in exactly one goroutine for the life of the
// Dispatcher — that single goroutine is the entire concurrency story for
// Store access.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case req := <-d.mailbox:
			reply, quit := d.dispatch(ctx, req.env)
			req.reply <- reply
			if quit {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) countTag(tag wire.Tag) {
	if d.metrics != nil {
		d.metrics.TagTotal.WithLabelValues(tag.String()).Inc()
		d.metrics.StoreSize.Set(float64(d.store.Size()))
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, env wire.Envelope) (reply wire.Envelope, quit bool) {
	d.countTag(env.Tag)

	switch env.Tag {
	case wire.TagAlloc:
		return d.handleAlloc(env), false
	case wire.TagRead:
		return d.handleRead(env), false
	case wire.TagModify:
		return d.handleModify(env), false
	case wire.TagFree:
		return d.handleFree(env), false
	case wire.TagMap:
		return d.handleMap(env), false
	case wire.TagFilter:
		return d.handleFilter(env), false
	case wire.TagReduce:
		return d.handleReduce(ctx, env), false
	case wire.TagDirectory:
		return d.handleDirectory(env), false
	case wire.TagQuit:
		reply, _ := wire.Encode(d.rank, wire.TagQuit, struct{}{})
		if d.log != nil {
			d.log.Infow("shard quitting")
		}
		return reply, true
	default:
		// UnknownTag is fatal per spec §7: the Shard has no way to safely
		// continue serving a tag it doesn't recognize.
		if d.log != nil {
			d.log.Fatalw("unknown tag", "tag", int(env.Tag))
		}
		err := direrr.New(direrr.UnknownTag, "shard: unrecognized tag %d", int(env.Tag))
		reply, _ := wire.Encode(d.rank, env.Tag, map[string]string{"error": err.Error()})
		return reply, true
	}
}

func (d *Dispatcher) handleAlloc(env wire.Envelope) wire.Envelope {
	var req wire.AllocRequest
	_ = env.Decode(&req)

	name := d.store.Alloc(req.Value)
	reply, _ := wire.Encode(d.rank, wire.TagAlloc, wire.AllocReply{LocalName: name})
	return reply
}

func (d *Dispatcher) handleRead(env wire.Envelope) wire.Envelope {
	var req wire.ReadRequest
	_ = env.Decode(&req)

	v, ok := d.store.Read(req.LocalName)
	reply, _ := wire.Encode(d.rank, wire.TagRead, wire.ReadReply{Value: v, Absent: !ok})
	return reply
}

func (d *Dispatcher) handleModify(env wire.Envelope) wire.Envelope {
	var req wire.ModifyRequest
	_ = env.Decode(&req)

	ok, err := d.store.Modify(req.LocalName, req.NewValue, req.Index, req.Timestamp)
	if err != nil && d.log != nil {
		d.log.Errorw("modify failed", "local_name", req.LocalName, "err", err)
	}
	reply, _ := wire.Encode(d.rank, wire.TagModify, wire.ModifyReply{Ok: ok})
	return reply
}

func (d *Dispatcher) handleFree(env wire.Envelope) wire.Envelope {
	var req wire.FreeRequest
	_ = env.Decode(&req)

	count, _ := d.store.Free(req.LocalName)
	reply, _ := wire.Encode(d.rank, wire.TagFree, wire.FreeReply{Count: count})
	return reply
}

func (d *Dispatcher) handleMap(env wire.Envelope) wire.Envelope {
	var req wire.MapRequest
	_ = env.Decode(&req)

	fn, err := d.funcs.Map(req.Fn)
	if err != nil {
		if d.log != nil {
			d.log.Errorw("map: unregistered function", "name", req.Fn.Name, "err", err)
		}
	} else {
		d.store.Map(req.LocalName, fn)
	}

	reply, _ := wire.Encode(d.rank, wire.TagMap, struct{}{})
	return reply
}

func (d *Dispatcher) handleFilter(env wire.Envelope) wire.Envelope {
	var req wire.FilterRequest
	_ = env.Decode(&req)

	pred, err := d.funcs.Filter(req.Pred)
	if err != nil {
		if d.log != nil {
			d.log.Errorw("filter: unregistered function", "name", req.Pred.Name, "err", err)
		}
		remainingLen, present := d.store.Len(req.LocalName)
		reply, _ := wire.Encode(d.rank, wire.TagFilter, wire.FilterReply{StillPresent: present, RemainingLen: remainingLen})
		return reply
	}

	removed, stillPresent, remainingLen, _ := d.store.Filter(req.LocalName, pred)
	reply, _ := wire.Encode(d.rank, wire.TagFilter, wire.FilterReply{
		Removed:      removed,
		StillPresent: stillPresent,
		RemainingLen: remainingLen,
	})
	return reply
}

func (d *Dispatcher) handleDirectory(env wire.Envelope) wire.Envelope {
	var req wire.DirectoryRequest
	_ = env.Decode(&req)

	d.directory.Replace(req.Addresses)
	reply, _ := wire.Encode(d.rank, wire.TagDirectory, struct{}{})
	return reply
}
