package director

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dreamware/distmem/internal/clock"
	"github.com/dreamware/distmem/internal/clusterproto"
	"github.com/dreamware/distmem/internal/direrr"
	"github.com/dreamware/distmem/internal/funcs"
	"github.com/dreamware/distmem/internal/obsmetrics"
	"github.com/dreamware/distmem/internal/wire"
)

// Director is the coordinating role: it never stores a payload, only the
// placement of one, and exposes the blocking value API described in spec
// §4.2. One Director call runs to completion before the next is accepted —
// "concurrency of user calls is not supported (single-threaded user)" — so
// callMu serializes the API surface the same way the Shard's dispatch
// loop serializes tag handling.
type Director struct {
	callMu sync.Mutex

	maxPerShard int
	directory   *clusterproto.Directory
	load        *LoadTable
	clock       clock.Clock
	log         *zap.SugaredLogger
	metrics     *obsmetrics.DirectorMetrics

	clientsMu sync.Mutex
	clients   map[int]*clusterproto.Client

	reduceMu  sync.Mutex
	reduceCh  chan int64
}

// Config bundles Director construction options.
type Config struct {
	MaxPerShard int
	Clock       clock.Clock // nil defaults to clock.WallClock{}
	Log         *zap.SugaredLogger
	Metrics     *obsmetrics.DirectorMetrics
}

// New returns a Director with no Shards registered yet; RegisterShard adds
// them as they check in.
func New(cfg Config) *Director {
	c := cfg.Clock
	if c == nil {
		c = clock.WallClock{}
	}
	return &Director{
		maxPerShard: cfg.MaxPerShard,
		directory:   clusterproto.NewDirectory(),
		load:        NewLoadTable(nil),
		clock:       c,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		clients:     make(map[int]*clusterproto.Client),
	}
}

// RegisterShard records a Shard's rank and address, making it eligible for
// placement. Safe to call concurrently with API calls (it only touches
// the directory/load table, not callMu).
func (d *Director) RegisterShard(rank int, addr string) {
	d.directory.Set(rank, addr)
	d.load.AddRank(rank)

	d.clientsMu.Lock()
	d.clients[rank] = clusterproto.NewClient(addr)
	d.clientsMu.Unlock()

	if d.metrics != nil {
		d.metrics.ShardCount.Set(float64(d.directory.Len()))
	}
	if d.log != nil {
		d.log.Infow("shard registered", "shard_rank", rank, "addr", addr)
	}
}

// Directory exposes the rank->address book, e.g. so cmd/director can push
// it out to Shards after each registration.
func (d *Director) Directory() *clusterproto.Directory {
	return d.directory
}

func (d *Director) client(rank int) (*clusterproto.Client, error) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()

	c, ok := d.clients[rank]
	if !ok {
		return nil, fmt.Errorf("director: no client for shard rank %d", rank)
	}
	return c, nil
}

func (d *Director) countOp(op string) {
	if d.metrics != nil {
		d.metrics.RequestTotal.WithLabelValues(op).Inc()
	}
}

func (d *Director) reportLoad(rank int) {
	if d.metrics != nil {
		d.metrics.LoadTable.WithLabelValues(fmt.Sprintf("%d", rank)).Set(float64(d.load.Get(rank)))
	}
}

// Add places a new variable and returns its Handle. value must be an Int
// or a List (wire.KindInt / wire.KindList) — anything else is
// direrr.InvalidType.
func (d *Director) Add(ctx context.Context, value wire.Value) (*Handle, error) {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("add")

	if value.Kind != wire.KindInt && value.Kind != wire.KindList {
		return nil, direrr.New(direrr.InvalidType, "add: value must be Int or List")
	}

	size := value.Len()
	plans, err := plan(d.load, size, d.maxPerShard)
	if err != nil {
		return nil, err
	}

	h := &Handle{Kind: value.Kind}
	offset := 0
	for _, p := range plans {
		var slice wire.Value
		if value.Kind == wire.KindInt {
			slice = value
		} else {
			slice = wire.ListValue(value.List[offset : offset+p.Amount])
		}

		localName, err := d.sendAlloc(ctx, p.Rank, slice)
		if err != nil {
			return nil, err
		}

		d.load.Add(p.Rank, p.Amount)
		d.reportLoad(p.Rank)

		h.Stripes = append(h.Stripes, StripeDescriptor{
			LocalName: localName,
			Low:       offset,
			High:      offset + p.Amount - 1,
		})
		offset += p.Amount
	}
	return h, nil
}

func (d *Director) sendAlloc(ctx context.Context, rank int, value wire.Value) (string, error) {
	c, err := d.client(rank)
	if err != nil {
		return "", err
	}
	env, err := wire.Encode(0, wire.TagAlloc, wire.AllocRequest{Value: value})
	if err != nil {
		return "", errors.Wrap(err, "director: encode alloc")
	}
	var reply wire.AllocReply
	if err := c.Send(ctx, env, &reply); err != nil {
		return "", errors.Wrapf(err, "director: alloc on shard %d", rank)
	}
	return reply.LocalName, nil
}

// Read returns the handle's current logical value: the first stripe's
// value directly if it is an Int, or the in-order concatenation of every
// stripe's list payload.
func (d *Director) Read(ctx context.Context, h *Handle) (wire.Value, error) {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("read")

	if !h.Live() {
		return wire.Value{}, direrr.New(direrr.MissingName, "read: handle is empty")
	}

	if h.Kind == wire.KindInt {
		v, err := d.sendRead(ctx, h.Stripes[0].LocalName)
		if err != nil {
			return wire.Value{}, err
		}
		return v, nil
	}

	var out []int64
	for _, s := range h.Stripes {
		v, err := d.sendRead(ctx, s.LocalName)
		if err != nil {
			return wire.Value{}, err
		}
		out = append(out, v.List...)
	}
	return wire.ListValue(out), nil
}

func (d *Director) sendRead(ctx context.Context, localName string) (wire.Value, error) {
	rank, ok := shardOfLocalName(localName)
	if !ok {
		return wire.Value{}, fmt.Errorf("director: malformed local name %q", localName)
	}
	c, err := d.client(rank)
	if err != nil {
		return wire.Value{}, err
	}
	env, err := wire.Encode(0, wire.TagRead, wire.ReadRequest{LocalName: localName})
	if err != nil {
		return wire.Value{}, errors.Wrap(err, "director: encode read")
	}
	var reply wire.ReadReply
	if err := c.Send(ctx, env, &reply); err != nil {
		return wire.Value{}, errors.Wrapf(err, "director: read from shard %d", rank)
	}
	if reply.Absent {
		return wire.Value{}, direrr.New(direrr.MissingName, "read: %q not found on shard %d", localName, rank)
	}
	return reply.Value, nil
}

// Modify applies a last-writer-wins update. index is required for List
// handles and must map to some stripe (else direrr.OutOfBounds); it is
// ignored for Int handles.
func (d *Director) Modify(ctx context.Context, h *Handle, newValue int64, index *int) (bool, error) {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("modify")

	if !h.Live() {
		return false, direrr.New(direrr.MissingName, "modify: handle is empty")
	}

	ts := d.clock.Now()

	if h.Kind == wire.KindInt {
		return d.sendModify(ctx, h.Stripes[0].LocalName, newValue, nil, ts)
	}

	if index == nil {
		return false, direrr.New(direrr.OutOfBounds, "modify: index required for a List handle")
	}
	stripeIdx, localIdx, ok := findStripe(h.Stripes, *index)
	if !ok {
		return false, direrr.New(direrr.OutOfBounds, "modify: index %d out of range", *index)
	}
	return d.sendModify(ctx, h.Stripes[stripeIdx].LocalName, newValue, &localIdx, ts)
}

func (d *Director) sendModify(ctx context.Context, localName string, newValue int64, localIdx *int, ts int64) (bool, error) {
	rank, ok := shardOfLocalName(localName)
	if !ok {
		return false, fmt.Errorf("director: malformed local name %q", localName)
	}
	c, err := d.client(rank)
	if err != nil {
		return false, err
	}
	env, err := wire.Encode(0, wire.TagModify, wire.ModifyRequest{
		LocalName: localName,
		NewValue:  newValue,
		Index:     localIdx,
		Timestamp: ts,
	})
	if err != nil {
		return false, errors.Wrap(err, "director: encode modify")
	}
	var reply wire.ModifyReply
	if err := c.Send(ctx, env, &reply); err != nil {
		return false, errors.Wrapf(err, "director: modify on shard %d", rank)
	}
	return reply.Ok, nil
}

// Free destroys every stripe in h and empties it. Calling Free on an
// already-empty handle is direrr.DoubleFree.
func (d *Director) Free(ctx context.Context, h *Handle) error {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("free")

	if !h.Live() {
		return direrr.New(direrr.DoubleFree, "free: handle already empty")
	}

	for _, s := range h.Stripes {
		rank, ok := shardOfLocalName(s.LocalName)
		if !ok {
			return fmt.Errorf("director: malformed local name %q", s.LocalName)
		}
		c, err := d.client(rank)
		if err != nil {
			return err
		}
		env, err := wire.Encode(0, wire.TagFree, wire.FreeRequest{LocalName: s.LocalName})
		if err != nil {
			return errors.Wrap(err, "director: encode free")
		}
		var reply wire.FreeReply
		if err := c.Send(ctx, env, &reply); err != nil {
			return errors.Wrapf(err, "director: free on shard %d", rank)
		}
		d.load.Add(rank, -reply.Count)
		d.reportLoad(rank)
	}

	h.Stripes = nil
	return nil
}

// Map applies fn pointwise to every element of h. No result comes back:
// each Shard answers only with an empty acknowledgement, which Map waits
// for before moving to the next stripe. LoadTable is unchanged since Map
// never changes element counts.
func (d *Director) Map(ctx context.Context, h *Handle, fn funcs.Ref) error {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("map")

	for _, s := range h.Stripes {
		rank, ok := shardOfLocalName(s.LocalName)
		if !ok {
			return fmt.Errorf("director: malformed local name %q", s.LocalName)
		}
		c, err := d.client(rank)
		if err != nil {
			return err
		}
		env, err := wire.Encode(0, wire.TagMap, wire.MapRequest{LocalName: s.LocalName, Fn: fn})
		if err != nil {
			return errors.Wrap(err, "director: encode map")
		}
		if err := c.Send(ctx, env, nil); err != nil {
			return errors.Wrapf(err, "director: map on shard %d", rank)
		}
	}
	return nil
}

// Filter removes elements failing pred from every stripe of h, dropping
// any stripe the Shard reports as now empty and re-deriving each
// surviving stripe's logical bounds from the Shard-reported remaining
// length (spec §9's open question, resolved as option (b): re-index
// rather than leave ListStripeIndex stale).
func (d *Director) Filter(ctx context.Context, h *Handle, pred funcs.Ref) error {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("filter")

	var kept []StripeDescriptor
	offset := 0
	for _, s := range h.Stripes {
		rank, ok := shardOfLocalName(s.LocalName)
		if !ok {
			return fmt.Errorf("director: malformed local name %q", s.LocalName)
		}
		c, err := d.client(rank)
		if err != nil {
			return err
		}
		env, err := wire.Encode(0, wire.TagFilter, wire.FilterRequest{LocalName: s.LocalName, Pred: pred})
		if err != nil {
			return errors.Wrap(err, "director: encode filter")
		}
		var reply wire.FilterReply
		if err := c.Send(ctx, env, &reply); err != nil {
			return errors.Wrapf(err, "director: filter on shard %d", rank)
		}

		d.load.Add(rank, -reply.Removed)
		d.reportLoad(rank)

		if !reply.StillPresent {
			continue
		}
		kept = append(kept, StripeDescriptor{
			LocalName: s.LocalName,
			Low:       offset,
			High:      offset + reply.RemainingLen - 1,
		})
		offset += reply.RemainingLen
	}
	h.Stripes = kept
	return nil
}

// Reduce folds fn across h's elements in stripe order starting from
// initial, via the chained Shard-to-Shard pipeline of spec §4.4: the
// Director only talks to the first stripe's owner (to start the chain)
// and the last stripe's owner (to receive the final accumulator).
func (d *Director) Reduce(ctx context.Context, h *Handle, fn funcs.Ref, initial int64) (int64, error) {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("reduce")

	if !h.Live() {
		return initial, nil
	}

	names := make([]string, len(h.Stripes))
	for i, s := range h.Stripes {
		names[i] = s.LocalName
	}

	firstRank, ok := shardOfLocalName(names[0])
	if !ok {
		return 0, fmt.Errorf("director: malformed local name %q", names[0])
	}
	lastRank, ok := shardOfLocalName(names[len(names)-1])
	if !ok {
		return 0, fmt.Errorf("director: malformed local name %q", names[len(names)-1])
	}

	_ = lastRank // the last Shard addresses the Director directly; see server.go

	done := d.armReduceWait()
	defer d.disarmReduceWait()

	firstClient, err := d.client(firstRank)
	if err != nil {
		return 0, err
	}
	env, err := wire.Encode(0, wire.TagReduce, wire.ReduceRequest{Names: names, Fn: fn, Acc: initial})
	if err != nil {
		return 0, errors.Wrap(err, "director: encode reduce")
	}
	// The reply to this Send is only an acknowledgement and carries no
	// result; the first Shard sends it after its own fold and forward (or
	// delivery) have returned. The real result arrives as a separate
	// inbound request from the last stripe's owner, captured by server.go's
	// handler and delivered through done.
	if err := firstClient.Send(ctx, env, nil); err != nil {
		return 0, errors.Wrapf(err, "director: start reduce on shard %d", firstRank)
	}

	select {
	case acc := <-done:
		return acc, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// armReduceWait opens a slot for the in-flight Reduce's final result and
// returns the channel to wait on. Reduce calls never overlap (callMu is
// held for the whole call), so a single slot is all that's ever needed.
func (d *Director) armReduceWait() chan int64 {
	d.reduceMu.Lock()
	defer d.reduceMu.Unlock()
	d.reduceCh = make(chan int64, 1)
	return d.reduceCh
}

func (d *Director) disarmReduceWait() {
	d.reduceMu.Lock()
	defer d.reduceMu.Unlock()
	d.reduceCh = nil
}

// DeliverReduceResult is called by the Director's RPC handler (server.go)
// when a Shard sends the final accumulator of a Reduce chain. It never
// blocks: if nothing is waiting, the result is dropped, since that can
// only happen for a chain that has already timed out.
func (d *Director) DeliverReduceResult(acc int64) {
	d.reduceMu.Lock()
	ch := d.reduceCh
	d.reduceMu.Unlock()

	if ch == nil {
		return
	}
	select {
	case ch <- acc:
	default:
	}
}

// Quit asynchronously notifies every Shard to terminate, then waits for
// all sends to complete before returning — the Director itself exits
// after this returns, per spec §4.2.
func (d *Director) Quit(ctx context.Context) error {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.countOp("quit")

	ranks := d.load.Ranks()
	var wg sync.WaitGroup
	errs := make([]error, len(ranks))
	for i, rank := range ranks {
		wg.Add(1)
		go func(i, rank int) {
			defer wg.Done()
			c, err := d.client(rank)
			if err != nil {
				errs[i] = err
				return
			}
			env, err := wire.Encode(0, wire.TagQuit, struct{}{})
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = c.Send(ctx, env, nil)
		}(i, rank)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, "director: quit")
		}
	}
	return nil
}

// Sum is a convenience wrapper equivalent to Reduce with a registered
// "sum" fold and initial value 0.
func (d *Director) Sum(ctx context.Context, h *Handle) (int64, error) {
	return d.Reduce(ctx, h, funcs.Ref{Name: "sum"}, 0)
}

// Max is a convenience wrapper equivalent to Reduce with a registered
// "max" fold, starting from the caller-supplied seed.
func (d *Director) Max(ctx context.Context, h *Handle, seed int64) (int64, error) {
	return d.Reduce(ctx, h, funcs.Ref{Name: "max"}, seed)
}

// Min is a convenience wrapper equivalent to Reduce with a registered
// "min" fold, starting from the caller-supplied seed.
func (d *Director) Min(ctx context.Context, h *Handle, seed int64) (int64, error) {
	return d.Reduce(ctx, h, funcs.Ref{Name: "min"}, seed)
}

// CountWhere counts elements satisfying pred without mutating h: it reads
// the handle (one READ round trip per stripe, with every element sent to
// the Director) rather than counting on the Shards, but it leaves
// LoadTable and the handle's stripes untouched (unlike
// Filter, which removes non-matching elements).
func (d *Director) CountWhere(ctx context.Context, h *Handle, pred funcs.FilterFn) (int, error) {
	v, err := d.Read(ctx, h)
	if err != nil {
		return 0, err
	}
	if v.Kind == wire.KindInt {
		if pred(v.Int) {
			return 1, nil
		}
		return 0, nil
	}
	count := 0
	for _, x := range v.List {
		if pred(x) {
			count++
		}
	}
	return count, nil
}
