package director

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/distmem/internal/clusterproto"
)

// ShardHealth tracks the observed health of one Shard. Unlike the
// teacher's coordinator.NodeHealth, there is no onUnhealthy callback here:
// this system has no rebalancing or failover to trigger on Shard failure
// (an explicit Non-goal), so a HealthMonitor here is pure observability —
// it logs state transitions and nothing else.
type ShardHealth struct {
	LastCheck        time.Time
	LastHealthy      time.Time
	Status           string
	ConsecutiveFails int
}

// HealthMonitor periodically polls every registered Shard's /health
// endpoint and logs status transitions. Adapted from the teacher's
// internal/coordinator.HealthMonitor with the redistribution hook removed.
type HealthMonitor struct {
	mu          sync.RWMutex
	shards      map[int]*ShardHealth
	interval    time.Duration
	maxFailures int
	log         *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHealthMonitor returns a monitor that checks every interval, marking a
// Shard unhealthy after 3 consecutive failures.
func NewHealthMonitor(interval time.Duration, log *zap.SugaredLogger) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthMonitor{
		shards:      make(map[int]*ShardHealth),
		interval:    interval,
		maxFailures: 3,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start polls d.Directory().Ranks() every interval until ctx is canceled.
// Blocks the calling goroutine; run it with `go`.
func (h *HealthMonitor) Start(ctx context.Context, d *Director) {
	h.wg.Add(1)
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.checkAll(d)
	for {
		select {
		case <-ticker.C:
			h.checkAll(d)
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		}
	}
}

// Stop cancels the monitor and waits for its goroutine to exit.
func (h *HealthMonitor) Stop() {
	h.cancel()
	h.wg.Wait()
}

func (h *HealthMonitor) checkAll(d *Director) {
	for _, rank := range d.Directory().Ranks() {
		addr, ok := d.Directory().Lookup(rank)
		if !ok {
			continue
		}
		h.checkOne(rank, addr)
	}
}

func (h *HealthMonitor) checkOne(rank int, addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var reply map[string]any
	err := clusterproto.GetJSON(ctx, addr+"/health", &reply)

	h.mu.Lock()
	defer h.mu.Unlock()

	sh, ok := h.shards[rank]
	if !ok {
		sh = &ShardHealth{Status: "unknown"}
		h.shards[rank] = sh
	}
	sh.LastCheck = time.Now()

	if err != nil {
		sh.ConsecutiveFails++
		prev := sh.Status
		if sh.ConsecutiveFails >= h.maxFailures {
			sh.Status = "unhealthy"
		}
		if prev != sh.Status && h.log != nil {
			h.log.Warnw("shard health degraded", "shard_rank", rank, "consecutive_fails", sh.ConsecutiveFails)
		}
		return
	}

	sh.ConsecutiveFails = 0
	sh.LastHealthy = time.Now()
	if sh.Status != "healthy" && h.log != nil {
		h.log.Infow("shard healthy", "shard_rank", rank)
	}
	sh.Status = "healthy"
}

// Snapshot returns a copy of the current per-Shard health view. The
// Director's own /health endpoint does not include it.
func (h *HealthMonitor) Snapshot() map[int]ShardHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[int]ShardHealth, len(h.shards))
	for rank, sh := range h.shards {
		out[rank] = *sh
	}
	return out
}
