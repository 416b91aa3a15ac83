package director

import (
	"sync"

	"golang.org/x/exp/slices"
)

// LoadTable is the Director's per-Shard element count, maintained so that
// sum_over_stripes(size) == LoadTable[shard] holds after every completed
// operation (spec §3 invariant). AdmitsWhole enforces the strict `<`
// admission test the placement policy requires — matching the reference
// implementation exactly rather than the more natural `<=`.
type LoadTable struct {
	mu    sync.Mutex
	load  map[int]int
	ranks []int // known ranks, in ascending order, for whole-fit/split scans
}

// NewLoadTable returns an empty LoadTable tracking the given Shard ranks.
func NewLoadTable(ranks []int) *LoadTable {
	load := make(map[int]int, len(ranks))
	for _, r := range ranks {
		load[r] = 0
	}
	sorted := append([]int(nil), ranks...)
	slices.Sort(sorted)
	return &LoadTable{load: load, ranks: sorted}
}

// AddRank registers a newly seen Shard rank with zero load, if not already
// known — used when a Shard registers with the Director after the
// LoadTable was constructed.
func (lt *LoadTable) AddRank(rank int) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if _, ok := lt.load[rank]; ok {
		return
	}
	lt.load[rank] = 0
	lt.ranks = append(lt.ranks, rank)
	slices.Sort(lt.ranks)
}

// Ranks returns the known Shard ranks in ascending order.
func (lt *LoadTable) Ranks() []int {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	out := make([]int, len(lt.ranks))
	copy(out, lt.ranks)
	return out
}

// Get returns the current element count for rank.
func (lt *LoadTable) Get(rank int) int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.load[rank]
}

// Add increments rank's load by delta (delta may be negative, e.g. after
// Free or Filter).
func (lt *LoadTable) Add(rank int, delta int) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.load[rank] += delta
}

// Set overwrites rank's load outright. Director.Filter does not use it;
// it applies the Shard-reported removed count through Add.
func (lt *LoadTable) Set(rank int, value int) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.load[rank] = value
}

// AdmitsWhole reports whether rank has room for size more elements under
// the strict `<` admission test: load + size < maxPerShard.
func (lt *LoadTable) AdmitsWhole(rank int, size int, maxPerShard int) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.load[rank]+size < maxPerShard
}

// Remaining returns how many more elements rank can accept before hitting
// maxPerShard under the strict `<` test: max(0, maxPerShard - 1 - load).
func (lt *LoadTable) Remaining(rank int, maxPerShard int) int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	r := maxPerShard - 1 - lt.load[rank]
	if r < 0 {
		return 0
	}
	return r
}

// Snapshot returns a copy of the full rank->load map, for metrics export.
func (lt *LoadTable) Snapshot() map[int]int {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	out := make(map[int]int, len(lt.load))
	for r, v := range lt.load {
		out[r] = v
	}
	return out
}
