package director

import (
	"sort"

	"github.com/dreamware/distmem/internal/direrr"
)

// plannedStripe is one (shard, amount) pair the placement pass has decided
// on, before any ALLOC has actually been sent.
type plannedStripe struct {
	Rank   int
	Amount int
}

// plan decides where to place `size` new elements across the known Shard
// ranks, per spec §4.2's add algorithm:
//
//  1. Whole-fit pass: the first Shard (in rank order) with
//     load+size < maxPerShard gets the entire value as one stripe.
//  2. Split pass (only if no whole-fit exists): Shards ordered ascending
//     by current load each take min(remaining, maxPerShard-1-load)
//     elements, until remaining reaches zero.
//
// Returns direrr.OutOfMemory if the value cannot be placed at all.
func plan(lt *LoadTable, size int, maxPerShard int) ([]plannedStripe, error) {
	ranks := lt.Ranks()
	if len(ranks) == 0 {
		return nil, direrr.New(direrr.OutOfMemory, "no Shards registered")
	}

	for _, r := range ranks {
		if lt.AdmitsWhole(r, size, maxPerShard) {
			return []plannedStripe{{Rank: r, Amount: size}}, nil
		}
	}

	byLoad := append([]int(nil), ranks...)
	sort.Slice(byLoad, func(i, j int) bool { return lt.Get(byLoad[i]) < lt.Get(byLoad[j]) })

	var plans []plannedStripe
	remaining := size
	for _, r := range byLoad {
		if remaining == 0 {
			break
		}
		room := lt.Remaining(r, maxPerShard)
		if room <= 0 {
			continue
		}
		take := room
		if take > remaining {
			take = remaining
		}
		plans = append(plans, plannedStripe{Rank: r, Amount: take})
		remaining -= take
	}

	if remaining > 0 {
		return nil, direrr.New(direrr.OutOfMemory, "cannot place %d elements within max_per_slave=%d across %d Shards", size, maxPerShard, len(ranks))
	}
	return plans, nil
}
