package clusterproto

import (
	"sort"
	"sync"
)

// Directory is a thread-safe rank-to-address book. The Director builds it
// from TagRegister messages as Shards come up, then pushes a full copy to
// every Shard via TagDirectory so Shards can dial each other directly for
// REDUCE hops without routing back through the Director.
type Directory struct {
	mu        sync.RWMutex
	addresses map[int]string
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{addresses: make(map[int]string)}
}

// Set records addr as the address for rank, overwriting any prior value
// (a Shard re-registering after a restart gets the newer address).
func (d *Directory) Set(rank int, addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses[rank] = addr
}

// Lookup returns the address registered for rank, if any.
func (d *Directory) Lookup(rank int) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	addr, ok := d.addresses[rank]
	return addr, ok
}

// Ranks returns every registered rank in ascending order.
func (d *Directory) Ranks() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ranks := make([]int, 0, len(d.addresses))
	for r := range d.addresses {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	return ranks
}

// Snapshot returns a copy of the full rank-to-address map, suitable for
// embedding in a wire.DirectoryRequest.
func (d *Directory) Snapshot() map[int]string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[int]string, len(d.addresses))
	for r, a := range d.addresses {
		out[r] = a
	}
	return out
}

// Replace overwrites the entire directory with snapshot, used on a Shard
// when it receives a TagDirectory push from the Director.
func (d *Directory) Replace(snapshot map[int]string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.addresses = make(map[int]string, len(snapshot))
	for r, a := range snapshot {
		d.addresses[r] = a
	}
}

// Len reports how many ranks are currently registered.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.addresses)
}
