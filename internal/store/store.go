package store

import (
	"fmt"
	"sync"

	"github.com/dreamware/distmem/internal/funcs"
	"github.com/dreamware/distmem/internal/wire"
)

// history tracks the last-writer-wins state for one variable: the
// timestamp of the most recent write attempt and whether that write has
// finished committing. A name with committed=false is "mid-flight" — any
// MODIFY arriving while it's in that state is rejected regardless of its
// own timestamp, per spec §4.3.
type history struct {
	ts        int64
	committed bool
}

// Store is a Shard's local variable table: LocalName -> Value, plus the
// ModificationHistory needed for MODIFY's conflict resolution. Alloc
// assigns names of the form "<rank>-<counter>" with counter increasing
// monotonically from zero, matching spec §3 exactly.
type Store struct {
	mu      sync.Mutex
	rank    int
	counter uint64
	vars    map[string]wire.Value
	history map[string]history
}

// New returns an empty Store for the given rank. rank is baked into every
// LocalName this Store allocates so the Director can route by prefix with
// no extra lookup.
func New(rank int) *Store {
	return &Store{
		rank:    rank,
		vars:    make(map[string]wire.Value),
		history: make(map[string]history),
	}
}

// Alloc stores v under a freshly minted LocalName and returns it.
func (s *Store) Alloc(v wire.Value) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("%d-%d", s.rank, s.counter)
	s.counter++
	s.vars[name] = v
	return name
}

// Read returns the current value for name, and whether it exists.
func (s *Store) Read(name string) (wire.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	return v, ok
}

// Len reports the current element count for name.
func (s *Store) Len(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok {
		return 0, false
	}
	return v.Len(), true
}

// Modify applies a last-writer-wins update. index is nil for Int variables
// and must be a valid local (stripe-relative) index into the List for List
// variables — the Director is responsible for that translation before
// sending; an out-of-range index here is a protocol error, not a spec
// OutOfBounds (which is caught at the Director before any message is
// sent).
//
// Returns (true, nil) if the write committed, (false, nil) if it was
// rejected by the name being missing or by last-writer-wins losing to a
// newer or in-flight write, and a non-nil error only for the protocol
// error case above.
func (s *Store) Modify(name string, newValue int64, index *int, ts int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok {
		return false, nil
	}

	if prev, seen := s.history[name]; seen {
		if ts < prev.ts || !prev.committed {
			return false, nil
		}
	}

	if v.Kind == wire.KindList {
		if index == nil {
			return false, fmt.Errorf("store: list modify for %q missing local index", name)
		}
		if *index < 0 || *index >= len(v.List) {
			return false, fmt.Errorf("store: local index %d out of range for %q (len %d)", *index, name, len(v.List))
		}
	}

	s.history[name] = history{ts: ts, committed: false}

	switch v.Kind {
	case wire.KindInt:
		v.Int = newValue
	case wire.KindList:
		v.List[*index] = newValue
	}
	s.vars[name] = v

	s.history[name] = history{ts: ts, committed: true}
	return true, nil
}

// Free removes name from the Store and reports how many elements it held.
// The second return is false if name did not exist (the caller can still
// treat that as "0 freed", matching the reference implementation's
// idempotent delete semantics for FREE — Director-side DoubleFree is
// prevented earlier, by the handle already being empty).
func (s *Store) Free(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok {
		return 0, false
	}
	delete(s.vars, name)
	delete(s.history, name)
	return v.Len(), true
}

// Map applies fn pointwise to name's value, in place. A missing name is a
// silent no-op per spec §4.3 ("MAP on a missing name is a silent no-op").
func (s *Store) Map(name string, fn funcs.MapFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok {
		return
	}

	switch v.Kind {
	case wire.KindInt:
		v.Int = fn(v.Int)
	case wire.KindList:
		for i, x := range v.List {
			v.List[i] = fn(x)
		}
	}
	s.vars[name] = v
}

// Filter retains only elements for which pred returns true. For an Int
// variable that fails pred, or a List variable that ends up empty, the
// entry is removed entirely and stillPresent is false. removed is the
// count of elements dropped; remainingLen is the post-filter length (0 if
// the entry was removed).
func (s *Store) Filter(name string, pred funcs.FilterFn) (removed int, stillPresent bool, remainingLen int, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok {
		return 0, false, 0, false
	}

	switch v.Kind {
	case wire.KindInt:
		if !pred(v.Int) {
			delete(s.vars, name)
			delete(s.history, name)
			return 1, false, 0, true
		}
		return 0, true, 1, true
	default: // wire.KindList
		originalLen := len(v.List)
		kept := v.List[:0]
		for _, x := range v.List {
			if pred(x) {
				kept = append(kept, x)
			}
		}
		v.List = kept
		newLen := len(kept)
		if newLen == 0 {
			delete(s.vars, name)
			delete(s.history, name)
			return originalLen, false, 0, true
		}
		s.vars[name] = v
		return originalLen - newLen, true, newLen, true
	}
}

// Fold folds fn over name's elements in natural order, starting from acc,
// and returns the resulting accumulator. existed is false if name is not
// present, in which case acc is returned unchanged — callers in
// internal/shardsvc never hit this path in a well-formed pipeline, since
// every name in a REDUCE request names a stripe the Director placed.
func (s *Store) Fold(name string, fn funcs.ReduceFn, acc int64) (result int64, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vars[name]
	if !ok {
		return acc, false
	}

	switch v.Kind {
	case wire.KindInt:
		return fn(acc, v.Int), true
	default:
		for _, x := range v.List {
			acc = fn(acc, x)
		}
		return acc, true
	}
}

// Size reports the total element count across every variable currently
// held, for the shard_store_size metric.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, v := range s.vars {
		total += v.Len()
	}
	return total
}
