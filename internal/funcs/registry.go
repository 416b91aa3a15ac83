package funcs

import (
	"fmt"
	"sync"
)

// Ref is the wire representation of a serialized closure: the name of a
// pre-registered function plus an optional constant operand. Two processes
// agree on what a Ref means only because they both built their Registry
// with the same call to NewRegistry (and, for application-specific
// functions, the same additional Register* calls at startup).
type Ref struct {
	Name  string `json:"name"`
	Const int64  `json:"const,omitempty"`
}

// MapFn transforms a single element in place.
type MapFn func(x int64) int64

// FilterFn reports whether an element should be kept.
type FilterFn func(x int64) bool

// ReduceFn folds one element into a running accumulator.
type ReduceFn func(acc, x int64) int64

// Registry holds the set of named map/filter/reduce implementations a
// process is willing to execute on behalf of a Ref. Every Shard builds
// one at startup (shardsvc.New calls NewRegistry unless Config.Funcs is
// set); the Director only ships Refs and never resolves them. A Ref
// naming a function absent from the receiving Registry is logged by the
// Shard, and no error is returned to the Director.
type Registry struct {
	mu      sync.RWMutex
	mapFns  map[string]func(Ref) MapFn
	filters map[string]func(Ref) FilterFn
	reduces map[string]func(Ref) ReduceFn
}

// NewRegistry returns a Registry pre-populated with the built-in functions
// every Shard process registers unconditionally: arithmetic
// map functions, parity/sign filters, and the common associative reduce
// operations used by the Sum/Max/Min convenience wrappers in
// internal/director.
func NewRegistry() *Registry {
	r := &Registry{
		mapFns:  make(map[string]func(Ref) MapFn),
		filters: make(map[string]func(Ref) FilterFn),
		reduces: make(map[string]func(Ref) ReduceFn),
	}

	r.RegisterMap("square", func(Ref) MapFn { return func(x int64) int64 { return x * x } })
	r.RegisterMap("double", func(Ref) MapFn { return func(x int64) int64 { return x * 2 } })
	r.RegisterMap("negate", func(Ref) MapFn { return func(x int64) int64 { return -x } })
	r.RegisterMap("increment", func(Ref) MapFn { return func(x int64) int64 { return x + 1 } })
	r.RegisterMap("addConst", func(ref Ref) MapFn { return func(x int64) int64 { return x + ref.Const } })
	r.RegisterMap("mulConst", func(ref Ref) MapFn { return func(x int64) int64 { return x * ref.Const } })

	r.RegisterFilter("isOdd", func(Ref) FilterFn { return func(x int64) bool { return x%2 != 0 } })
	r.RegisterFilter("isEven", func(Ref) FilterFn { return func(x int64) bool { return x%2 == 0 } })
	r.RegisterFilter("isPositive", func(Ref) FilterFn { return func(x int64) bool { return x > 0 } })
	r.RegisterFilter("isNegative", func(Ref) FilterFn { return func(x int64) bool { return x < 0 } })
	r.RegisterFilter("alwaysTrue", func(Ref) FilterFn { return func(int64) bool { return true } })
	r.RegisterFilter("alwaysFalse", func(Ref) FilterFn { return func(int64) bool { return false } })
	r.RegisterFilter("greaterThanConst", func(ref Ref) FilterFn { return func(x int64) bool { return x > ref.Const } })

	r.RegisterReduce("sum", func(Ref) ReduceFn { return func(acc, x int64) int64 { return acc + x } })
	r.RegisterReduce("product", func(Ref) ReduceFn { return func(acc, x int64) int64 { return acc * x } })
	r.RegisterReduce("max", func(Ref) ReduceFn {
		return func(acc, x int64) int64 {
			if x > acc {
				return x
			}
			return acc
		}
	})
	r.RegisterReduce("min", func(Ref) ReduceFn {
		return func(acc, x int64) int64 {
			if x < acc {
				return x
			}
			return acc
		}
	})

	return r
}

// RegisterMap adds (or replaces) a named map-function factory. The factory
// receives the Ref that selected it so constant-carrying variants (e.g.
// addConst) can close over Ref.Const.
func (r *Registry) RegisterMap(name string, factory func(Ref) MapFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mapFns[name] = factory
}

// RegisterFilter adds (or replaces) a named predicate factory.
func (r *Registry) RegisterFilter(name string, factory func(Ref) FilterFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[name] = factory
}

// RegisterReduce adds (or replaces) a named fold factory.
func (r *Registry) RegisterReduce(name string, factory func(Ref) ReduceFn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reduces[name] = factory
}

// Map resolves a Ref to an executable MapFn.
func (r *Registry) Map(ref Ref) (MapFn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.mapFns[ref.Name]
	if !ok {
		return nil, fmt.Errorf("funcs: unregistered map function %q", ref.Name)
	}
	return factory(ref), nil
}

// Filter resolves a Ref to an executable FilterFn.
func (r *Registry) Filter(ref Ref) (FilterFn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.filters[ref.Name]
	if !ok {
		return nil, fmt.Errorf("funcs: unregistered filter function %q", ref.Name)
	}
	return factory(ref), nil
}

// Reduce resolves a Ref to an executable ReduceFn.
func (r *Registry) Reduce(ref Ref) (ReduceFn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.reduces[ref.Name]
	if !ok {
		return nil, fmt.Errorf("funcs: unregistered reduce function %q", ref.Name)
	}
	return factory(ref), nil
}
