// Package funcs implements the "serialized closure" mechanism named in
// spec §4.5: user-supplied map/filter/reduce transformations cross the wire
// as opaque, portable references rather than executable code.
//
// # Why a registry instead of a blob
//
// The reference implementation (a CPython program communicating over MPI)
// pickles closures with dill and ships the bytes. Director and Shard in this
// module are both compiled from the same Go binary's source, so there is no
// cross-language or cross-version closure-shipping problem to solve — the
// design notes in spec §4.5/§9 explicitly license falling back to "a
// symbolic identifier referring to a pre-registered function on each Shard"
// whenever closures cannot be shipped, and a statically compiled Go process
// can never deserialize an arbitrary function value. A Ref is that
// identifier: a small, JSON-safe struct naming a function pre-registered
// identically in every process's Registry, optionally carrying one int64
// constant (e.g. "addConst" needs to know which constant to add).
package funcs
