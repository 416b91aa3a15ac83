// Package store implements a Shard's local state: the map from LocalName to
// Value (spec §3's Store) and the ModificationHistory used for
// last-writer-wins conflict resolution on MODIFY. It is the direct
// Value-typed descendant of the teacher's internal/storage package (an
// in-memory, mutex-protected map[string][]byte) — same shape, same
// thread-safety contract, payload type generalized from raw bytes to
// wire.Value.
//
// A Store is intended to be driven by exactly one goroutine (the Shard's
// dispatch loop in internal/shardsvc), so the locking here is a defensive
// second line, not the primary serialization mechanism — mirroring the
// teacher's own layering where shard.Shard delegates to a thread-safe
// storage.Store even though, in practice, a single node process serializes
// access per key.
package store
