// Package shardsvc implements the Shard role: a single-threaded dispatch
// loop serving tagged messages against a local internal/store.Store, plus
// the HTTP surface (/rpc, /health, /metrics) that feeds it.
//
// The teacher's cmd/node ran an HTTP handler per shard key directly,
// relying on storage.Store's internal mutex for thread safety under
// net/http's inherently concurrent handlers. Spec §4.3 and §5 require an
// actual single-threaded dispatcher — "Shards serve exactly one message
// per iteration" — so here HTTP handlers only enqueue (envelope, reply
// channel) pairs onto a buffered channel; one dedicated goroutine (Run)
// drains it and is the only goroutine that ever touches the Store. This
// shape is grounded in the MIT 6.5840 shardctrler/shardkv reference
// servers found in the retrieval pack (other_examples/), which use the
// same "single apply loop fed by a channel of pending ops" structure to
// get linearizability without a bespoke lock per operation.
package shardsvc
