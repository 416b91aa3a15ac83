// Package clusterproto is the transport layer shared by cmd/director and
// cmd/shard: a single wire.Envelope-speaking HTTP client, a thread-safe
// rank-to-address Directory, and the Shard registration handshake.
//
// It generalizes the teacher's internal/cluster package — which sent
// bespoke JSON request/reply pairs over bespoke paths (POST
// /cluster/register, GET /health, ...) — to a single POST /rpc endpoint
// carrying a wire.Envelope whose Tag selects the operation, matching the
// spec's closed tagged-message model instead of a REST-per-verb one.
// PostJSON/GetJSON's shared *http.Client and context-cancellable request
// construction are kept unchanged.
package clusterproto
