// Package director implements the Director role: the stateful coordinator
// that exposes the value-oriented API (Add, Read, Modify, Free, Map,
// Filter, Reduce, Quit) and tracks where every variable lives without ever
// storing a payload itself.
//
// It is the Value-oriented, placement-aware rewrite of the teacher's
// internal/coordinator package. shard_registry.go's rank-to-address
// bookkeeping becomes clusterproto.Directory; health_monitor.go is kept
// and adapted (see health_monitor.go) into pure observability, since this
// system has no rebalancing or failover to trigger.
package director
