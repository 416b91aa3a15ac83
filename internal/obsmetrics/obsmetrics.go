// Package obsmetrics exposes Prometheus metrics for the Director and each
// Shard, the Go-native promotion of the teacher's ShardStats/OperationStats
// JSON snapshot (internal/shard/shard.go) to scraped gauges/counters.
// Grounded in orbas1-Synnergy/synnergy-network/core/system_health_logging.go
// and manik23-learn_go/modules/learn-grpc/server/metrics.go.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DirectorMetrics tracks Director-side operational counters: the LoadTable
// as a per-Shard gauge, and per-operation request counts.
type DirectorMetrics struct {
	LoadTable    *prometheus.GaugeVec
	RequestTotal *prometheus.CounterVec
	ShardCount   prometheus.Gauge
}

// NewDirectorMetrics registers the Director's metric family against reg.
// Pass prometheus.NewRegistry() in tests to avoid collisions between
// multiple Directors in the same process.
func NewDirectorMetrics(reg prometheus.Registerer) *DirectorMetrics {
	factory := promauto.With(reg)
	return &DirectorMetrics{
		LoadTable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "director_load_table",
			Help: "Element count currently held by each Shard, per the Director's LoadTable.",
		}, []string{"shard"}),
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "director_requests_total",
			Help: "Director API calls, by operation.",
		}, []string{"op"}),
		ShardCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "director_shards_registered",
			Help: "Number of Shards currently registered with the Director.",
		}),
	}
}

// ShardMetrics tracks per-Shard storage size and dispatched tag counts.
type ShardMetrics struct {
	StoreSize prometheus.Gauge
	TagTotal  *prometheus.CounterVec
}

// NewShardMetrics registers the Shard's metric family against reg.
func NewShardMetrics(reg prometheus.Registerer) *ShardMetrics {
	factory := promauto.With(reg)
	return &ShardMetrics{
		StoreSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shard_store_size",
			Help: "Total element count currently stored on this Shard.",
		}),
		TagTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shard_dispatched_total",
			Help: "Messages dispatched by this Shard, by tag.",
		}, []string{"tag"}),
	}
}
