package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus collectors for resolver-level activity, grounded on
// api/grpc/middleware/middleware.go's package-level CounterVec/
// HistogramVec + MustRegister-in-init() pattern.
var (
	resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "resolvcore_resolves_total", Help: "Total Resolve/ResolveAsync calls"},
		[]string{"strategy", "outcome"},
	)
	resolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "resolvcore_resolve_duration_seconds", Help: "Resolve call latency", Buckets: prometheus.DefBuckets},
		[]string{"strategy"},
	)
	cacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "resolvcore_cache_entries", Help: "Current cache entry count"},
	)
	activeQueries = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "resolvcore_active_queries", Help: "In-flight query count"},
	)
)

func init() {
	prometheus.MustRegister(resolveTotal, resolveDuration, cacheSize, activeQueries)
}

// Stats is a point-in-time snapshot across a Resolver's collaborators,
// for callers that want the numbers without touching Prometheus
// directly (spec.md §6 "A stats method").
type Stats struct {
	Cache   CacheStats
	Workers WorkerStats
	Active  int
}

type CacheStats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
}

type WorkerStats struct {
	Workers    int
	QueueDepth int
	Submitted  uint64
	Completed  uint64
	Rejected   uint64
	Failed     uint64
}

// Stats gathers a snapshot and pushes it into the registered gauges.
func (r *Resolver) Stats() Stats {
	cs := r.cache.Stats()
	ws := r.workers.GetStats()
	active := r.engine.ActiveCount()

	cacheSize.Set(float64(cs.Size))
	activeQueries.Set(float64(active))

	return Stats{
		Cache: CacheStats{
			Hits:        cs.Hits,
			Misses:      cs.Misses,
			Evictions:   cs.Evictions,
			Expirations: cs.Expirations,
			Size:        cs.Size,
		},
		Workers: WorkerStats{
			Workers:    ws.Workers,
			QueueDepth: ws.QueueDepth,
			Submitted:  ws.Submitted,
			Completed:  ws.Completed,
			Rejected:   ws.Rejected,
			Failed:     ws.Failed,
		},
		Active: active,
	}
}

// recordResolve tracks one completed Resolve/ResolveAsync call.
func recordResolve(strategy string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	resolveTotal.WithLabelValues(strategy, outcome).Inc()
	resolveDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
}
