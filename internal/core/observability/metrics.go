package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	cacheOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_op_duration_seconds",
			Help:    "Redis operation latency by op and outcome.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	tileCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_cache_results_total",
			Help: "Tile cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	tileFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_fetch_total",
			Help: "Tile fetches by outcome.",
		},
		[]string{"outcome"},
	)

	mergeUnions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_merge_unions_total",
			Help: "Cross-tile polygon unions by outcome.",
		},
		[]string{"outcome"},
	)

	reportRuns = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_generation_duration_seconds",
			Help:    "Wall time of report generation runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"outcome"},
	)

	groupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "report_group_failures_total",
			Help: "Groups skipped because processing failed.",
		},
	)

	storeWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_write_failures_total",
			Help: "Documents that could not be persisted, by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		cacheOpSeconds, tileCacheResults, tileFetches, mergeUnions,
		reportRuns, groupFailures, storeWriteFailures, buildInfo,
	}
}

func init() {
	prometheus.MustRegister(collectors()...)
}

// Init additionally registers the collectors with reg, typically the
// registry behind a dedicated metrics listener.
func Init(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpSeconds.WithLabelValues(op, outcome(err)).Observe(durationSeconds)
}

// IncTileCache counts a tile cache lookup as "hit" or "miss".
func IncTileCache(result string) {
	tileCacheResults.WithLabelValues(result).Inc()
}

// IncTileFetch counts a tile as "ok", "cached", "error" or "decode_error".
func IncTileFetch(result string) {
	tileFetches.WithLabelValues(result).Inc()
}

func ObserveUnion(err error) {
	mergeUnions.WithLabelValues(outcome(err)).Inc()
}

func ObserveReport(result string, durationSeconds float64) {
	reportRuns.WithLabelValues(result).Observe(durationSeconds)
}

func IncGroupFailure() { groupFailures.Inc() }

func AddStoreWriteFailures(kind string, n int) {
	if n <= 0 {
		return
	}
	storeWriteFailures.WithLabelValues(kind).Add(float64(n))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
