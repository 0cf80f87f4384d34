package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 15000}

var (
	RemoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_remote_requests_total",
		Help: "Total remote requests per origin",
	}, []string{"origin"})
	RemoteFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_remote_fail_total",
		Help: "Remote request failures per origin and reason (timeout, status, transport, invalid)",
	}, []string{"origin", "reason"})
	RemoteNotFoundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_remote_not_found_total",
		Help: "Remote 404 answers per origin",
	}, []string{"origin"})
	RemoteExhaustedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wilayah_remote_exhausted_total",
		Help: "Fetches that ran out of candidate origins without a valid response",
	})
	RemoteDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wilayah_remote_duration_ms",
		Help:    "Remote request duration in milliseconds",
		Buckets: durationBuckets,
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_cache_hits_total",
		Help: "Scopes answered from the local store",
	}, []string{"level"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_cache_misses_total",
		Help: "Scopes that fell through to the remote source",
	}, []string{"level"})
	FallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wilayah_fallback_total",
		Help: "Times the embedded province dataset was served",
	})
	StoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_store_errors_total",
		Help: "Local store failures by operation",
	}, []string{"op"})
	SyncProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wilayah_sync_progress_percent",
		Help: "Progress of the running bulk synchronization",
	})
	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_sync_runs_total",
		Help: "Bulk synchronization runs by result",
	}, []string{"result"})
	SyncStageDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wilayah_sync_stage_duration_ms",
		Help:    "Bulk synchronization stage duration in milliseconds",
		Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000, 900000},
	}, []string{"stage"})
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wilayah_api_requests_total",
		Help: "API requests by route",
	}, []string{"route"})
	ResponseCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wilayah_response_cache_hits_total",
		Help: "Response cache hits",
	})
	ResponseCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wilayah_response_cache_misses_total",
		Help: "Response cache misses",
	})
)

func init() {
	prometheus.MustRegister(RemoteRequestsTotal)
	prometheus.MustRegister(RemoteFailTotal)
	prometheus.MustRegister(RemoteNotFoundTotal)
	prometheus.MustRegister(RemoteExhaustedTotal)
	prometheus.MustRegister(RemoteDurationMs)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(FallbackTotal)
	prometheus.MustRegister(StoreErrorsTotal)
	prometheus.MustRegister(SyncProgress)
	prometheus.MustRegister(SyncRunsTotal)
	prometheus.MustRegister(SyncStageDurationMs)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(ResponseCacheHitsTotal)
	prometheus.MustRegister(ResponseCacheMissesTotal)
}

// 文档注释：返回 Prometheus 指标处理器，在主入口挂载到 {API_BASE}/metrics
func Handler() http.Handler { return promhttp.Handler() }
