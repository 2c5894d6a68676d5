package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 3000}

var (
	SectorRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_sector_requests_total",
		Help: "Total sector set requests by probability source",
	}, []string{"source"})
	SectorInvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_sector_invalid_total",
		Help: "Total sector requests rejected as invalid input",
	})
	SectorDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_sector_duration_ms",
		Help:    "Sector generation duration in milliseconds",
		Buckets: durationBuckets,
	})
	SectorCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_sector_cache_hits_total",
		Help: "Total redis sector cache hits",
	})
	SectorCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_sector_cache_misses_total",
		Help: "Total redis sector cache misses",
	})
	PredictRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_predict_requests_total",
		Help: "Total prediction service requests",
	})
	PredictFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_predict_fail_total",
		Help: "Total prediction service failures",
	})
	PredictDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_predict_duration_ms",
		Help:    "Prediction call duration in milliseconds",
		Buckets: durationBuckets,
	})
	OverpassRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_overpass_requests_total",
		Help: "Total Overpass roads requests",
	})
	OverpassFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_overpass_fail_total",
		Help: "Total Overpass roads failures",
	})
	OverpassDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sentinel_overpass_duration_ms",
		Help:    "Overpass call duration in milliseconds",
		Buckets: durationBuckets,
	})
	BoroughCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_borough_cache_hits_total",
		Help: "Total borough lookup cache hits",
	})
	BoroughCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_borough_cache_misses_total",
		Help: "Total borough lookup cache misses",
	})
	PingsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_pings_active",
		Help: "Number of pings currently alive",
	})
	PingsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_pings_created_total",
		Help: "Total pings created by origin",
	}, []string{"origin"})
	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_stream_clients",
		Help: "Connected websocket ping stream clients",
	})
	CrimeRowsImportedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_crime_rows_imported_total",
		Help: "Total crime rows imported",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_rate_limited_total",
		Help: "Total requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(
		SectorRequestsTotal,
		SectorInvalidTotal,
		SectorDurationMs,
		SectorCacheHitsTotal,
		SectorCacheMissesTotal,
		PredictRequestsTotal,
		PredictFailTotal,
		PredictDurationMs,
		OverpassRequestsTotal,
		OverpassFailTotal,
		OverpassDurationMs,
		BoroughCacheHitsTotal,
		BoroughCacheMissesTotal,
		PingsActive,
		PingsCreatedTotal,
		StreamClients,
		CrimeRowsImportedTotal,
		RateLimitedTotal,
	)
}

// Handler：Prometheus 抓取入口，在主入口挂载
func Handler() http.Handler { return promhttp.Handler() }
