package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_imports_total",
			Help: "Total dataset import attempts",
		},
		[]string{"status"},
	)

	ObservationsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airquality_observations_loaded",
			Help: "Observations in the dataset currently served",
		},
	)

	QualityFlagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_quality_flags_total",
			Help: "Rows flagged by import validation",
		},
		[]string{"flag"},
	)

	SourceFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airquality_source_fetch_seconds",
			Help:    "Dataset source fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scheme"},
	)

	ViewComputeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airquality_view_compute_seconds",
			Help:    "Summary view computation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	ChartRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_chart_renders_total",
			Help: "Total chart images rendered",
		},
		[]string{"chart", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airquality_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
)
