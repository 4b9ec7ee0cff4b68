package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripradar",
		Name:      "jobs_completed_total",
		Help:      "Total search jobs finished, by outcome.",
	}, []string{"outcome"})

	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tripradar",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of one search job.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	JobPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tripradar",
		Name:      "job_pickup_latency_seconds",
		Help:      "Time from enqueue to the worker claiming the job.",
		Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900},
	})

	DestinationsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tripradar",
		Name:      "destinations_processed_total",
		Help:      "Destinations fully processed across all jobs.",
	})

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tripradar",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker started.",
	})

	// Provider metrics

	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripradar",
		Name:      "provider_calls_total",
		Help:      "Upstream provider calls attempted.",
	}, []string{"provider"})

	ProviderErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripradar",
		Name:      "provider_errors_total",
		Help:      "Upstream provider failures, by classification.",
	}, []string{"provider", "kind"})

	// Archive metrics

	ArchiveWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripradar",
		Name:      "archive_writes_total",
		Help:      "Dual-writes of finished jobs to the archive.",
	}, []string{"outcome"})

	JanitorPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tripradar",
		Name:      "janitor_purged_total",
		Help:      "Expired archive rows deleted by the janitor.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tripradar",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripradar",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		JobsCompletedTotal,
		JobDuration,
		JobPickupLatency,
		DestinationsProcessedTotal,
		WorkerStartTime,
		ProviderCallsTotal,
		ProviderErrorsTotal,
		ArchiveWritesTotal,
		JanitorPurgedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
