package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mrlite_workers_total",
			Help: "Total number of workers in the current job by role",
		},
		[]string{"role"},
	)

	WorkersFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mrlite_workers_finished_total",
			Help: "Total number of workers that finished successfully",
		},
	)

	WorkersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mrlite_workers_failed_total",
			Help: "Total number of workers that reported failure",
		},
	)

	AgentsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mrlite_agents_connected",
			Help: "Number of agents that completed their handshake",
		},
	)

	// Phase metrics
	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mrlite_phase_duration_seconds",
			Help:    "Duration of each scheduler phase in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"phase"},
	)

	StatusRounds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mrlite_status_rounds_total",
			Help: "Total number of monitoring status rounds",
		},
	)

	// Shuffle metrics
	ShuffleFilesMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrlite_shuffle_files_moved_total",
			Help: "Total number of shuffle partition files relocated, by disposition",
		},
		[]string{"disposition"}, // "stayed", "moved", "pushed"
	)
)

func init() {
	prometheus.MustRegister(
		WorkersTotal,
		WorkersFinished,
		WorkersFailed,
		AgentsConnected,
		PhaseDuration,
		StatusRounds,
		ShuffleFilesMoved,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer starts the metrics HTTP server on the given address
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
