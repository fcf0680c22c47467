package infra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for the replay pipeline.
var (
	RecordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_records_processed_total",
		Help: "Stream records fed through the replay driver.",
	})

	ReplayDiagnostics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_diagnostics_total",
		Help: "Rejected or anomalous records by kind.",
	}, []string{"kind"})

	FilesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "files_parsed_total",
		Help: "Uploaded capture files by terminal status.",
	}, []string{"status"})

	ParseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "file_parse_duration_seconds",
		Help:    "Wall time to decompress and replay one file.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})
)

// HealthFunc reports service health for /healthz.
type HealthFunc func(ctx context.Context) error

// StartMetricsServer runs a lightweight HTTP server for /metrics and
// /healthz on its own port, detached from the API server.
func StartMetricsServer(port int, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
