// Package metrics exports pipeline and submission metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/chatlogs/internal/core/domain"
	"github.com/custodia-labs/chatlogs/internal/core/ports/driven"
)

// Ensure Observer implements the interface.
var _ driven.PipelineObserver = (*Observer)(nil)

const namespace = "chatlogs"

// Observer records pipeline events as Prometheus metrics.
type Observer struct {
	registry *prometheus.Registry

	stageRuns     *prometheus.CounterVec
	stageAttempts *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec
}

// NewObserver creates an observer with its own registry.
func NewObserver() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),

		stageRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_runs_total",
				Help:      "Pipeline stage executions by outcome",
			},
			[]string{"stage", "status"},
		),

		stageAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_attempts_total",
				Help:      "Pipeline stage attempts including retries",
			},
			[]string{"stage"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds, including queueing and retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),

		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "submissions",
				Name:      "total",
				Help:      "Submissions by outcome",
			},
			[]string{"outcome"},
		),

		submitLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "submissions",
				Name:      "duration_seconds",
				Help:      "End-to-end submission latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}

	o.registry.MustRegister(
		o.stageRuns,
		o.stageAttempts,
		o.stageDuration,
		o.submissions,
		o.submitLatency,
	)

	return o
}

// StageCompleted records one stage's attempts and outcome.
func (o *Observer) StageCompleted(stage domain.StageName, attempts int, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	o.stageRuns.WithLabelValues(stage.String(), status).Inc()
	o.stageAttempts.WithLabelValues(stage.String()).Add(float64(attempts))
	o.stageDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
}

// SubmissionCompleted records one submission's outcome.
func (o *Observer) SubmissionCompleted(outcome string, elapsed time.Duration) {
	o.submissions.WithLabelValues(outcome).Inc()
	o.submitLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Registry returns the registry holding the observer's metrics.
func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// NewServer returns an HTTP server on port exposing h at /metrics and a
// liveness check at /health.
func NewServer(port int, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
