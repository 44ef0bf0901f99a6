package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lamim/cardforge/pkg/models"
)

var (
	// Backend metrics
	backendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardforge_backend_request_duration_seconds",
			Help:    "Generation backend call duration in seconds by provider",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"provider", "status"},
	)

	backendRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_backend_retries_total",
			Help: "Backend attempts that were retried after a failure",
		},
		[]string{"provider"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardforge_rate_limiter_wait_duration_seconds",
			Help:    "Client-side rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	// Pipeline metrics
	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_records_total",
			Help: "Records processed by outcome",
		},
		[]string{"profile", "outcome"},
	)

	responseShapeViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_response_shape_violations_total",
			Help: "Structured responses that did not match the profile's expected shape",
		},
		[]string{"profile"},
	)

	checkpointSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardforge_checkpoint_saves_total",
			Help: "Checkpoint writes by status",
		},
		[]string{"status"},
	)

	pipelineProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardforge_pipeline_records_done",
			Help: "Records present in the accumulator, including resumed ones",
		},
		[]string{"profile"},
	)
)

// Collector provides convenience methods for recording metrics
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,
	}
}

// RecordBackendRequest records one backend call
func (c *Collector) RecordBackendRequest(provider string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	backendRequestDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// IncrementRetry counts a retried backend attempt
func (c *Collector) IncrementRetry(provider string) {
	backendRetries.WithLabelValues(provider).Inc()
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// IncrementRecord counts a finished record
func (c *Collector) IncrementRecord(profile string, outcome models.RecordOutcome) {
	recordsTotal.WithLabelValues(profile, string(outcome)).Inc()
}

// IncrementShapeViolation counts a response that failed the profile's schema check
func (c *Collector) IncrementShapeViolation(profile string) {
	responseShapeViolations.WithLabelValues(profile).Inc()
}

// IncrementCheckpointSave counts a checkpoint write
func (c *Collector) IncrementCheckpointSave(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	checkpointSaves.WithLabelValues(status).Inc()
}

// SetProgress sets the number of records done for a profile
func (c *Collector) SetProgress(profile string, done int) {
	pipelineProgress.WithLabelValues(profile).Set(float64(done))
}

// Serve exposes the default registry on addr until the server fails.
// It is meant to run on its own goroutine.
func (c *Collector) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	c.logger.Info("Serving metrics", "addr", addr, "path", "/metrics")
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		c.logger.Error("Metrics server stopped", "error", err)
	}
}
