// Package metrics provides Prometheus metrics for the log archiver.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for the log archiver.
type Metrics struct {
	registry *prometheus.Registry

	// File metrics
	FilesEnumerated *prometheus.CounterVec
	FilesUploaded   *prometheus.CounterVec
	FilesSkipped    *prometheus.CounterVec
	FilesFailed     *prometheus.CounterVec

	// Size metrics
	BytesUploaded *prometheus.CounterVec

	// Timing metrics
	UploadDuration *prometheus.HistogramVec
	BatchDuration  *prometheus.HistogramVec

	// Pipeline metrics
	InFlightTransfers prometheus.Gauge
	LastBatchSuccess  *prometheus.GaugeVec

	// Error metrics
	SourceErrors  *prometheus.CounterVec
	StorageErrors *prometheus.CounterVec
	CatalogErrors *prometheus.CounterVec
	RetryAttempts *prometheus.CounterVec
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Each call builds a fresh registry; the last one becomes the global instance.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "log_archiver"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		FilesEnumerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_enumerated_total",
				Help:      "Total number of candidate log files discovered",
			},
			[]string{"variant"},
		),
		FilesUploaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_uploaded_total",
				Help:      "Total number of log files transferred",
			},
			[]string{"variant", "backend"},
		),
		FilesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_skipped_total",
				Help:      "Total number of log files skipped (unchanged or vanished)",
			},
			[]string{"variant", "reason"},
		),
		FilesFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_failed_total",
				Help:      "Total number of log files that failed after all retries",
			},
			[]string{"variant", "backend"},
		),
		BytesUploaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_uploaded_total",
				Help:      "Total bytes transferred to storage",
			},
			[]string{"variant", "backend"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Time to transfer a single file, retries included",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"variant", "backend"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Time to run a whole batch",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
			},
			[]string{"variant"},
		),
		InFlightTransfers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_transfers",
				Help:      "Number of transfers currently running",
			},
		),
		LastBatchSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_batch_completed_timestamp_seconds",
				Help:      "Unix time the last batch completed",
			},
			[]string{"variant"},
		),
		SourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_errors_total",
				Help:      "Total number of enumeration or fetch errors",
			},
			[]string{"variant", "source_type"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage write errors",
			},
			[]string{"variant", "backend"},
		),
		CatalogErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_errors_total",
				Help:      "Total number of archive catalog errors",
			},
			[]string{"variant"},
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"variant", "operation"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP mux serving /metrics and /health.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer serves metrics on address until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Push sends the current metric values to a Pushgateway, grouped by variant
// and instance.
func (m *Metrics) Push(ctx context.Context, url, variant, instance string) error {
	err := push.New(url, "log_archiver").
		Gatherer(m.registry).
		Grouping("variant", variant).
		Grouping("instance", instance).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Labels is a convenience type for metric labels.
type Labels struct {
	Variant    string // "archive" | "collect"
	Backend    string
	SourceType string
	Operation  string
	Reason     string
}

// AddFilesEnumerated adds to the enumerated files counter.
func (m *Metrics) AddFilesEnumerated(l Labels, count float64) {
	m.FilesEnumerated.WithLabelValues(l.Variant).Add(count)
}

// IncFilesUploaded increments the uploaded files counter.
func (m *Metrics) IncFilesUploaded(l Labels) {
	m.FilesUploaded.WithLabelValues(l.Variant, l.Backend).Inc()
}

// IncFilesSkipped increments the skipped files counter.
func (m *Metrics) IncFilesSkipped(l Labels) {
	m.FilesSkipped.WithLabelValues(l.Variant, l.Reason).Inc()
}

// IncFilesFailed increments the failed files counter.
func (m *Metrics) IncFilesFailed(l Labels) {
	m.FilesFailed.WithLabelValues(l.Variant, l.Backend).Inc()
}

// AddBytesUploaded adds to the uploaded bytes counter.
func (m *Metrics) AddBytesUploaded(l Labels, bytes float64) {
	m.BytesUploaded.WithLabelValues(l.Variant, l.Backend).Add(bytes)
}

// ObserveUploadDuration records the time spent transferring one file.
func (m *Metrics) ObserveUploadDuration(l Labels, seconds float64) {
	m.UploadDuration.WithLabelValues(l.Variant, l.Backend).Observe(seconds)
}

// ObserveBatchDuration records the time spent on a whole batch.
func (m *Metrics) ObserveBatchDuration(l Labels, seconds float64) {
	m.BatchDuration.WithLabelValues(l.Variant).Observe(seconds)
}

// IncInFlight marks a transfer as started.
func (m *Metrics) IncInFlight() {
	m.InFlightTransfers.Inc()
}

// DecInFlight marks a transfer as finished.
func (m *Metrics) DecInFlight() {
	m.InFlightTransfers.Dec()
}

// SetLastBatchCompleted records the completion time of a batch.
func (m *Metrics) SetLastBatchCompleted(l Labels, t time.Time) {
	m.LastBatchSuccess.WithLabelValues(l.Variant).Set(float64(t.Unix()))
}

// IncSourceErrors increments the source errors counter.
func (m *Metrics) IncSourceErrors(l Labels) {
	m.SourceErrors.WithLabelValues(l.Variant, l.SourceType).Inc()
}

// IncStorageErrors increments the storage errors counter.
func (m *Metrics) IncStorageErrors(l Labels) {
	m.StorageErrors.WithLabelValues(l.Variant, l.Backend).Inc()
}

// IncCatalogErrors increments the catalog errors counter.
func (m *Metrics) IncCatalogErrors(l Labels) {
	m.CatalogErrors.WithLabelValues(l.Variant).Inc()
}

// IncRetryAttempts increments the retry attempts counter.
func (m *Metrics) IncRetryAttempts(l Labels) {
	m.RetryAttempts.WithLabelValues(l.Variant, l.Operation).Inc()
}
