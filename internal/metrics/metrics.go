// Package metrics provides Prometheus instrumentation for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the pipeline's Prometheus collectors. Pass a dedicated
// Registerer in tests so repeated construction does not collide.
type Collector struct {
	// Extraction metrics
	UnitsTotal   *prometheus.CounterVec
	UnitDuration prometheus.Histogram
	RunDuration  prometheus.Histogram

	// Archive fetch metrics
	DownloadsTotal *prometheus.CounterVec
	DownloadBytes  prometheus.Counter

	// API metrics
	APIRequestsTotal *prometheus.CounterVec
}

// NewCollector registers the pipeline collectors on reg under the given
// namespace. A nil reg uses the default registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		UnitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_total",
				Help:      "Total number of processed (point, file) units by final state",
			},
			[]string{"state"},
		),

		UnitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_duration_seconds",
				Help:      "Duration of a single (point, file) extraction in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a whole batch run in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
			},
		),

		DownloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Total number of archive downloads by outcome",
			},
			[]string{"outcome"}, // "downloaded", "skipped", "failed"
		),

		DownloadBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_bytes_total",
				Help:      "Total bytes downloaded from the archive",
			},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
	}
}

// RecordUnit records the final state and duration of one unit.
func (c *Collector) RecordUnit(state string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.UnitsTotal.WithLabelValues(state).Inc()
	c.UnitDuration.Observe(elapsed.Seconds())
}

// RecordRun records the duration of a whole batch run.
func (c *Collector) RecordRun(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RunDuration.Observe(elapsed.Seconds())
}

// RecordDownload records one download attempt by outcome.
func (c *Collector) RecordDownload(outcome string, bytes int64) {
	if c == nil {
		return
	}
	c.DownloadsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		c.DownloadBytes.Add(float64(bytes))
	}
}

// RecordAPIRequest records one API request by endpoint and status code.
func (c *Collector) RecordAPIRequest(endpoint, status string) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
}
