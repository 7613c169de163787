// Package metrics registers the Prometheus collectors of the ingestion
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_ingestion_runs_total",
			Help: "Ingestion runs by final status",
		},
		[]string{"status"}, // completed, failed
	)

	IngestionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_ingestion_duration_seconds",
			Help:    "Ingestion run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"status"},
	)

	RowOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_ingestion_rows_total",
			Help: "Parsed rows by outcome",
		},
		[]string{"outcome"}, // complete, draft, discarded
	)

	ChangeEntries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_change_entries_total",
			Help: "Change log entries by change type",
		},
		[]string{"type"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	KPICacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_kpi_cache_lookups_total",
			Help: "KPI cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)
)

// RecordIngestion records a finished run.
func RecordIngestion(status string, duration time.Duration) {
	IngestionRuns.WithLabelValues(status).Inc()
	IngestionDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// AddRowOutcomes adds the row counters of one run.
func AddRowOutcomes(complete, drafts, discarded int) {
	RowOutcomes.WithLabelValues("complete").Add(float64(complete))
	RowOutcomes.WithLabelValues("draft").Add(float64(drafts))
	RowOutcomes.WithLabelValues("discarded").Add(float64(discarded))
}

// AddChanges adds the change summary of one run.
func AddChanges(added, modified, deleted int) {
	ChangeEntries.WithLabelValues("added").Add(float64(added))
	ChangeEntries.WithLabelValues("modified").Add(float64(modified))
	ChangeEntries.WithLabelValues("deleted").Add(float64(deleted))
}

// RecordHTTPRequestDuration records one served request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementKPICache counts one cache lookup.
func IncrementKPICache(result string) {
	KPICacheLookups.WithLabelValues(result).Inc()
}
