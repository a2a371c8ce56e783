// Package telemetry exposes Prometheus metrics for the sync pipeline.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_sync_total",
			Help: "Total number of account sync runs",
		},
		[]string{"outcome"},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "journal_sync_duration_seconds",
			Help:    "Account sync duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	tradesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_trades_ingested_total",
			Help: "Total number of trades newly inserted into the journal",
		},
	)

	mirrorTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_mirror_total",
			Help: "Total number of per-trade mirror attempts by status",
		},
		[]string{"status"},
	)
)

// RecordSync records the outcome and duration of one sync run.
func RecordSync(outcome string, started time.Time) {
	syncTotal.WithLabelValues(outcome).Inc()
	syncDuration.Observe(time.Since(started).Seconds())
}

// RecordIngested adds newly inserted trades to the ingest counter.
func RecordIngested(count int) {
	if count > 0 {
		tradesIngested.Add(float64(count))
	}
}

// RecordMirror counts one per-trade mirror attempt.
func RecordMirror(status string) {
	mirrorTotal.WithLabelValues(status).Inc()
}
