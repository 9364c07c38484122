package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "routine_sync",
		Subsystem: "persistence",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent daily record written to Postgres.",
	})
	persistFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routine_sync",
		Subsystem: "persistence",
		Name:      "persist_failures_total",
		Help:      "Number of failed full-record overwrite attempts.",
	})
	snapshotAppliedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routine_sync",
		Subsystem: "session",
		Name:      "snapshots_applied_total",
		Help:      "Number of remote snapshots merged into session state.",
	})
	staleSnapshotCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routine_sync",
		Subsystem: "session",
		Name:      "stale_snapshots_discarded_total",
		Help:      "Number of late subscription callbacks discarded after a date switch.",
	})
	debounceCollapseCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "routine_sync",
		Subsystem: "session",
		Name:      "debounced_edits_collapsed_total",
		Help:      "Number of comment edits absorbed into an already-pending debounce window.",
	})
)

func init() {
	prometheus.MustRegister(
		recordPersistGauge,
		persistFailureCounter,
		snapshotAppliedCounter,
		staleSnapshotCounter,
		debounceCollapseCounter,
	)
}

// RecordPersisted updates the persistence watermark gauge.
func RecordPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	recordPersistGauge.Set(float64(ts.Unix()))
}

// RecordPersistFailure counts a failed overwrite.
func RecordPersistFailure() {
	persistFailureCounter.Inc()
}

// RecordSnapshotApplied counts a remote snapshot accepted by a session.
func RecordSnapshotApplied() {
	snapshotAppliedCounter.Inc()
}

// RecordStaleSnapshot counts a late callback dropped after a date switch.
func RecordStaleSnapshot() {
	staleSnapshotCounter.Inc()
}

// RecordDebounceCollapse counts a comment edit that reset a pending window.
func RecordDebounceCollapse() {
	debounceCollapseCounter.Inc()
}
