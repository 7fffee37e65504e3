package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "verdant_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ledgerAppends       *prometheus.CounterVec
	ledgerAppendLatency *prometheus.HistogramVec

	catchupQueries *prometheus.CounterVec
	catchupLatency *prometheus.HistogramVec

	snapshotBuilds  *prometheus.CounterVec
	snapshotLatency *prometheus.HistogramVec

	broadcastDelivered *prometheus.CounterVec
	broadcastDropped   *prometheus.CounterVec
	streamClients      prometheus.Gauge

	resyncRequests *prometheus.CounterVec
	resyncLatency  *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ledgerAppends = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_appends_total",
				Help: "Total ledger append operations by result",
			},
			[]string{"result"},
		)
		ledgerAppendLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_append_latency_seconds",
				Help:    "Ledger append latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		catchupQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "catchup_queries_total",
				Help: "Total catch-up queries by result",
			},
			[]string{"result"},
		)
		catchupLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "catchup_latency_seconds",
				Help:    "Catch-up query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		snapshotBuilds = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_builds_total",
				Help: "Total snapshot builds by result",
			},
			[]string{"result"},
		)
		snapshotLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "snapshot_build_latency_seconds",
				Help:    "Snapshot build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		broadcastDelivered = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_delivered_total",
				Help: "Events delivered to push subscribers by channel kind",
			},
			[]string{"channel"},
		)
		broadcastDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_dropped_total",
				Help: "Push deliveries dropped by reason",
			},
			[]string{"reason"},
		)
		streamClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_clients",
				Help: "Currently connected stream subscribers",
			},
		)

		resyncRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "resync_requests_total",
				Help: "Total full resync requests by result",
			},
			[]string{"result"},
		)
		resyncLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "resync_latency_seconds",
				Help:    "Full resync latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_export_total",
				Help: "Total event history exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "event_export_latency_seconds",
				Help:    "Event history export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ledgerAppends,
			ledgerAppendLatency,
			catchupQueries,
			catchupLatency,
			snapshotBuilds,
			snapshotLatency,
			broadcastDelivered,
			broadcastDropped,
			streamClients,
			resyncRequests,
			resyncLatency,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveLedgerAppend records append duration and result.
func ObserveLedgerAppend(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ledgerAppends != nil {
		ledgerAppends.WithLabelValues(result).Inc()
	}
	if ledgerAppendLatency != nil {
		ledgerAppendLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveCatchup records catch-up query duration and result.
func ObserveCatchup(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if catchupQueries != nil {
		catchupQueries.WithLabelValues(result).Inc()
	}
	if catchupLatency != nil {
		catchupLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveSnapshotBuild records snapshot build duration and result.
func ObserveSnapshotBuild(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if snapshotBuilds != nil {
		snapshotBuilds.WithLabelValues(result).Inc()
	}
	if snapshotLatency != nil {
		snapshotLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncBroadcastDelivered counts one delivered push event.
func IncBroadcastDelivered(channel string) {
	if channel == "" {
		channel = "zone"
	}
	if broadcastDelivered != nil {
		broadcastDelivered.WithLabelValues(channel).Inc()
	}
}

// IncBroadcastDropped counts one dropped push delivery.
func IncBroadcastDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if broadcastDropped != nil {
		broadcastDropped.WithLabelValues(reason).Inc()
	}
}

// SetStreamClients sets the connected subscriber gauge.
func SetStreamClients(count int) {
	if streamClients != nil {
		streamClients.Set(float64(count))
	}
}

// ObserveResync records full resync duration and result.
func ObserveResync(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if resyncRequests != nil {
		resyncRequests.WithLabelValues(result).Inc()
	}
	if resyncLatency != nil {
		resyncLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveEventExport records export duration by format and result.
func ObserveEventExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
