package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booksync"

// Delta outcome labels.
const (
	DeltaApplied  = "applied"
	DeltaBuffered = "buffered"
	DeltaOutdated = "outdated"
	DeltaGap      = "gap"
	DeltaDropped  = "dropped"
)

// Audit outcome labels.
const (
	AuditMatch    = "match"
	AuditMismatch = "mismatch"
	AuditSkewed   = "skewed"
	AuditError    = "error"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	BooksSynced      prometheus.Gauge
	SnapshotRequests prometheus.Counter
	Resyncs          prometheus.Counter
	SyncFailures     prometheus.Counter
	Deltas           *prometheus.CounterVec
	RouterMessages   *prometheus.CounterVec
	ArchiveRows      prometheus.Counter
	AuditChecks      *prometheus.CounterVec
	buildInfo        *prometheus.GaugeVec
}

// New creates and registers every collector.
func New(version, commit string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BooksSynced: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "books_synced",
			Help:      "Number of books currently in the synced state.",
		}),
		SnapshotRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_requests_total",
			Help:      "Snapshot requests issued, including resyncs.",
		}),
		Resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Snapshots rejected as stale or failed and retried.",
		}),
		SyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_failures_total",
			Help:      "Channels that exhausted their snapshot attempts.",
		}),
		Deltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deltas_total",
			Help:      "Book deltas by outcome.",
		}, []string{"result"}),
		RouterMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_messages_total",
			Help:      "Inbound messages by routed family.",
		}, []string{"family"}),
		ArchiveRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_rows_total",
			Help:      "Rows written to the archive.",
		}),
		AuditChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_checks_total",
			Help:      "Synced books compared against a fresh snapshot, by outcome.",
		}, []string{"result"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information.",
		}, []string{"version", "commit"}),
	}

	m.registry.MustRegister(
		m.BooksSynced,
		m.SnapshotRequests,
		m.Resyncs,
		m.SyncFailures,
		m.Deltas,
		m.RouterMessages,
		m.ArchiveRows,
		m.AuditChecks,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.buildInfo.WithLabelValues(version, commit).Set(1)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SetBooksSynced(n int) {
	if m == nil {
		return
	}
	m.BooksSynced.Set(float64(n))
}

func (m *Metrics) IncSnapshotRequest() {
	if m == nil {
		return
	}
	m.SnapshotRequests.Inc()
}

func (m *Metrics) IncResync() {
	if m == nil {
		return
	}
	m.Resyncs.Inc()
}

func (m *Metrics) IncSyncFailure() {
	if m == nil {
		return
	}
	m.SyncFailures.Inc()
}

// ObserveDelta counts one delta with the given outcome label.
func (m *Metrics) ObserveDelta(result string) {
	if m == nil {
		return
	}
	m.Deltas.WithLabelValues(result).Inc()
}

// ObserveRoute counts one inbound message for family.
func (m *Metrics) ObserveRoute(family string) {
	if m == nil {
		return
	}
	m.RouterMessages.WithLabelValues(family).Inc()
}

func (m *Metrics) AddArchiveRows(n int) {
	if m == nil {
		return
	}
	m.ArchiveRows.Add(float64(n))
}

// ObserveAudit counts one audit comparison with the given outcome label.
func (m *Metrics) ObserveAudit(result string) {
	if m == nil {
		return
	}
	m.AuditChecks.WithLabelValues(result).Inc()
}
