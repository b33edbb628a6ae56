package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SetBooksSynced(3)
	m.IncSnapshotRequest()
	m.IncResync()
	m.IncSyncFailure()
	m.ObserveDelta(DeltaApplied)
	m.ObserveRoute("book")
	m.AddArchiveRows(10)
	m.ObserveAudit(AuditMatch)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestMetrics_Record(t *testing.T) {
	m := New("v1.2.3", "abc123")

	m.SetBooksSynced(2)
	m.IncSnapshotRequest()
	m.IncSnapshotRequest()
	m.IncResync()
	m.ObserveDelta(DeltaApplied)
	m.ObserveDelta(DeltaApplied)
	m.ObserveDelta(DeltaGap)
	m.ObserveRoute("trade")
	m.AddArchiveRows(5)
	m.ObserveAudit(AuditMismatch)

	text := scrape(t, m)
	for _, want := range []string{
		"booksync_books_synced 2",
		"booksync_snapshot_requests_total 2",
		"booksync_resyncs_total 1",
		`booksync_deltas_total{result="applied"} 2`,
		`booksync_deltas_total{result="gap"} 1`,
		`booksync_router_messages_total{family="trade"} 1`,
		"booksync_archive_rows_total 5",
		`booksync_audit_checks_total{result="mismatch"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New("dev", "none")
	m.IncSyncFailure()

	text := scrape(t, m)
	for _, want := range []string{
		"booksync_sync_failures_total 1",
		`booksync_build_info{commit="none",version="dev"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
