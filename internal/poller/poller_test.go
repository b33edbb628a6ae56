package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/engine"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/model"
	"github.com/rickgao/booksync/internal/subscription"
)

func lvl(price, size string) model.Level {
	return model.Level{Price: decimal.RequireFromString(price), Size: decimal.RequireFromString(size)}
}

type fakeBooks struct {
	mu     sync.Mutex
	status []engine.Status
	views  map[string]book.View
}

func (f *fakeBooks) Status() []engine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Status(nil), f.status...)
}

func (f *fakeBooks) Book(symbol string, limit int) (book.View, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.views[symbol]
	return v, ok
}

type fakeSource struct {
	snaps    map[string]model.Snapshot
	err      error
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeSource) RequestSnapshot(ctx context.Context, symbol string, limit int) (model.Snapshot, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.Snapshot{}, ctx.Err()
		}
	}
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	return f.snaps[symbol], nil
}

func synced(symbols ...string) []engine.Status {
	out := make([]engine.Status, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, engine.Status{Channel: model.BookChannel(s), Symbol: s, State: subscription.StateSynced})
	}
	return out
}

func TestCompare(t *testing.T) {
	local := book.View{
		Symbol: "btcusdt",
		Bids:   []model.Level{lvl("100", "1"), lvl("99", "2")},
		Asks:   []model.Level{lvl("101", "1.5"), lvl("102", "3")},
		Nonce:  42,
	}

	tests := []struct {
		name    string
		remote  model.Snapshot
		depth   int
		outcome string
		side    string
		index   int
	}{
		{
			name: "identical",
			remote: model.Snapshot{Nonce: 42,
				Bids: []model.Level{lvl("100", "1"), lvl("99", "2")},
				Asks: []model.Level{lvl("101", "1.5"), lvl("102", "3")}},
			outcome: metrics.AuditMatch,
		},
		{
			name: "unsorted with zero sizes and trailing zeros",
			remote: model.Snapshot{Nonce: 42,
				Bids: []model.Level{lvl("99", "2.00"), lvl("98", "0"), lvl("100", "1")},
				Asks: []model.Level{lvl("102", "3"), lvl("101.0", "1.5")}},
			outcome: metrics.AuditMatch,
		},
		{
			name: "different nonce",
			remote: model.Snapshot{Nonce: 43,
				Bids: []model.Level{lvl("100", "5")}},
			outcome: metrics.AuditSkewed,
		},
		{
			name: "bid size differs",
			remote: model.Snapshot{Nonce: 42,
				Bids: []model.Level{lvl("100", "1"), lvl("99", "2.5")},
				Asks: []model.Level{lvl("101", "1.5"), lvl("102", "3")}},
			outcome: metrics.AuditMismatch,
			side:    "bid",
			index:   1,
		},
		{
			name: "ask missing level",
			remote: model.Snapshot{Nonce: 42,
				Bids: []model.Level{lvl("100", "1"), lvl("99", "2")},
				Asks: []model.Level{lvl("101", "1.5")}},
			outcome: metrics.AuditMismatch,
			side:    "ask",
			index:   1,
		},
		{
			name: "depth limits comparison",
			remote: model.Snapshot{Nonce: 42,
				Bids: []model.Level{lvl("100", "1"), lvl("99", "7")},
				Asks: []model.Level{lvl("101", "1.5"), lvl("102", "9")}},
			depth:   1,
			outcome: metrics.AuditMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(local, tt.remote, tt.depth)
			if got.Outcome != tt.outcome {
				t.Fatalf("Outcome = %q, want %q", got.Outcome, tt.outcome)
			}
			if got.Side != tt.side {
				t.Errorf("Side = %q, want %q", got.Side, tt.side)
			}
			if got.Index != tt.index {
				t.Errorf("Index = %d, want %d", got.Index, tt.index)
			}
			if got.LocalNonce != 42 || got.RemoteNonce != tt.remote.Nonce {
				t.Errorf("nonces = %d/%d", got.LocalNonce, got.RemoteNonce)
			}
		})
	}
}

func TestPoller_AuditAll(t *testing.T) {
	view := book.View{Bids: []model.Level{lvl("10", "1")}, Asks: []model.Level{lvl("11", "1")}, Nonce: 7}
	books := &fakeBooks{
		status: append(synced("aaa", "bbb", "ccc"),
			engine.Status{Symbol: "ddd", State: subscription.StateAwaitingSnapshot}),
		views: map[string]book.View{"aaa": view, "bbb": view, "ccc": view},
	}
	source := &fakeSource{snaps: map[string]model.Snapshot{
		"aaa": {Nonce: 7, Bids: view.Bids, Asks: view.Asks},
		"bbb": {Nonce: 7, Bids: []model.Level{lvl("10", "2")}, Asks: view.Asks},
		"ccc": {Nonce: 9},
	}}
	m := metrics.New("test", "none")

	p := New(Config{Interval: time.Hour}, source, books, m, nil)
	stats := p.auditAll(context.Background())

	if stats.Checked != 3 {
		t.Errorf("Checked = %d, want 3", stats.Checked)
	}
	if stats.Matched != 1 || stats.Mismatched != 1 || stats.Skewed != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if got := source.calls.Load(); got != 3 {
		t.Errorf("snapshot calls = %d, want 3 (unsynced book skipped)", got)
	}
}

func TestPoller_AuditErrors(t *testing.T) {
	books := &fakeBooks{status: synced("aaa"), views: map[string]book.View{}}

	// Source failure.
	p := New(Config{}, &fakeSource{err: errors.New("boom")}, books, nil, nil)
	if stats := p.auditAll(context.Background()); stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}

	// Book dropped between status and comparison.
	p = New(Config{}, &fakeSource{snaps: map[string]model.Snapshot{}}, books, nil, nil)
	res := p.audit(context.Background(), "aaa")
	if res.Outcome != metrics.AuditError || !errors.Is(res.Err, errNotSynced) {
		t.Errorf("audit = %+v, want errNotSynced", res)
	}
}

func TestPoller_Concurrency(t *testing.T) {
	symbols := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	views := make(map[string]book.View, len(symbols))
	for _, s := range symbols {
		views[s] = book.View{}
	}
	books := &fakeBooks{status: synced(symbols...), views: views}
	source := &fakeSource{snaps: map[string]model.Snapshot{}, delay: 20 * time.Millisecond}

	p := New(Config{Concurrency: 2}, source, books, nil, nil)
	stats := p.auditAll(context.Background())

	if stats.Matched != int64(len(symbols)) {
		t.Errorf("Matched = %d, want %d", stats.Matched, len(symbols))
	}
	if peak := source.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestPoller_DefaultsApplied(t *testing.T) {
	p := New(Config{}, &fakeSource{}, &fakeBooks{}, nil, nil)
	if p.cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", p.cfg)
	}
}

func TestPoller_StartStop(t *testing.T) {
	books := &fakeBooks{status: synced("aaa"), views: map[string]book.View{"aaa": {}}}
	source := &fakeSource{snaps: map[string]model.Snapshot{}}

	p := New(Config{Interval: 10 * time.Millisecond}, source, books, nil, nil)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for source.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if source.calls.Load() < 2 {
		t.Errorf("expected repeated audits, got %d calls", source.calls.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
