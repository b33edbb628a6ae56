package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/booksync/internal/model"
)

// fakeTransport records subscribe calls.
type fakeTransport struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed []string
	subscribeErr error
}

func (f *fakeTransport) Subscribe(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribed = append(f.subscribed, channel)
	return nil
}

func (f *fakeTransport) Unsubscribe(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, channel)
	return nil
}

type snapReply struct {
	snap model.Snapshot
	err  error
}

type snapRequest struct {
	symbol string
	limit  int
	reply  chan snapReply
}

// fakeSource hands every request to the test, which answers it explicitly.
type fakeSource struct {
	requests chan snapRequest
}

func newFakeSource() *fakeSource {
	return &fakeSource{requests: make(chan snapRequest, 16)}
}

func (f *fakeSource) RequestSnapshot(ctx context.Context, symbol string, limit int) (model.Snapshot, error) {
	req := snapRequest{symbol: symbol, limit: limit, reply: make(chan snapReply, 1)}
	select {
	case f.requests <- req:
	case <-ctx.Done():
		return model.Snapshot{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.snap, r.err
	case <-ctx.Done():
		return model.Snapshot{}, ctx.Err()
	}
}

// next waits for the engine's next snapshot request.
func (f *fakeSource) next(t *testing.T) snapRequest {
	t.Helper()
	select {
	case req := <-f.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot request")
		return snapRequest{}
	}
}

// none asserts that no request arrives within d.
func (f *fakeSource) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case req := <-f.requests:
		t.Fatalf("unexpected snapshot request for %s", req.symbol)
	case <-time.After(d):
	}
}

// fakePublisher collects updates.
type fakePublisher struct {
	mu      sync.Mutex
	updates []Update
}

func (p *fakePublisher) Send(u Update) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, u)
	return true
}

func (p *fakePublisher) all() []Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Update(nil), p.updates...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lvl(price, size string) model.Level {
	return model.Level{Price: dec(price), Size: dec(size)}
}

func snapshot(nonce int64, bids, asks []model.Level) model.Snapshot {
	return model.Snapshot{
		Symbol:    "btcusdt",
		Bids:      bids,
		Asks:      asks,
		Nonce:     nonce,
		Timestamp: time.UnixMilli(1705328200000).UTC(),
		Source:    model.SourceWS,
	}
}

func deltaFor(symbol string, seq int64, prev *int64, bids, asks []model.Level) model.Delta {
	return model.Delta{
		Channel:   model.BookChannel(symbol),
		Symbol:    symbol,
		Seq:       seq,
		PrevSeq:   prev,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.UnixMilli(1705328200000 + seq).UTC(),
	}
}

func nextCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
