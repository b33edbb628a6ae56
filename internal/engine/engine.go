package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/model"
	"github.com/rickgao/booksync/internal/subscription"
)

// tracked is the book state owned by one channel.
type tracked struct {
	store   *book.Store
	pending book.PendingCache
	watcher *Watcher
}

// Engine synchronizes order books for any number of symbols.
type Engine struct {
	cfg       Config
	transport Transport
	source    SnapshotSource
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	subs    *subscription.Registry
	books   map[string]*tracked // keyed by channel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine. Call Start before Watch.
func New(cfg Config, transport Transport, source SnapshotSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = DefaultConfig().SnapshotTimeout
	}

	return &Engine{
		cfg:       cfg,
		transport: transport,
		source:    source,
		logger:    logger.With("component", "engine"),
		subs:      subscription.NewRegistry(),
		books:     make(map[string]*tracked),
	}
}

// SetPublisher sets where book updates are copied to. Call before Start.
func (e *Engine) SetPublisher(p Publisher) {
	e.publisher = p
}

// SetMetrics sets the metrics sink. Call before Start.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Start enables Watch. Background work is bound to ctx.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true

	e.logger.Info("engine started",
		"max_attempts", e.cfg.MaxAttempts,
		"resync_delay", e.cfg.ResyncDelay,
		"resync_on_gap", e.cfg.ResyncOnGap,
	)
	return nil
}

// Stop cancels in-flight snapshot requests and retries, ends every watcher
// with ErrUnsubscribed and waits for background work to finish.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.cancel()
	for _, entry := range e.subs.Reset() {
		e.books[entry.Channel].watcher.fail(ErrUnsubscribed)
	}
	e.books = make(map[string]*tracked)
	e.metrics.SetBooksSynced(0)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		e.logger.Warn("engine stop timed out")
		return ctx.Err()
	}
}

// Watch subscribes to symbol's book and returns its Watcher.
//
// Watching a symbol that is already tracked returns the existing Watcher
// when limit resolves to the same depth, and ErrLimitInUse otherwise.
// A symbol whose subscription failed is subscribed afresh with a new
// Watcher. limit bounds the depth of delivered views (<= 0 uses the
// configured default).
func (e *Engine) Watch(ctx context.Context, symbol string, limit int) (*Watcher, error) {
	symbol = strings.ToLower(symbol)
	channel := model.BookChannel(symbol)
	if limit <= 0 {
		limit = e.cfg.DefaultDepth
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil, ErrNotRunning
	}
	if entry, ok := e.subs.Get(channel); ok {
		if entry.State != subscription.StateFailed {
			if entry.Limit != limit {
				e.mu.Unlock()
				return nil, fmt.Errorf("%w: %s has limit %d, requested %d", ErrLimitInUse, channel, entry.Limit, limit)
			}
			w := e.books[channel].watcher
			e.mu.Unlock()
			return w, nil
		}
		e.subs.Remove(channel)
		delete(e.books, channel)
	}

	entry, err := e.subs.Add(channel, symbol, limit)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	tb := &tracked{
		store:   book.NewStore(symbol),
		watcher: newWatcher(channel, symbol),
	}
	e.books[channel] = tb
	gen := entry.Generation
	e.mu.Unlock()

	if err := e.transport.Subscribe(ctx, channel); err != nil {
		e.mu.Lock()
		if _, ok := e.subs.Lookup(channel, gen); ok {
			e.subs.Remove(channel)
			delete(e.books, channel)
		}
		e.mu.Unlock()
		tb.watcher.fail(err)
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.subs.Lookup(channel, gen)
	if !ok {
		// Unsubscribed or reset while the subscribe was in flight.
		if err := tb.watcher.Err(); err != nil {
			return nil, err
		}
		return nil, ErrUnsubscribed
	}
	if err := e.subs.Transition(channel, subscription.StateAwaitingSnapshot); err != nil {
		return nil, err
	}
	e.requestSnapshotLocked(entry)

	e.logger.Info("watching book", "channel", channel, "limit", limit, "watcher", tb.watcher.ID())
	return tb.watcher, nil
}

// Unsubscribe stops tracking symbol, discards its book and ends its
// Watcher with ErrUnsubscribed. Pending retries for it are abandoned.
func (e *Engine) Unsubscribe(ctx context.Context, symbol string) error {
	symbol = strings.ToLower(symbol)
	channel := model.BookChannel(symbol)

	e.mu.Lock()
	if _, ok := e.subs.Remove(channel); !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", subscription.ErrUnknownChannel, channel)
	}
	tb := e.books[channel]
	delete(e.books, channel)
	e.metrics.SetBooksSynced(e.subs.Count(subscription.StateSynced))
	e.mu.Unlock()

	tb.watcher.fail(ErrUnsubscribed)

	if err := e.transport.Unsubscribe(ctx, channel); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", channel, err)
	}

	e.logger.Info("unsubscribed book", "channel", channel)
	return nil
}

// Disconnected drops every tracked book after the feed connection is lost.
// Each Watcher ends with ErrDisconnected; consumers watch again once the
// feed is back.
func (e *Engine) Disconnected() {
	e.mu.Lock()
	entries := e.subs.Reset()
	books := e.books
	e.books = make(map[string]*tracked)
	e.metrics.SetBooksSynced(0)
	e.mu.Unlock()

	for _, entry := range entries {
		books[entry.Channel].watcher.fail(ErrDisconnected)
	}

	if len(entries) > 0 {
		e.logger.Warn("feed disconnected, books dropped", "books", len(entries))
	}
}

// Book returns a view of symbol's book if it is synced.
func (e *Engine) Book(symbol string, limit int) (book.View, bool) {
	channel := model.BookChannel(symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.subs.Get(channel)
	if !ok || entry.State != subscription.StateSynced {
		return book.View{}, false
	}
	return e.books[channel].store.View(limit), true
}

// Status lists every tracked channel sorted by name.
func (e *Engine) Status() []Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Status, 0, e.subs.Len())
	for _, channel := range e.subs.Channels() {
		entry, _ := e.subs.Get(channel)
		tb := e.books[channel]
		nonce, seeded := tb.store.Nonce()
		out = append(out, Status{
			Channel:  channel,
			Symbol:   entry.Symbol,
			State:    entry.State,
			Attempts: entry.Attempts,
			Nonce:    nonce,
			Seeded:   seeded,
			Pending:  tb.pending.Len(),
		})
	}
	return out
}

// publishLocked hands the current view to the watcher and the publisher.
func (e *Engine) publishLocked(entry *subscription.Entry, tb *tracked, fromSnapshot bool) {
	v := tb.store.View(entry.Limit)
	tb.watcher.publish(v)

	if e.publisher != nil {
		e.publisher.Send(Update{
			Channel:   entry.Channel,
			View:      v,
			Snapshot:  fromSnapshot,
			UpdatedAt: time.Now(),
		})
	}
}
