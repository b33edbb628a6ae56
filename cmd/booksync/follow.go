package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/engine"
)

// watcher is the engine surface a follower needs.
type watcher interface {
	Watch(ctx context.Context, symbol string, limit int) (*engine.Watcher, error)
}

// signal is a broadcast that wakes every waiter each time it fires.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// Wait returns a channel closed by the next Fire.
func (s *signal) Wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *signal) Fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.ch)
	s.ch = make(chan struct{})
}

// follow keeps symbol watched until ctx ends. Each view is passed to onView.
// When the watcher ends (failed sync, disconnect) the symbol is watched
// again after a backoff, or as soon as the feed reconnects.
func follow(ctx context.Context, eng watcher, symbol string, depth int, reconnected *signal, logger *slog.Logger, onView func(book.View)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second

	for {
		w, err := eng.Watch(ctx, symbol, depth)
		if err == nil {
			err = consume(ctx, w, onView, bo)
		}
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		switch {
		case errors.Is(err, engine.ErrInvalidNonce):
			logger.Error("book sync failed, resubscribing", "symbol", symbol, "error", err, "retry_in", wait)
		case errors.Is(err, engine.ErrDisconnected):
			logger.Warn("feed disconnected, waiting to resubscribe", "symbol", symbol, "retry_in", wait)
		default:
			logger.Warn("watch ended", "symbol", symbol, "error", err, "retry_in", wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-reconnected.Wait():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// consume delivers views until the watcher ends. A delivered view resets the
// backoff.
func consume(ctx context.Context, w *engine.Watcher, onView func(book.View), bo *backoff.ExponentialBackOff) error {
	for {
		view, err := w.Next(ctx)
		if err != nil {
			return err
		}
		bo.Reset()
		onView(view)
	}
}

// logTopOfBook returns an onView callback logging best bid/ask and spread.
func logTopOfBook(logger *slog.Logger) func(book.View) {
	return func(v book.View) {
		attrs := []any{"symbol", v.Symbol, "nonce", v.Nonce}
		if bid, ok := v.BestBid(); ok {
			attrs = append(attrs, "bid", bid.Price.String(), "bid_size", bid.Size.String())
		}
		if ask, ok := v.BestAsk(); ok {
			attrs = append(attrs, "ask", ask.Price.String(), "ask_size", ask.Size.String())
		}
		if spread, ok := v.Spread(); ok {
			attrs = append(attrs, "spread", spread.String())
		}
		logger.Debug("top of book", attrs...)
	}
}
