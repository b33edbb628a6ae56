package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/model"
	"github.com/rickgao/booksync/internal/subscription"
)

// errStaleSnapshot marks a snapshot older than the buffered deltas.
var errStaleSnapshot = errors.New("stale snapshot")

// HandleDelta routes one inbound depth delta to its book.
//
// Deltas for untracked or failed channels are dropped. While a channel waits
// for its snapshot the delta is buffered; once synced it is applied if it
// continues the sequence and dropped otherwise.
func (e *Engine) HandleDelta(d model.Delta) {
	channel := model.BookChannel(d.Symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.subs.Get(channel)
	if !ok || entry.State == subscription.StateFailed {
		e.metrics.ObserveDelta(metrics.DeltaDropped)
		return
	}
	tb := e.books[channel]

	if entry.State.Buffering() {
		tb.pending.Append(d)
		e.metrics.ObserveDelta(metrics.DeltaBuffered)
		return
	}

	err := tb.store.Check(d)
	switch {
	case err == nil:
		tb.store.ApplyDelta(d)
		e.metrics.ObserveDelta(metrics.DeltaApplied)
		e.publishLocked(entry, tb, false)

	case errors.Is(err, book.ErrOutdated):
		e.metrics.ObserveDelta(metrics.DeltaOutdated)
		e.logger.Debug("outdated delta dropped", "channel", channel, "seq", d.Seq)

	case errors.Is(err, book.ErrSequenceGap):
		e.metrics.ObserveDelta(metrics.DeltaGap)
		nonce, _ := tb.store.Nonce()
		e.logger.Warn("sequence gap",
			"channel", channel,
			"nonce", nonce,
			"seq", d.Seq,
			"prev_seq", *d.PrevSeq,
		)
		if e.cfg.ResyncOnGap {
			e.resyncLocked(entry, tb, d)
		}
	}
}

// resyncLocked restarts reconciliation of a synced book, keeping d as the
// first buffered delta.
func (e *Engine) resyncLocked(entry *subscription.Entry, tb *tracked, d model.Delta) {
	if err := e.subs.Transition(entry.Channel, subscription.StateAwaitingSnapshot); err != nil {
		e.logger.Error("resync transition", "channel", entry.Channel, "error", err)
		return
	}
	tb.store.Clear()
	tb.pending.Clear()
	tb.pending.Append(d)
	entry.Attempts = 0
	e.metrics.SetBooksSynced(e.subs.Count(subscription.StateSynced))
	e.metrics.IncResync()

	e.logger.Info("resyncing book", "channel", entry.Channel)
	e.requestSnapshotLocked(entry)
}

// requestSnapshotLocked issues a snapshot request for entry on its own
// goroutine. entry must be awaiting a snapshot.
func (e *Engine) requestSnapshotLocked(entry *subscription.Entry) {
	if !e.running {
		return
	}
	if err := e.subs.Transition(entry.Channel, subscription.StateSyncing); err != nil {
		e.logger.Error("snapshot request transition", "channel", entry.Channel, "error", err)
		return
	}
	e.metrics.IncSnapshotRequest()

	channel, gen := entry.Channel, entry.Generation
	symbol, limit := entry.Symbol, entry.Limit

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.fetchSnapshot(channel, gen, symbol, limit)
	}()
}

func (e *Engine) fetchSnapshot(channel string, gen uint64, symbol string, limit int) {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.SnapshotTimeout)
	snap, err := e.source.RequestSnapshot(ctx, symbol, limit)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.subs.Lookup(channel, gen)
	if !ok || entry.State != subscription.StateSyncing {
		e.logger.Debug("snapshot discarded", "channel", channel, "generation", gen)
		return
	}
	tb := e.books[channel]

	if err != nil {
		if !e.running {
			return
		}
		e.logger.Warn("snapshot request failed", "channel", channel, "attempts", entry.Attempts, "error", err)
		e.retryLocked(entry, tb, fmt.Errorf("request snapshot: %w", err))
		return
	}

	e.reconcileLocked(entry, tb, snap)
}

// reconcileLocked seeds the book from snap unless it is older than the
// oldest buffered delta, then replays the buffer on top of it.
func (e *Engine) reconcileLocked(entry *subscription.Entry, tb *tracked, snap model.Snapshot) {
	if first, ok := tb.pending.First(); ok && snap.Nonce < first.Boundary() {
		e.logger.Info("stale snapshot",
			"channel", entry.Channel,
			"nonce", snap.Nonce,
			"first_seq", first.Seq,
			"attempts", entry.Attempts,
		)
		e.retryLocked(entry, tb, fmt.Errorf("%w: nonce %d before delta %d", errStaleSnapshot, snap.Nonce, first.Seq))
		return
	}

	tb.store.Reset(snap)
	buffered := tb.pending.Len()
	replayed := 0
	for _, d := range tb.pending.Drain() {
		if tb.store.ApplyDelta(d) {
			replayed++
		}
	}

	if err := e.subs.Transition(entry.Channel, subscription.StateSynced); err != nil {
		e.logger.Error("sync transition", "channel", entry.Channel, "error", err)
		return
	}
	e.metrics.SetBooksSynced(e.subs.Count(subscription.StateSynced))

	nonce, _ := tb.store.Nonce()
	e.logger.Info("book synced",
		"channel", entry.Channel,
		"snapshot_nonce", snap.Nonce,
		"nonce", nonce,
		"buffered", buffered,
		"replayed", replayed,
		"attempts", entry.Attempts,
	)

	e.publishLocked(entry, tb, true)
}

// retryLocked schedules another snapshot request, or fails the channel
// once MaxAttempts retries have been spent.
func (e *Engine) retryLocked(entry *subscription.Entry, tb *tracked, cause error) {
	if entry.Attempts >= e.cfg.MaxAttempts {
		if err := e.subs.Transition(entry.Channel, subscription.StateFailed); err != nil {
			e.logger.Error("fail transition", "channel", entry.Channel, "error", err)
			return
		}
		tb.pending.Clear()
		e.metrics.IncSyncFailure()

		err := fmt.Errorf("%w: %s after %d snapshot requests: %v", ErrInvalidNonce, entry.Channel, entry.Attempts+1, cause)
		e.logger.Error("book sync failed", "channel", entry.Channel, "error", err)
		tb.watcher.fail(err)
		return
	}

	if err := e.subs.Transition(entry.Channel, subscription.StateAwaitingSnapshot); err != nil {
		e.logger.Error("retry transition", "channel", entry.Channel, "error", err)
		return
	}
	entry.Attempts++
	e.metrics.IncResync()

	channel, gen := entry.Channel, entry.Generation
	delay := e.cfg.ResyncDelay

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-e.ctx.Done():
				return
			}
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		entry, ok := e.subs.Lookup(channel, gen)
		if !ok || entry.State != subscription.StateAwaitingSnapshot {
			e.logger.Debug("retry abandoned", "channel", channel, "generation", gen)
			return
		}
		e.requestSnapshotLocked(entry)
	}()
}
