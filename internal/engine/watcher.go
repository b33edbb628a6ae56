package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/booksync/internal/book"
)

// Watcher delivers book views for one subscription.
//
// Views are conflated: Next returns the most recent view not yet returned,
// so a slow consumer skips intermediate states but never sees an old one.
// Once the subscription ends, Next returns any undelivered view and then
// the terminal error on every call.
type Watcher struct {
	id      string
	channel string
	symbol  string

	mu      sync.Mutex
	latest  book.View
	pending bool
	err     error

	notify chan struct{}
	done   chan struct{}
}

func newWatcher(channel, symbol string) *Watcher {
	return &Watcher{
		id:      uuid.NewString(),
		channel: channel,
		symbol:  symbol,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// ID returns the watcher's unique id.
func (w *Watcher) ID() string { return w.id }

// Channel returns the watched channel.
func (w *Watcher) Channel() string { return w.channel }

// Symbol returns the watched symbol.
func (w *Watcher) Symbol() string { return w.symbol }

// Done is closed when the subscription has ended.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Err returns the terminal error, or nil while the subscription is live.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Next blocks until a new view is available, the subscription ends, or ctx
// is done.
func (w *Watcher) Next(ctx context.Context) (book.View, error) {
	for {
		w.mu.Lock()
		if w.pending {
			v := w.latest
			w.pending = false
			w.mu.Unlock()
			return v, nil
		}
		if w.err != nil {
			err := w.err
			w.mu.Unlock()
			return book.View{}, err
		}
		w.mu.Unlock()

		select {
		case <-w.notify:
		case <-ctx.Done():
			return book.View{}, ctx.Err()
		}
	}
}

func (w *Watcher) publish(v book.View) {
	w.mu.Lock()
	if w.err != nil {
		w.mu.Unlock()
		return
	}
	w.latest = v
	w.pending = true
	w.mu.Unlock()
	w.wake()
}

// fail ends the subscription with err. Only the first error is kept.
func (w *Watcher) fail(err error) {
	w.mu.Lock()
	if w.err != nil {
		w.mu.Unlock()
		return
	}
	w.err = err
	close(w.done)
	w.mu.Unlock()
	w.wake()
}

func (w *Watcher) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}
