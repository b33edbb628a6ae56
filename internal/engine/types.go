package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/model"
	"github.com/rickgao/booksync/internal/subscription"
)

// Errors
var (
	ErrInvalidNonce = errors.New("invalid nonce: snapshot never caught up with buffered deltas")
	ErrUnsubscribed = errors.New("unsubscribed")
	ErrDisconnected = errors.New("feed disconnected")
	ErrNotRunning   = errors.New("engine not running")
	ErrLimitInUse   = errors.New("book already watched with a different limit")
)

// Transport subscribes and unsubscribes feed channels.
type Transport interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
}

// SnapshotSource fetches a full book for symbol, truncated to limit levels
// per side (0 for the source default).
type SnapshotSource interface {
	RequestSnapshot(ctx context.Context, symbol string, limit int) (model.Snapshot, error)
}

// Publisher receives a copy of every book update.
// *router.GrowableBuffer[Update] satisfies it.
type Publisher interface {
	Send(u Update) bool
}

// Update is a synced book view after a snapshot or an applied delta.
type Update struct {
	Channel   string
	View      book.View
	Snapshot  bool // true when produced by a snapshot reconcile
	UpdatedAt time.Time
}

// Status describes one tracked channel.
type Status struct {
	Channel  string             `json:"channel"`
	Symbol   string             `json:"symbol"`
	State    subscription.State `json:"state"`
	Attempts int                `json:"attempts"`
	Nonce    int64              `json:"nonce"`
	Seeded   bool               `json:"seeded"`
	Pending  int                `json:"pending"`
}

// Config configures the Engine.
type Config struct {
	MaxAttempts     int           // Stale snapshots tolerated before a channel fails
	ResyncDelay     time.Duration // Wait before a retry request (0 = immediately)
	SnapshotTimeout time.Duration // Deadline for one snapshot round trip
	ResyncOnGap     bool          // Resync a synced book when a delta skips sequence numbers
	DefaultDepth    int           // View depth when Watch gets limit <= 0 (0 = all levels)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		SnapshotTimeout: 10 * time.Second,
	}
}
