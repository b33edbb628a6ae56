package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB records batches and emulates ON CONFLICT DO NOTHING on the first
// two arguments of each statement.
type fakeDB struct {
	mu      sync.Mutex
	batches []*pgx.Batch
	seen    map[string]bool
	err     error
}

func newFakeDB() *fakeDB {
	return &fakeDB{seen: make(map[string]bool)}
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return &fakeResults{db: f, batch: b}
}

func (f *fakeDB) queued() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pgx.QueuedQuery
	for _, b := range f.batches {
		out = append(out, b.QueuedQueries...)
	}
	return out
}

type fakeResults struct {
	db    *fakeDB
	batch *pgx.Batch
	next  int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.err != nil {
		return pgconn.CommandTag{}, r.db.err
	}
	q := r.batch.QueuedQueries[r.next]
	r.next++

	key := fmt.Sprint(q.Arguments[0], "/", q.Arguments[1])
	if r.db.seen[key] {
		return pgconn.NewCommandTag("INSERT 0 0"), nil
	}
	r.db.seen[key] = true
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row       { return nil }
func (r *fakeResults) Close() error            { return nil }

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func stopWriter(t *testing.T, stop func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
