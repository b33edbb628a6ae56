package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/booksync/internal/router"
)

// pollInterval is how long the consumer sleeps when its input is empty.
const pollInterval = 10 * time.Millisecond

// batcher drains a buffer of T, converts each item to a row R, and flushes
// rows through insert when the batch fills or the flush interval elapses.
type batcher[T, R any] struct {
	name   string
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the router or engine
	input *router.GrowableBuffer[T]

	transform  func(T) (R, bool)
	insert     func(ctx context.Context, rows []R) (conflicts int, err error)
	onInserted func(n int)

	// Batching
	batch   []R
	batchMu sync.Mutex
	metrics WriterMetrics

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBatcher[T, R any](name string, cfg WriterConfig, input *router.GrowableBuffer[T], logger *slog.Logger) *batcher[T, R] {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &batcher[T, R]{
		name:       name,
		cfg:        cfg,
		input:      input,
		logger:     logger.With("component", name+"_writer"),
		onInserted: func(int) {},
		batch:      make([]R, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (b *batcher[T, R]) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(2)
	go b.consumeLoop()
	go b.flushLoop()

	b.logger.Info("writer started",
		"batch_size", b.cfg.BatchSize,
		"flush_interval", b.cfg.FlushInterval,
	)
	return nil
}

// Stop waits for the consumer, drains what is left in the input, and writes
// a final batch using ctx.
func (b *batcher[T, R]) Stop(ctx context.Context) error {
	b.logger.Info("stopping writer")

	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("writer stop timed out")
		return ctx.Err()
	}

	for _, item := range b.input.DrainTo(0) {
		b.add(item)
	}
	b.flush(ctx)

	b.logger.Info("writer stopped")
	return nil
}

// Stats returns current metrics.
func (b *batcher[T, R]) Stats() WriterMetrics {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()
	return b.metrics
}

// consumeLoop moves items from the input buffer into the batch.
func (b *batcher[T, R]) consumeLoop() {
	defer b.wg.Done()

	for {
		items := b.input.DrainTo(b.cfg.BatchSize)
		if len(items) == 0 {
			if b.input.Closed() {
				return
			}
			select {
			case <-b.ctx.Done():
				return
			case <-time.After(pollInterval):
				continue
			}
		}

		full := false
		for _, item := range items {
			full = b.add(item) || full
		}
		if full {
			b.flush(b.ctx)
		}

		select {
		case <-b.ctx.Done():
			return
		default:
		}
	}
}

// flushLoop periodically flushes the batch.
func (b *batcher[T, R]) flushLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.flush(b.ctx)
		}
	}
}

// add transforms an item and appends it, reporting whether the batch is full.
func (b *batcher[T, R]) add(item T) bool {
	row, ok := b.transform(item)

	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if !ok {
		b.metrics.Skipped++
		return false
	}
	b.batch = append(b.batch, row)
	return len(b.batch) >= b.cfg.BatchSize
}

// flush writes the current batch to the database.
func (b *batcher[T, R]) flush(ctx context.Context) {
	b.batchMu.Lock()
	if len(b.batch) == 0 {
		b.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	rows := b.batch
	b.batch = make([]R, 0, b.cfg.BatchSize)
	b.batchMu.Unlock()

	start := time.Now()
	conflicts, err := b.insert(ctx, rows)
	if err != nil {
		b.logger.Error("batch insert failed", "error", err, "count", len(rows))
		b.batchMu.Lock()
		b.metrics.Errors++
		b.batchMu.Unlock()
		return
	}

	inserted := len(rows) - conflicts
	b.batchMu.Lock()
	b.metrics.Inserts += int64(inserted)
	b.metrics.Conflicts += int64(conflicts)
	b.metrics.Flushes++
	b.batchMu.Unlock()
	b.onInserted(inserted)

	b.logger.Debug("flushed batch",
		"count", len(rows),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}
