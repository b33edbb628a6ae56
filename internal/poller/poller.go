package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/engine"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/subscription"
)

// Books exposes the engine state the poller reads.
type Books interface {
	Status() []engine.Status
	Book(symbol string, limit int) (book.View, bool)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Audit interval (default: 5m)
	Concurrency int           // Max concurrent snapshot requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
	Depth       int           // Levels compared per side (default: 20)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		Depth:       20,
	}
}

// CycleStats summarises one audit pass.
type CycleStats struct {
	Checked    int
	Matched    int64
	Mismatched int64
	Skewed     int64
	Errors     int64
	Duration   time.Duration
}

// Poller periodically compares synced books with fresh snapshots.
type Poller struct {
	cfg     Config
	source  engine.SnapshotSource
	books   Books
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, source engine.SnapshotSource, books Books, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Depth <= 0 {
		cfg.Depth = def.Depth
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		books:   books,
		metrics: m,
		logger:  logger,
	}
}

// Start begins the audit loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("book auditor started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
		"depth", p.cfg.Depth,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("book auditor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Books are rarely synced at startup, so the first pass waits a full interval.
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.auditAll(p.ctx)
		}
	}
}

// auditAll checks every synced book with bounded concurrency.
func (p *Poller) auditAll(ctx context.Context) CycleStats {
	start := time.Now()

	var symbols []string
	for _, st := range p.books.Status() {
		if st.State == subscription.StateSynced {
			symbols = append(symbols, st.Symbol)
		}
	}
	if len(symbols) == 0 {
		p.logger.Debug("no synced books to audit")
		return CycleStats{}
	}

	var matched, mismatched, skewed, errs atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := p.audit(gctx, symbol)
			p.metrics.ObserveAudit(res.Outcome)
			switch res.Outcome {
			case metrics.AuditMatch:
				matched.Add(1)
			case metrics.AuditMismatch:
				mismatched.Add(1)
				p.logger.Warn("book drift detected",
					"symbol", symbol,
					"nonce", res.LocalNonce,
					"side", res.Side,
					"level", res.Index,
				)
			case metrics.AuditSkewed:
				skewed.Add(1)
				p.logger.Debug("audit snapshot at different nonce",
					"symbol", symbol,
					"local_nonce", res.LocalNonce,
					"remote_nonce", res.RemoteNonce,
				)
			default:
				errs.Add(1)
				p.logger.Warn("failed to audit book", "symbol", symbol, "err", res.Err)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := CycleStats{
		Checked:    len(symbols),
		Matched:    matched.Load(),
		Mismatched: mismatched.Load(),
		Skewed:     skewed.Load(),
		Errors:     errs.Load(),
		Duration:   time.Since(start),
	}
	p.logger.Info("audit cycle complete",
		"books", stats.Checked,
		"matched", stats.Matched,
		"mismatched", stats.Mismatched,
		"skewed", stats.Skewed,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats
}

// audit fetches one snapshot and compares it with the local book.
func (p *Poller) audit(ctx context.Context, symbol string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	snap, err := p.source.RequestSnapshot(ctx, symbol, p.cfg.Depth)
	if err != nil {
		return Result{Outcome: metrics.AuditError, Err: err}
	}

	// The book may have resynced or been dropped while the request was in flight.
	local, ok := p.books.Book(symbol, p.cfg.Depth)
	if !ok {
		return Result{Outcome: metrics.AuditError, Err: errNotSynced}
	}
	return Compare(local, snap, p.cfg.Depth)
}
