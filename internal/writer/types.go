package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// DB is the part of *pgxpool.Pool the writers need.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterMetrics holds counters for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Skipped   int64 // Messages that could not be turned into a row
	Errors    int64 // Failed flushes
	Flushes   int64
}

// bookRow is a row for the book_snapshots table.
type bookRow struct {
	Symbol     string
	Nonce      int64
	ExchangeTs *time.Time
	RecordedAt time.Time
	Reconciled bool   // Produced by a snapshot reconcile rather than a delta
	Bids       []byte // JSONB
	Asks       []byte // JSONB
	BestBid    decimal.NullDecimal
	BestAsk    decimal.NullDecimal
	Spread     decimal.NullDecimal
}

// tradeRow is a row for the trades table.
type tradeRow struct {
	Symbol     string
	TradeID    string
	Price      decimal.Decimal
	Size       decimal.Decimal
	Side       string
	ExchangeTs *time.Time
	ReceivedAt time.Time
}

// tickerRow is a row for the tickers table.
type tickerRow struct {
	Symbol     string
	Kind       string
	ExchangeTs time.Time // Falls back to ReceivedAt when the feed omits it
	ReceivedAt time.Time
	Bid        decimal.NullDecimal
	BidSize    decimal.NullDecimal
	Ask        decimal.NullDecimal
	AskSize    decimal.NullDecimal
	Last       decimal.NullDecimal
	Volume     decimal.NullDecimal
}
