package writer

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/router"
)

// TickerWriter consumes TickerMsg from the router buffer and writes to the tickers table.
type TickerWriter struct {
	*batcher[router.TickerMsg, tickerRow]
	db DB
}

// NewTickerWriter creates a new TickerWriter.
func NewTickerWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[router.TickerMsg],
	db DB,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TickerWriter {
	w := &TickerWriter{
		batcher: newBatcher[router.TickerMsg, tickerRow]("ticker", cfg, input, logger),
		db:      db,
	}
	w.transform = w.transformTicker
	w.insert = w.batchInsert
	w.onInserted = m.AddArchiveRows
	return w
}

// transformTicker converts a TickerMsg to a tickerRow.
func (w *TickerWriter) transformTicker(msg router.TickerMsg) (tickerRow, bool) {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = msg.ReceivedAt
	}
	if ts.IsZero() {
		return tickerRow{}, false
	}

	return tickerRow{
		Symbol:     msg.Symbol,
		Kind:       msg.Kind,
		ExchangeTs: ts,
		ReceivedAt: msg.ReceivedAt,
		Bid:        optionalDecimal(msg.Bid),
		BidSize:    optionalDecimal(msg.BidSize),
		Ask:        optionalDecimal(msg.Ask),
		AskSize:    optionalDecimal(msg.AskSize),
		Last:       optionalDecimal(msg.Last),
		Volume:     optionalDecimal(msg.Volume),
	}, true
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *TickerWriter) batchInsert(ctx context.Context, rows []tickerRow) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO tickers (symbol, kind, exchange_ts, received_at, bid, bid_size, ask, ask_size, last, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (symbol, kind, exchange_ts) DO NOTHING
		`, r.Symbol, r.Kind, r.ExchangeTs, r.ReceivedAt, r.Bid, r.BidSize, r.Ask, r.AskSize, r.Last, r.Volume)
	}
	return sendBatch(ctx, w.db, batch)
}
