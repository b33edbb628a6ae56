package writer

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/booksync/internal/engine"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/router"
)

// BookWriter archives engine updates to the book_snapshots table. One row is
// written per (symbol, nonce); repeats are ignored.
type BookWriter struct {
	*batcher[engine.Update, bookRow]
	db DB
}

// NewBookWriter creates a BookWriter. The engine publishes into input via
// Engine.SetPublisher.
func NewBookWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[engine.Update],
	db DB,
	m *metrics.Metrics,
	logger *slog.Logger,
) *BookWriter {
	w := &BookWriter{
		batcher: newBatcher[engine.Update, bookRow]("book", cfg, input, logger),
		db:      db,
	}
	w.transform = w.transformUpdate
	w.insert = w.batchInsert
	w.onInserted = m.AddArchiveRows
	return w
}

// transformUpdate converts an engine update to a bookRow.
func (w *BookWriter) transformUpdate(u engine.Update) (bookRow, bool) {
	bids, err := levelsJSON(u.View.Bids)
	if err != nil {
		w.logger.Warn("encode bids", "symbol", u.View.Symbol, "error", err)
		return bookRow{}, false
	}
	asks, err := levelsJSON(u.View.Asks)
	if err != nil {
		w.logger.Warn("encode asks", "symbol", u.View.Symbol, "error", err)
		return bookRow{}, false
	}

	row := bookRow{
		Symbol:     u.View.Symbol,
		Nonce:      u.View.Nonce,
		ExchangeTs: optionalTime(u.View.Timestamp),
		RecordedAt: u.UpdatedAt,
		Reconciled: u.Snapshot,
		Bids:       bids,
		Asks:       asks,
	}
	if bid, ok := u.View.BestBid(); ok {
		row.BestBid.Decimal, row.BestBid.Valid = bid.Price, true
	}
	if ask, ok := u.View.BestAsk(); ok {
		row.BestAsk.Decimal, row.BestAsk.Valid = ask.Price, true
	}
	if spread, ok := u.View.Spread(); ok {
		row.Spread.Decimal, row.Spread.Valid = spread, true
	}
	return row, true
}

// batchInsert inserts rows with ON CONFLICT DO NOTHING.
func (w *BookWriter) batchInsert(ctx context.Context, rows []bookRow) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO book_snapshots (symbol, nonce, exchange_ts, recorded_at, reconciled, bids, asks, best_bid, best_ask, spread)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (symbol, nonce) DO NOTHING
		`, r.Symbol, r.Nonce, r.ExchangeTs, r.RecordedAt, r.Reconciled, r.Bids, r.Asks, r.BestBid, r.BestAsk, r.Spread)
	}
	return sendBatch(ctx, w.db, batch)
}
