package writer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/router"
)

// TradeWriter consumes TradeMsg from the router buffer and writes to the trades table.
type TradeWriter struct {
	*batcher[router.TradeMsg, tradeRow]
	db DB
}

// NewTradeWriter creates a new TradeWriter.
func NewTradeWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[router.TradeMsg],
	db DB,
	m *metrics.Metrics,
	logger *slog.Logger,
) *TradeWriter {
	w := &TradeWriter{
		batcher: newBatcher[router.TradeMsg, tradeRow]("trade", cfg, input, logger),
		db:      db,
	}
	w.transform = w.transformTrade
	w.insert = w.batchInsert
	w.onInserted = m.AddArchiveRows
	return w
}

// transformTrade converts a TradeMsg to a tradeRow. Trades without an
// exchange id get a random one so they are still archived.
func (w *TradeWriter) transformTrade(msg router.TradeMsg) (tradeRow, bool) {
	if msg.Price.Sign() <= 0 || msg.Size.Sign() <= 0 {
		return tradeRow{}, false
	}

	id := msg.TradeID
	if id == "" {
		id = uuid.NewString()
	}

	return tradeRow{
		Symbol:     msg.Symbol,
		TradeID:    id,
		Price:      msg.Price,
		Size:       msg.Size,
		Side:       msg.Side,
		ExchangeTs: optionalTime(msg.Timestamp),
		ReceivedAt: msg.ReceivedAt,
	}, true
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *TradeWriter) batchInsert(ctx context.Context, rows []tradeRow) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO trades (symbol, trade_id, price, size, side, exchange_ts, received_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol, trade_id) DO NOTHING
		`, r.Symbol, r.TradeID, r.Price, r.Size, r.Side, r.ExchangeTs, r.ReceivedAt)
	}
	return sendBatch(ctx, w.db, batch)
}
