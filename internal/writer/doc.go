// Package writer implements batch writers for the append-only archive.
//
// Writers:
//   - BookWriter: synced book views published by the engine (book_snapshots)
//   - TradeWriter: public trades from the router (trades)
//   - TickerWriter: ticker, detail and bbo updates from the router (tickers)
//
// Every writer drains a router.GrowableBuffer, accumulates rows, and flushes
// them with one pgx batch per flush using INSERT ... ON CONFLICT DO NOTHING.
// Prices and sizes are stored as NUMERIC, level lists as JSONB
// [["price","size"], ...].
package writer
