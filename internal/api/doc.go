// Package api provides the REST client for the exchange's public market data
// endpoints.
//
// Only the depth endpoint is used by booksync:
//
//	GET {base}/depth?symbol=btcusdt&limit=150
//
// which returns a full book listing tagged with the nonce it corresponds to.
// The client satisfies engine.SnapshotSource, so it can replace the
// websocket snapshot command when the feed's snapshot channel is unreliable.
package api
