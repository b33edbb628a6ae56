// Package engine keeps one order book per subscribed symbol in sync with a
// snapshot-plus-delta feed.
//
// Watch subscribes the symbol's depth channel, requests a snapshot and
// buffers every delta that arrives meanwhile. When the snapshot lands it is
// checked against the oldest buffered delta: a snapshot older than that
// delta's predecessor is stale and triggers a bounded number of fresh
// requests, otherwise the book is seeded and the buffer replayed on top.
// After that, deltas apply live and each change is handed to the Watcher.
//
// All book state is guarded by a single mutex. Snapshot round trips and
// retry delays run on their own goroutines and re-enter under the lock,
// identifying their channel by name and generation only.
package engine
