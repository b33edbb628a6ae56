// Package book holds the per-symbol limit order book state.
//
// A Store pairs two LevelSets (bids and asks) with the sequence number of the
// last applied message. Deltas apply only on top of a seeded store and only in
// strictly increasing sequence order; everything else is rejected untouched.
// A PendingCache buffers deltas that arrive before the store has been seeded.
//
// Nothing in this package is safe for concurrent use. The engine owns each
// Store and PendingCache exclusively and serializes access to them.
package book
