// Package model defines shared data types used across the book sync service.
//
// Conventions:
//   - Prices and sizes: decimal.Decimal, never float64
//   - Sequence numbers: int64, strictly increasing per channel
//   - Timestamps: time.Time (UTC), converted from exchange milliseconds at the edge
//   - Levels: a size of exactly zero is a tombstone meaning "remove this price"
package model
