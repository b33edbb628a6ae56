package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Book Types
// -----------------------------------------------------------------------------

// Level is a single price level. Size zero is a tombstone.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// IsTombstone reports whether the level removes its price.
func (l Level) IsTombstone() bool {
	return l.Size.Sign() <= 0
}

// Delta is an incremental book update for one symbol.
type Delta struct {
	Channel   string    // Topic the delta arrived on (e.g. "market.btcusdt.depth")
	Symbol    string    // Lower-case symbol extracted from the channel
	Seq       int64     // Sequence number of this message
	PrevSeq   *int64    // Sequence this message builds on, nil if not provided
	Bids      []Level   // Changed bid levels
	Asks      []Level   // Changed ask levels
	Timestamp time.Time // Exchange timestamp
}

// HasPrevSeq reports whether the delta carries an ordering precondition.
func (d Delta) HasPrevSeq() bool {
	return d.PrevSeq != nil
}

// Boundary returns the last sequence a book must already contain for this
// delta to apply cleanly: PrevSeq when present, otherwise Seq-1.
func (d Delta) Boundary() int64 {
	if d.PrevSeq != nil {
		return *d.PrevSeq
	}
	return d.Seq - 1
}

// Snapshot is a full point-in-time listing of a symbol's book.
type Snapshot struct {
	Symbol    string
	Bids      []Level
	Asks      []Level
	Nonce     int64     // Sequence number the snapshot corresponds to
	Timestamp time.Time // Exchange timestamp, zero if not provided
	Source    string    // "ws" or "rest"
}

// Snapshot sources.
const (
	SourceWS   = "ws"
	SourceREST = "rest"
)

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// LevelsFromPairs converts wire pairs [[price, size], ...] to levels.
// Pairs with fewer than two elements are skipped.
func LevelsFromPairs(pairs [][]decimal.Decimal) []Level {
	result := make([]Level, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		result = append(result, Level{Price: p[0], Size: p[1]})
	}
	return result
}

// PairsFromLevels is the inverse of LevelsFromPairs.
func PairsFromLevels(levels []Level) [][]decimal.Decimal {
	result := make([][]decimal.Decimal, len(levels))
	for i, l := range levels {
		result[i] = []decimal.Decimal{l.Price, l.Size}
	}
	return result
}

// TimeFromMillis converts exchange milliseconds to UTC time. Zero stays zero.
func TimeFromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SeqPtr returns a pointer to seq, for building deltas with a PrevSeq.
func SeqPtr(seq int64) *int64 {
	return &seq
}
