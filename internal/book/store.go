package book

import (
	"errors"
	"time"

	"github.com/rickgao/booksync/internal/model"
)

// Rejection reasons returned by Store.Check.
var (
	ErrNotSeeded   = errors.New("book not seeded by a snapshot")
	ErrOutdated    = errors.New("delta sequence at or below book nonce")
	ErrSequenceGap = errors.New("delta prev sequence ahead of book nonce")
)

// Store is the order book of a single symbol.
type Store struct {
	symbol string
	bids   *LevelSet
	asks   *LevelSet

	nonce     int64
	seeded    bool
	timestamp time.Time
}

// NewStore creates an unseeded store for symbol.
func NewStore(symbol string) *Store {
	return &Store{
		symbol: symbol,
		bids:   NewLevelSet(),
		asks:   NewLevelSet(),
	}
}

// Symbol returns the symbol the store tracks.
func (s *Store) Symbol() string {
	return s.symbol
}

// Reset replaces both sides with the snapshot contents and adopts its nonce,
// whatever the previous nonce was.
func (s *Store) Reset(snap model.Snapshot) {
	s.bids.replace(snap.Bids)
	s.asks.replace(snap.Asks)
	s.nonce = snap.Nonce
	s.seeded = true
	s.timestamp = snap.Timestamp
}

// Clear drops every level and makes the nonce undefined again.
func (s *Store) Clear() {
	s.bids.replace(nil)
	s.asks.replace(nil)
	s.nonce = 0
	s.seeded = false
	s.timestamp = time.Time{}
}

// Nonce returns the sequence of the last applied message.
// ok is false until a snapshot has been applied.
func (s *Store) Nonce() (nonce int64, ok bool) {
	return s.nonce, s.seeded
}

// Seeded reports whether a snapshot has been applied.
func (s *Store) Seeded() bool {
	return s.seeded
}

// Timestamp returns the timestamp of the last applied message.
func (s *Store) Timestamp() time.Time {
	return s.timestamp
}

// Check reports why d would be rejected, or nil if it would apply.
func (s *Store) Check(d model.Delta) error {
	if !s.seeded {
		return ErrNotSeeded
	}
	if d.Seq <= s.nonce {
		return ErrOutdated
	}
	if d.PrevSeq != nil && *d.PrevSeq > s.nonce {
		return ErrSequenceGap
	}
	return nil
}

// ApplyDelta applies d if Check accepts it and reports whether it did.
// A rejected delta leaves the store unchanged.
func (s *Store) ApplyDelta(d model.Delta) bool {
	if s.Check(d) != nil {
		return false
	}

	for _, l := range d.Bids {
		s.bids.Upsert(l.Price, l.Size)
	}
	for _, l := range d.Asks {
		s.asks.Upsert(l.Price, l.Size)
	}

	s.nonce = d.Seq
	s.timestamp = d.Timestamp
	return true
}

// View returns a sorted, depth-limited copy of the book.
func (s *Store) View(limit int) View {
	return View{
		Symbol:    s.symbol,
		Bids:      s.bids.Sorted(true, limit),
		Asks:      s.asks.Sorted(false, limit),
		Nonce:     s.nonce,
		Timestamp: s.timestamp,
	}
}
