package book

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/booksync/internal/model"
)

// View is a read-only, depth-limited copy of a book.
// Bids are sorted descending, asks ascending.
type View struct {
	Symbol    string        `json:"symbol"`
	Bids      []model.Level `json:"bids"`
	Asks      []model.Level `json:"asks"`
	Nonce     int64         `json:"nonce"`
	Timestamp time.Time     `json:"timestamp"`
}

// BestBid returns the highest bid.
func (v View) BestBid() (model.Level, bool) {
	if len(v.Bids) == 0 {
		return model.Level{}, false
	}
	return v.Bids[0], true
}

// BestAsk returns the lowest ask.
func (v View) BestAsk() (model.Level, bool) {
	if len(v.Asks) == 0 {
		return model.Level{}, false
	}
	return v.Asks[0], true
}

// Spread returns best ask minus best bid. ok is false when either side is empty.
func (v View) Spread() (decimal.Decimal, bool) {
	bid, okBid := v.BestBid()
	ask, okAsk := v.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}
