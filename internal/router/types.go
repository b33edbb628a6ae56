package router

import (
	"time"

	"github.com/shopspring/decimal"
)

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	// Output buffer sizes
	TickerBufferSize   int // Default: 1000
	TradeBufferSize    int // Default: 1000
	CandleBufferSize   int // Default: 500
	UnroutedBufferSize int // Default: 100
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		TickerBufferSize:   1000,
		TradeBufferSize:    1000,
		CandleBufferSize:   500,
		UnroutedBufferSize: 100,
	}
}

// TickerMsg is a top-of-book / 24h statistics update.
type TickerMsg struct {
	Symbol     string
	Kind       string // "ticker", "detail" or "bbo"
	Bid        decimal.Decimal
	BidSize    decimal.Decimal
	Ask        decimal.Decimal
	AskSize    decimal.Decimal
	Last       decimal.Decimal
	Volume     decimal.Decimal
	Timestamp  time.Time
	ReceivedAt time.Time
}

// TradeMsg is a single public trade.
type TradeMsg struct {
	Symbol     string
	TradeID    string
	Price      decimal.Decimal
	Size       decimal.Decimal
	Side       string // "buy" or "sell" (taker side)
	Timestamp  time.Time
	ReceivedAt time.Time
}

// CandleMsg is an OHLCV bar.
type CandleMsg struct {
	Symbol     string
	Interval   string // topic detail, e.g. "1min"
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	Timestamp  time.Time
	ReceivedAt time.Time
}

// Wire types for JSON parsing

// envelope is decoded first to classify a message.
type envelope struct {
	Channel string `json:"channel"`
	Ts      int64  `json:"ts"` // Unix milliseconds
}

// depthWire is the wire format for depth deltas.
type depthWire struct {
	Seq     int64               `json:"seq"`
	PrevSeq *int64              `json:"prevSeq"`
	Bids    [][]decimal.Decimal `json:"bids"`
	Asks    [][]decimal.Decimal `json:"asks"`
}

// tickerWire is the wire format for ticker, detail and bbo messages.
type tickerWire struct {
	Bid     decimal.Decimal `json:"bid"`
	BidSize decimal.Decimal `json:"bidSize"`
	Ask     decimal.Decimal `json:"ask"`
	AskSize decimal.Decimal `json:"askSize"`
	Last    decimal.Decimal `json:"last"`
	Volume  decimal.Decimal `json:"vol"`
}

// tradeWire is the wire format for trade messages.
type tradeWire struct {
	TradeID string          `json:"tradeId"`
	Price   decimal.Decimal `json:"price"`
	Size    decimal.Decimal `json:"size"`
	Side    string          `json:"side"`
}

// candleWire is the wire format for kline messages.
type candleWire struct {
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"vol"`
}
