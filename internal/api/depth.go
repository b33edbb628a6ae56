package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/booksync/internal/model"
)

// DepthResponse is the body of GET /depth.
type DepthResponse struct {
	Symbol string              `json:"symbol"`
	Nonce  int64               `json:"nonce"`
	Ts     int64               `json:"ts"`
	Bids   [][]decimal.Decimal `json:"bids"`
	Asks   [][]decimal.Decimal `json:"asks"`
}

// GetDepth fetches the full book for symbol. A limit of zero or less lets the
// server pick its default depth.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (*DepthResponse, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	query := url.Values{}
	query.Set("symbol", strings.ToLower(symbol))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp DepthResponse
	if err := c.get(ctx, "/depth", query, &resp); err != nil {
		return nil, fmt.Errorf("get depth %s: %w", symbol, err)
	}
	return &resp, nil
}

// RequestSnapshot fetches the depth for symbol and converts it to a snapshot.
func (c *Client) RequestSnapshot(ctx context.Context, symbol string, limit int) (model.Snapshot, error) {
	resp, err := c.GetDepth(ctx, symbol, limit)
	if err != nil {
		return model.Snapshot{}, err
	}

	return model.Snapshot{
		Symbol:    strings.ToLower(symbol),
		Bids:      model.LevelsFromPairs(resp.Bids),
		Asks:      model.LevelsFromPairs(resp.Asks),
		Nonce:     resp.Nonce,
		Timestamp: model.TimeFromMillis(resp.Ts),
		Source:    model.SourceREST,
	}, nil
}
