package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rickgao/booksync/internal/connection"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/model"
)

// BookHandler consumes depth deltas in arrival order.
type BookHandler interface {
	HandleDelta(d model.Delta)
}

// Router classifies raw feed messages and dispatches them by family.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router and closes its buffers.
	Stop(ctx context.Context) error

	// Buffers returns output buffers for downstream consumers.
	Buffers() RouterBuffers

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterBuffers provides access to output buffers.
type RouterBuffers struct {
	Ticker   *GrowableBuffer[TickerMsg]
	Trade    *GrowableBuffer[TradeMsg]
	Candle   *GrowableBuffer[CandleMsg]
	Unrouted *GrowableBuffer[connection.RawMessage]
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64
	BookDeltas       int64
	MessagesRouted   int64
	ParseErrors      int64
	Unrouted         int64
	Responses        int64 // Command responses completed in stream order
	TickerBuffer     BufferStats
	TradeBuffer      BufferStats
	CandleBuffer     BufferStats
}

// router is the internal implementation.
type router struct {
	cfg     RouterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	input <-chan connection.RawMessage
	books BookHandler

	tickerBuf   *GrowableBuffer[TickerMsg]
	tradeBuf    *GrowableBuffer[TradeMsg]
	candleBuf   *GrowableBuffer[CandleMsg]
	unroutedBuf *GrowableBuffer[connection.RawMessage]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	received    int64
	bookDeltas  int64
	routed      int64
	parseErrors int64
	unrouted    int64
	responses   int64
}

// NewRouter creates a Message Router that hands book deltas to books and
// buffers every other family. m may be nil.
func NewRouter(cfg RouterConfig, input <-chan connection.RawMessage, books BookHandler, m *metrics.Metrics, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:         cfg,
		logger:      logger.With("component", "router"),
		metrics:     m,
		input:       input,
		books:       books,
		tickerBuf:   NewGrowableBuffer[TickerMsg](cfg.TickerBufferSize),
		tradeBuf:    NewGrowableBuffer[TradeMsg](cfg.TradeBufferSize),
		candleBuf:   NewGrowableBuffer[CandleMsg](cfg.CandleBufferSize),
		unroutedBuf: NewGrowableBuffer[connection.RawMessage](cfg.UnroutedBufferSize),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started",
		"ticker_buffer", r.cfg.TickerBufferSize,
		"trade_buffer", r.cfg.TradeBufferSize,
		"candle_buffer", r.cfg.CandleBufferSize,
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	r.tickerBuf.Close()
	r.tradeBuf.Close()
	r.candleBuf.Close()
	r.unroutedBuf.Close()

	return nil
}

// Buffers returns output buffers.
func (r *router) Buffers() RouterBuffers {
	return RouterBuffers{
		Ticker:   r.tickerBuf,
		Trade:    r.tradeBuf,
		Candle:   r.candleBuf,
		Unrouted: r.unroutedBuf,
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived: r.received,
		BookDeltas:       r.bookDeltas,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		Unrouted:         r.unrouted,
		Responses:        r.responses,
		TickerBuffer:     r.tickerBuf.Stats(),
		TradeBuffer:      r.tradeBuf.Stats(),
		CandleBuffer:     r.candleBuf.Stats(),
	}
}

// routeLoop is the main routing goroutine. Book deltas are handed over
// synchronously and snapshot responses are completed in place, so the engine
// sees both in wire order.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route parses and routes a single message.
func (r *router) route(raw connection.RawMessage) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	// Every earlier delta has reached the engine, so the snapshot can be
	// reconciled against a complete pending cache.
	if raw.IsResponse() {
		raw.Complete()
		r.mu.Lock()
		r.responses++
		r.mu.Unlock()
		return
	}

	var env envelope
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		r.logger.Warn("failed to parse envelope", "error", err)
		r.countParseError()
		return
	}

	route, ok := Classify(env.Channel)
	if !ok {
		r.passthrough(raw, env.Channel)
		return
	}
	r.metrics.ObserveRoute(route.Family.String())

	var err error
	switch route.Family {
	case FamilyBook:
		err = r.routeDepth(raw, env, route)
	case FamilyTicker:
		err = r.routeTicker(raw, env, route)
	case FamilyTrade:
		err = r.routeTrade(raw, env, route)
	case FamilyCandle:
		err = r.routeCandle(raw, env, route)
	}

	if err != nil {
		r.logger.Warn("failed to parse message",
			"family", route.Family.String(),
			"channel", env.Channel,
			"error", err,
		)
		r.countParseError()
	}
}

func (r *router) routeDepth(raw connection.RawMessage, env envelope, route Route) error {
	var wire depthWire
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		return err
	}

	r.books.HandleDelta(model.Delta{
		Channel:   env.Channel,
		Symbol:    route.Symbol,
		Seq:       wire.Seq,
		PrevSeq:   wire.PrevSeq,
		Bids:      model.LevelsFromPairs(wire.Bids),
		Asks:      model.LevelsFromPairs(wire.Asks),
		Timestamp: model.TimeFromMillis(env.Ts),
	})

	r.mu.Lock()
	r.bookDeltas++
	r.routed++
	r.mu.Unlock()
	return nil
}

func (r *router) routeTicker(raw connection.RawMessage, env envelope, route Route) error {
	var wire tickerWire
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		return err
	}

	r.sent(r.tickerBuf.Send(TickerMsg{
		Symbol:     route.Symbol,
		Kind:       route.Kind,
		Bid:        wire.Bid,
		BidSize:    wire.BidSize,
		Ask:        wire.Ask,
		AskSize:    wire.AskSize,
		Last:       wire.Last,
		Volume:     wire.Volume,
		Timestamp:  model.TimeFromMillis(env.Ts),
		ReceivedAt: raw.ReceivedAt,
	}))
	return nil
}

func (r *router) routeTrade(raw connection.RawMessage, env envelope, route Route) error {
	var wire tradeWire
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		return err
	}

	r.sent(r.tradeBuf.Send(TradeMsg{
		Symbol:     route.Symbol,
		TradeID:    wire.TradeID,
		Price:      wire.Price,
		Size:       wire.Size,
		Side:       wire.Side,
		Timestamp:  model.TimeFromMillis(env.Ts),
		ReceivedAt: raw.ReceivedAt,
	}))
	return nil
}

func (r *router) routeCandle(raw connection.RawMessage, env envelope, route Route) error {
	var wire candleWire
	if err := json.Unmarshal(raw.Data, &wire); err != nil {
		return err
	}

	r.sent(r.candleBuf.Send(CandleMsg{
		Symbol:     route.Symbol,
		Interval:   route.Detail,
		Open:       wire.Open,
		High:       wire.High,
		Low:        wire.Low,
		Close:      wire.Close,
		Volume:     wire.Volume,
		Timestamp:  model.TimeFromMillis(env.Ts),
		ReceivedAt: raw.ReceivedAt,
	}))
	return nil
}

// passthrough forwards an unclassifiable message unchanged.
func (r *router) passthrough(raw connection.RawMessage, channel string) {
	r.metrics.ObserveRoute(FamilyUnknown.String())
	if channel != "" {
		r.logger.Debug("unrouted channel", "channel", channel)
	}
	r.unroutedBuf.Send(raw)

	r.mu.Lock()
	r.unrouted++
	r.mu.Unlock()
}

func (r *router) sent(ok bool) {
	if !ok {
		return
	}
	r.mu.Lock()
	r.routed++
	r.mu.Unlock()
}

func (r *router) countParseError() {
	r.mu.Lock()
	r.parseErrors++
	r.mu.Unlock()
}
