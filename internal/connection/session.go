package connection

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"

	"github.com/rickgao/booksync/internal/model"
)

// Session keeps one feed connection alive and multiplexes commands over it.
//
// Subscriptions do not survive a reconnect: on disconnect every pending
// command fails with ErrNotConnected, the OnDisconnect callback runs, and
// after a successful reconnect OnReconnect runs so the owner can subscribe
// again.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	out chan RawMessage

	mu         sync.RWMutex
	client     Client
	connected  bool
	channels   map[string]struct{}
	reconnects int64

	onDisconnect func(error)
	onReconnect  func()

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[int64]chan Response
	cmdID     int64 // Atomic counter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession creates a Session. Call Start to connect.
func NewSession(cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultSessionConfig().CommandTimeout
	}

	return &Session{
		cfg:      cfg,
		logger:   logger.With("component", "session"),
		out:      make(chan RawMessage, cfg.MessageBufferSize),
		channels: make(map[string]struct{}),
		pending:  make(map[int64]chan Response),
	}
}

// OnDisconnect registers fn to run after the connection drops. Call before Start.
func (s *Session) OnDisconnect(fn func(error)) {
	s.onDisconnect = fn
}

// OnReconnect registers fn to run after a reconnect succeeds. Call before Start.
func (s *Session) OnReconnect(fn func()) {
	s.onReconnect = fn
}

// Start dials the feed. The first connection attempt is not retried.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.connect(); err != nil {
		s.cancel()
		return fmt.Errorf("connect: %w", err)
	}

	s.logger.Info("session started", "url", s.cfg.Client.URL)
	return nil
}

// Stop closes the connection and waits for background goroutines.
// The Messages channel is closed once they have exited.
func (s *Session) Stop(ctx context.Context) error {
	s.logger.Info("stopping session")

	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	client := s.client
	s.connected = false
	s.mu.Unlock()
	if client != nil {
		client.Close()
	}
	s.failPending()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(s.out)
		s.logger.Info("session stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("session stop timed out")
		return ctx.Err()
	}
}

// Messages returns data messages and snapshot responses, in wire order, for
// the Message Router.
func (s *Session) Messages() <-chan RawMessage {
	return s.out
}

// IsConnected reports whether the feed connection is up.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Stats returns current session statistics.
func (s *Session) Stats() SessionStats {
	s.mu.RLock()
	stats := SessionStats{
		Connected:     s.connected,
		Subscriptions: len(s.channels),
		Reconnects:    s.reconnects,
	}
	s.mu.RUnlock()

	s.pendingMu.Lock()
	stats.PendingCommands = len(s.pending)
	s.pendingMu.Unlock()
	return stats
}

// Subscribe subscribes channel. Subscribing an active channel is a no-op.
func (s *Session) Subscribe(ctx context.Context, channel string) error {
	s.mu.RLock()
	_, active := s.channels[channel]
	s.mu.RUnlock()
	if active {
		return nil
	}

	if _, err := s.command(ctx, CmdSubscribe, ChannelParams{Channel: channel}); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	s.mu.Lock()
	s.channels[channel] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("subscribed", "channel", channel)
	return nil
}

// Unsubscribe unsubscribes channel. The channel stays tracked when the
// command fails, so a later Subscribe is still a no-op.
func (s *Session) Unsubscribe(ctx context.Context, channel string) error {
	if _, err := s.command(ctx, CmdUnsubscribe, ChannelParams{Channel: channel}); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", channel, err)
	}

	s.mu.Lock()
	delete(s.channels, channel)
	s.mu.Unlock()

	s.logger.Debug("unsubscribed", "channel", channel)
	return nil
}

// RequestSnapshot asks the server for symbol's book over the feed connection.
// The response is queued on Messages behind everything read before it and
// only returns once the consumer has called Complete on it.
func (s *Session) RequestSnapshot(ctx context.Context, symbol string, limit int) (model.Snapshot, error) {
	resp, err := s.command(ctx, CmdSnapshot, SnapshotParams{Symbol: symbol, Limit: limit})
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %s: %w", symbol, err)
	}
	if resp.Type != RespSnapshot {
		return model.Snapshot{}, fmt.Errorf("snapshot %s: unexpected response type %q", symbol, resp.Type)
	}

	var data SnapshotData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot %s: decode: %w", symbol, err)
	}

	return model.Snapshot{
		Symbol:    strings.ToLower(symbol),
		Bids:      model.LevelsFromPairs(data.Bids),
		Asks:      model.LevelsFromPairs(data.Asks),
		Nonce:     data.Nonce,
		Timestamp: model.TimeFromMillis(data.Ts),
		Source:    model.SourceWS,
	}, nil
}

// command sends a command and waits for its correlated response.
func (s *Session) command(ctx context.Context, name string, params interface{}) (Response, error) {
	s.mu.RLock()
	client, connected := s.client, s.connected
	s.mu.RUnlock()
	if !connected || client == nil {
		return Response{}, ErrNotConnected
	}

	id := atomic.AddInt64(&s.cmdID, 1)
	respCh := make(chan Response, 1)

	s.pendingMu.Lock()
	s.pending[id] = respCh
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	data, err := json.Marshal(Command{ID: id, Cmd: name, Params: params})
	if err != nil {
		return Response{}, err
	}
	if err := client.Send(data); err != nil {
		return Response{}, err
	}

	timer := time.NewTimer(s.cfg.CommandTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-s.ctx.Done():
		return Response{}, s.ctx.Err()
	case <-timer.C:
		return Response{}, ErrTimeout
	case resp, ok := <-respCh:
		if !ok {
			return Response{}, ErrNotConnected
		}
		if resp.Type == RespError {
			var errMsg ErrorMsg
			_ = json.Unmarshal(resp.Msg, &errMsg)
			return Response{}, fmt.Errorf("%w: %s: %s", ErrCommandRejected, errMsg.Code, errMsg.Message)
		}
		return resp, nil
	}
}

// connect dials a fresh client and starts its read loop.
func (s *Session) connect() error {
	client := NewClient(s.cfg.Client, s.logger)
	if err := client.Connect(s.ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.client = client
	s.connected = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(client)
	return nil
}

// readLoop reads one client until it fails or the session stops.
func (s *Session) readLoop(client Client) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case err := <-client.Errors():
			s.handleDisconnect(client, err)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}

			out := RawMessage{Data: msg.Data, ReceivedAt: msg.ReceivedAt}
			if resp, ok := tryParseResponse(msg.Data); ok {
				if resp.Type != RespSnapshot {
					s.routeResponse(resp)
					continue
				}
				// A snapshot must not overtake deltas read before it.
				out.complete = func() { s.routeResponse(resp) }
			}

			select {
			case s.out <- out:
			case <-s.ctx.Done():
				return
			}
		}
	}
}

func (s *Session) handleDisconnect(client Client, err error) {
	s.logger.Warn("connection lost", "error", err)

	s.mu.Lock()
	s.connected = false
	s.channels = make(map[string]struct{})
	s.mu.Unlock()

	client.Close()
	s.failPending()

	if s.onDisconnect != nil {
		s.onDisconnect(err)
	}

	s.wg.Add(1)
	go s.reconnectLoop()
}

// reconnectLoop redials with exponential backoff until it succeeds or the
// session stops.
func (s *Session) reconnectLoop() {
	defer s.wg.Done()

	bo := backoff.NewExponentialBackOff()
	if s.cfg.ReconnectBaseWait > 0 {
		bo.InitialInterval = s.cfg.ReconnectBaseWait
	}
	if s.cfg.ReconnectMaxWait > 0 {
		bo.MaxInterval = s.cfg.ReconnectMaxWait
	}
	bo.Reset()

	for attempt := 1; ; attempt++ {
		wait := bo.NextBackOff()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}

		s.logger.Info("attempting reconnection", "attempt", attempt)

		if err := s.connect(); err != nil {
			s.logger.Warn("reconnection failed", "attempt", attempt, "error", err)
			continue
		}

		s.mu.Lock()
		s.reconnects++
		s.mu.Unlock()

		s.logger.Info("reconnected", "attempt", attempt)
		if s.onReconnect != nil {
			s.onReconnect()
		}
		return
	}
}

// tryParseResponse reports whether data is a command response.
func tryParseResponse(data []byte) (Response, bool) {
	if !bytes.Contains(data, []byte(`"id":`)) {
		return Response{}, false
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil || resp.ID == 0 {
		return Response{}, false
	}

	switch resp.Type {
	case RespSubscribed, RespUnsubscribed, RespSnapshot, RespError:
		return resp, true
	}
	return Response{}, false
}

// routeResponse sends a response to the waiting goroutine.
func (s *Session) routeResponse(resp Response) {
	s.pendingMu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.pendingMu.Unlock()

	if !ok {
		s.logger.Debug("response without pending command", "id", resp.ID, "type", resp.Type)
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// failPending wakes every waiting command with ErrNotConnected.
func (s *Session) failPending() {
	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[int64]chan Response)
	s.pendingMu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}
