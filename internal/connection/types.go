package connection

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrCommandRejected = errors.New("command rejected")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a message from the Session to the Message Router.
//
// Snapshot responses travel the same queue as data so they keep their wire
// position. The consumer must call Complete on them once every earlier
// message has been handled.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time

	complete func()
}

// IsResponse reports whether the message answers a pending command.
func (m RawMessage) IsResponse() bool {
	return m.complete != nil
}

// Complete delivers the response to the command waiting for it.
// It is a no-op for data messages.
func (m RawMessage) Complete() {
	if m.complete != nil {
		m.complete()
	}
}

// Command names.
const (
	CmdSubscribe   = "subscribe"
	CmdUnsubscribe = "unsubscribe"
	CmdSnapshot    = "snapshot"
)

// Response types.
const (
	RespSubscribed   = "subscribed"
	RespUnsubscribed = "unsubscribed"
	RespSnapshot     = "snapshot"
	RespError        = "error"
)

// Command is a WebSocket command to send to the server.
type Command struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// ChannelParams are parameters for subscribe and unsubscribe.
type ChannelParams struct {
	Channel string `json:"channel"`
}

// SnapshotParams are parameters for an in-band snapshot request.
type SnapshotParams struct {
	Symbol string `json:"symbol"`
	Limit  int    `json:"limit,omitempty"`
}

// Response is a command response from the server.
type Response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorMsg is the message content for an "error" response.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SnapshotData is the payload of a "snapshot" response.
type SnapshotData struct {
	Symbol string              `json:"symbol"`
	Nonce  int64               `json:"nonce"`
	Ts     int64               `json:"ts"` // Unix milliseconds
	Bids   [][]decimal.Decimal `json:"bids"`
	Asks   [][]decimal.Decimal `json:"asks"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL
	APIKey           string        // Sent as a bearer token when set
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration
	BufferSize       int // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       10000,
	}
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Client            ClientConfig
	CommandTimeout    time.Duration // Timeout for subscribe/unsubscribe/snapshot commands
	ReconnectBaseWait time.Duration // First reconnect delay
	ReconnectMaxWait  time.Duration // Cap on reconnect delay
	MessageBufferSize int           // Buffer size for the output message channel
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Client:            DefaultClientConfig(),
		CommandTimeout:    10 * time.Second,
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		MessageBufferSize: 100000,
	}
}

// SessionStats provides statistics about the session.
type SessionStats struct {
	Connected       bool
	Subscriptions   int
	Reconnects      int64
	PendingCommands int
}
