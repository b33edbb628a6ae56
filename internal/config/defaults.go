package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestTimeout        = 10 * time.Second
	DefaultRestRetries        = 3
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultCommandTimeout     = 10 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultFeedBufferSize     = 100000

	DefaultMaxAttempts     = 3
	DefaultSnapshotTimeout = 10 * time.Second
	DefaultSnapshotSource  = SourceWS

	DefaultTickerBufferSize   = 1000
	DefaultTradeBufferSize    = 1000
	DefaultCandleBufferSize   = 500
	DefaultUnroutedBufferSize = 100

	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 4
	DefaultMinConns      = 1
	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
	DefaultBufferSize    = 10000

	DefaultAuditInterval    = 5 * time.Minute
	DefaultAuditConcurrency = 4
	DefaultAuditTimeout     = 10 * time.Second
	DefaultAuditDepth       = 20

	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"

	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 14
)

// Snapshot sources.
const (
	SourceWS   = "ws"
	SourceREST = "rest"
)

// ApplyDefaults fills unset fields. Load* call it; configs built in code
// must call it before Validate.
func (c *Config) ApplyDefaults() {
	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	// Feed defaults
	if c.Feed.RestTimeout == 0 {
		c.Feed.RestTimeout = DefaultRestTimeout
	}
	if c.Feed.RestRetries == 0 {
		c.Feed.RestRetries = DefaultRestRetries
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Feed.CommandTimeout == 0 {
		c.Feed.CommandTimeout = DefaultCommandTimeout
	}
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Sync defaults
	if c.Sync.MaxAttempts == nil {
		n := DefaultMaxAttempts
		c.Sync.MaxAttempts = &n
	}
	if c.Sync.SnapshotTimeout == 0 {
		c.Sync.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if c.Sync.SnapshotSource == "" {
		c.Sync.SnapshotSource = DefaultSnapshotSource
	}

	// Router defaults
	if c.Router.TickerBufferSize == 0 {
		c.Router.TickerBufferSize = DefaultTickerBufferSize
	}
	if c.Router.TradeBufferSize == 0 {
		c.Router.TradeBufferSize = DefaultTradeBufferSize
	}
	if c.Router.CandleBufferSize == 0 {
		c.Router.CandleBufferSize = DefaultCandleBufferSize
	}
	if c.Router.UnroutedBufferSize == 0 {
		c.Router.UnroutedBufferSize = DefaultUnroutedBufferSize
	}

	// Archive defaults
	applyDBDefaults(&c.Archive.Database)
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}

	// Audit defaults
	if c.Audit.Interval == 0 {
		c.Audit.Interval = DefaultAuditInterval
	}
	if c.Audit.Concurrency == 0 {
		c.Audit.Concurrency = DefaultAuditConcurrency
	}
	if c.Audit.Timeout == 0 {
		c.Audit.Timeout = DefaultAuditTimeout
	}
	if c.Audit.Depth == 0 {
		c.Audit.Depth = DefaultAuditDepth
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
