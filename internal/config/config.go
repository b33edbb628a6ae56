package config

import "time"

// Config is the root configuration for a booksync instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	Sync     SyncConfig     `yaml:"sync"`
	Router   RouterConfig   `yaml:"router"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this process in logs and metrics.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds exchange endpoint and transport settings.
type FeedConfig struct {
	WSURL   string `yaml:"ws_url"`
	RestURL string `yaml:"rest_url"`
	APIKey  string `yaml:"api_key"` // Optional bearer token for both endpoints

	RestTimeout time.Duration `yaml:"rest_timeout"`
	RestRetries int           `yaml:"rest_retries"`

	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	CommandTimeout     time.Duration `yaml:"command_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	BufferSize         int           `yaml:"buffer_size"`
}

// SyncConfig controls snapshot reconciliation.
type SyncConfig struct {
	// MaxAttempts is the number of stale snapshots tolerated before a channel
	// fails. Nil means the default; zero fails on the first stale snapshot.
	MaxAttempts     *int          `yaml:"max_attempts"`
	ResyncDelay     time.Duration `yaml:"resync_delay"`
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout"`
	SnapshotSource  string        `yaml:"snapshot_source"` // "ws" or "rest"
	ResyncOnGap     bool          `yaml:"resync_on_gap"`
	DefaultDepth    int           `yaml:"default_depth"`
	Symbols         []string      `yaml:"symbols"`
}

// Attempts returns MaxAttempts, or the default when unset.
func (s SyncConfig) Attempts() int {
	if s.MaxAttempts == nil {
		return DefaultMaxAttempts
	}
	return *s.MaxAttempts
}

// RouterConfig holds per-family output buffer sizes.
type RouterConfig struct {
	TickerBufferSize   int `yaml:"ticker_buffer_size"`
	TradeBufferSize    int `yaml:"trade_buffer_size"`
	CandleBufferSize   int `yaml:"candle_buffer_size"`
	UnroutedBufferSize int `yaml:"unrouted_buffer_size"`
}

// ArchiveConfig holds the optional book archive settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// AuditConfig controls the periodic comparison of synced books with REST
// snapshots. Requires feed.rest_url.
type AuditConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	Depth       int           `yaml:"depth"`
}

// MetricsConfig holds the HTTP server settings for /metrics, /health and
// /debug/books.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig controls the root logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Optional rotated log file, teed with stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
