package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := validateURL("feed.ws_url", c.Feed.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.Feed.RestRetries < 0 {
		return errors.New("feed.rest_retries must be >= 0")
	}
	if c.Feed.ReconnectMaxDelay < c.Feed.ReconnectBaseDelay {
		return fmt.Errorf("feed.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			c.Feed.ReconnectMaxDelay, c.Feed.ReconnectBaseDelay)
	}
	if c.Feed.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}

	if err := c.Sync.validate(); err != nil {
		return err
	}
	if c.Sync.SnapshotSource == SourceREST {
		if err := validateURL("feed.rest_url", c.Feed.RestURL, "http", "https"); err != nil {
			return err
		}
	}

	if c.Router.TickerBufferSize < 1 || c.Router.TradeBufferSize < 1 ||
		c.Router.CandleBufferSize < 1 || c.Router.UnroutedBufferSize < 1 {
		return errors.New("router buffer sizes must be >= 1")
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
	}

	if c.Audit.Enabled {
		if err := validateURL("feed.rest_url", c.Feed.RestURL, "http", "https"); err != nil {
			return fmt.Errorf("audit requires %w", err)
		}
		if c.Audit.Interval <= 0 || c.Audit.Timeout <= 0 {
			return errors.New("audit.interval and audit.timeout must be > 0")
		}
		if c.Audit.Concurrency < 1 {
			return errors.New("audit.concurrency must be >= 1")
		}
		if c.Audit.Depth < 1 {
			return errors.New("audit.depth must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (s *SyncConfig) validate() error {
	if s.Attempts() < 0 {
		return errors.New("sync.max_attempts must be >= 0")
	}
	if s.ResyncDelay < 0 {
		return errors.New("sync.resync_delay must be >= 0")
	}
	if s.SnapshotTimeout <= 0 {
		return errors.New("sync.snapshot_timeout must be > 0")
	}
	if s.SnapshotSource != SourceWS && s.SnapshotSource != SourceREST {
		return fmt.Errorf("sync.snapshot_source must be %q or %q, got %q", SourceWS, SourceREST, s.SnapshotSource)
	}
	if s.DefaultDepth < 0 {
		return errors.New("sync.default_depth must be >= 0")
	}
	if len(s.Symbols) == 0 {
		return errors.New("sync.symbols must list at least one symbol")
	}

	seen := make(map[string]bool, len(s.Symbols))
	for i, sym := range s.Symbols {
		key := strings.ToLower(strings.TrimSpace(sym))
		if key == "" {
			return fmt.Errorf("sync.symbols[%d] is empty", i)
		}
		if seen[key] {
			return fmt.Errorf("sync.symbols contains %q more than once", key)
		}
		seen[key] = true
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be a %s URL, got %q", field, strings.Join(schemes, "/"), raw)
}
