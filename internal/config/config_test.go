package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: booksync-test
feed:
  ws_url: wss://stream.example.com/ws
  rest_url: https://api.example.com/market
sync:
  max_attempts: 5
  resync_delay: 250ms
  snapshot_source: rest
  resync_on_gap: true
  default_depth: 20
  symbols: [btcusdt, ethusdt]
archive:
  enabled: true
  database:
    host: localhost
    name: books
    user: booksync
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "booksync-test" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "booksync-test")
	}
	if cfg.Feed.WSURL != "wss://stream.example.com/ws" {
		t.Errorf("Feed.WSURL = %q, want %q", cfg.Feed.WSURL, "wss://stream.example.com/ws")
	}
	if cfg.Sync.Attempts() != 5 {
		t.Errorf("Sync.Attempts() = %d, want %d", cfg.Sync.Attempts(), 5)
	}
	if cfg.Sync.ResyncDelay != 250*time.Millisecond {
		t.Errorf("Sync.ResyncDelay = %v, want %v", cfg.Sync.ResyncDelay, 250*time.Millisecond)
	}
	if cfg.Sync.SnapshotSource != SourceREST {
		t.Errorf("Sync.SnapshotSource = %q, want %q", cfg.Sync.SnapshotSource, SourceREST)
	}
	if !cfg.Sync.ResyncOnGap {
		t.Error("Sync.ResyncOnGap = false, want true")
	}
	if len(cfg.Sync.Symbols) != 2 || cfg.Sync.Symbols[1] != "ethusdt" {
		t.Errorf("Sync.Symbols = %v, want [btcusdt ethusdt]", cfg.Sync.Symbols)
	}
	if !cfg.Archive.Enabled || cfg.Archive.Database.Name != "books" {
		t.Errorf("Archive = %+v, want enabled with database books", cfg.Archive)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %v, want read config file error", err)
	}
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("instance: [unclosed"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_KEY", "secret123")
	t.Setenv("TEST_DB_PASSWORD", "hunter2")

	yaml := `
instance:
  id: booksync-test
feed:
  ws_url: wss://stream.example.com/ws
  api_key: ${TEST_FEED_KEY}
archive:
  database:
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.APIKey != "secret123" {
		t.Errorf("Feed.APIKey = %q, want %q", cfg.Feed.APIKey, "secret123")
	}
	if cfg.Archive.Database.Password != "hunter2" {
		t.Errorf("Archive.Database.Password = %q, want %q", cfg.Archive.Database.Password, "hunter2")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: booksync-test
feed:
  ws_url: wss://stream.example.com/ws
sync:
  symbols: [btcusdt]
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Sync.Attempts() != DefaultMaxAttempts {
		t.Errorf("Sync.Attempts() = %d, want default %d", cfg.Sync.Attempts(), DefaultMaxAttempts)
	}
	if cfg.Sync.SnapshotSource != DefaultSnapshotSource {
		t.Errorf("Sync.SnapshotSource = %q, want default %q", cfg.Sync.SnapshotSource, DefaultSnapshotSource)
	}
	if cfg.Sync.SnapshotTimeout != DefaultSnapshotTimeout {
		t.Errorf("Sync.SnapshotTimeout = %v, want default %v", cfg.Sync.SnapshotTimeout, DefaultSnapshotTimeout)
	}
	if cfg.Sync.ResyncOnGap {
		t.Error("Sync.ResyncOnGap should default to false")
	}
	if cfg.Feed.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("Feed.CommandTimeout = %v, want default %v", cfg.Feed.CommandTimeout, DefaultCommandTimeout)
	}
	if cfg.Router.CandleBufferSize != DefaultCandleBufferSize {
		t.Errorf("Router.CandleBufferSize = %d, want default %d", cfg.Router.CandleBufferSize, DefaultCandleBufferSize)
	}
	if cfg.Archive.Database.Port != DefaultDBPort {
		t.Errorf("Archive.Database.Port = %d, want default %d", cfg.Archive.Database.Port, DefaultDBPort)
	}
	if cfg.Audit.Enabled {
		t.Error("Audit.Enabled should default to false")
	}
	if cfg.Audit.Depth != DefaultAuditDepth {
		t.Errorf("Audit.Depth = %d, want default %d", cfg.Audit.Depth, DefaultAuditDepth)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestExplicitZeroAttempts(t *testing.T) {
	cfg, err := Parse([]byte("sync:\n  max_attempts: 0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg.applyDefaults()

	if cfg.Sync.Attempts() != 0 {
		t.Errorf("Sync.Attempts() = %d, want 0", cfg.Sync.Attempts())
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeTempFile(t, `
instance:
  id: booksync-test
feed:
  ws_url: wss://stream.example.com/ws
sync:
  symbols: [btcusdt]
`)
		if _, err := LoadAndValidate(path); err != nil {
			t.Fatalf("LoadAndValidate failed: %v", err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeTempFile(t, "instance:\n  id: booksync-test\n")
		_, err := LoadAndValidate(path)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.HasPrefix(err.Error(), "validate config: ") {
			t.Errorf("error = %q, want validate config prefix", err)
		}
	})
}

// validConfig returns a config with defaults applied that passes Validate.
func validConfig() Config {
	cfg := Config{
		Instance: InstanceConfig{ID: "test"},
		Feed:     FeedConfig{WSURL: "wss://stream.example.com/ws"},
		Sync:     SyncConfig{Symbols: []string{"btcusdt", "ethusdt"}},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *Config) { c.Feed.WSURL = "" },
			wantErr: `feed.ws_url must be a ws/wss URL, got ""`,
		},
		{
			name:    "http ws url",
			mutate:  func(c *Config) { c.Feed.WSURL = "http://stream.example.com" },
			wantErr: `feed.ws_url must be a ws/wss URL, got "http://stream.example.com"`,
		},
		{
			name: "reconnect delays inverted",
			mutate: func(c *Config) {
				c.Feed.ReconnectBaseDelay = 10 * time.Second
				c.Feed.ReconnectMaxDelay = time.Second
			},
			wantErr: "feed.reconnect_max_delay (1s) cannot be less than reconnect_base_delay (10s)",
		},
		{
			name: "negative max attempts",
			mutate: func(c *Config) {
				n := -1
				c.Sync.MaxAttempts = &n
			},
			wantErr: "sync.max_attempts must be >= 0",
		},
		{
			name:    "unknown snapshot source",
			mutate:  func(c *Config) { c.Sync.SnapshotSource = "ftp" },
			wantErr: `sync.snapshot_source must be "ws" or "rest", got "ftp"`,
		},
		{
			name:    "rest source without rest url",
			mutate:  func(c *Config) { c.Sync.SnapshotSource = SourceREST },
			wantErr: `feed.rest_url must be a http/https URL, got ""`,
		},
		{
			name: "rest source with rest url",
			mutate: func(c *Config) {
				c.Sync.SnapshotSource = SourceREST
				c.Feed.RestURL = "https://api.example.com"
			},
			wantErr: "",
		},
		{
			name:    "no symbols",
			mutate:  func(c *Config) { c.Sync.Symbols = nil },
			wantErr: "sync.symbols must list at least one symbol",
		},
		{
			name:    "duplicate symbols ignore case",
			mutate:  func(c *Config) { c.Sync.Symbols = []string{"btcusdt", "BTCUSDT"} },
			wantErr: `sync.symbols contains "btcusdt" more than once`,
		},
		{
			name:    "blank symbol",
			mutate:  func(c *Config) { c.Sync.Symbols = []string{"btcusdt", " "} },
			wantErr: "sync.symbols[1] is empty",
		},
		{
			name:    "negative default depth",
			mutate:  func(c *Config) { c.Sync.DefaultDepth = -1 },
			wantErr: "sync.default_depth must be >= 0",
		},
		{
			name:    "archive without host",
			mutate:  func(c *Config) { c.Archive.Enabled = true },
			wantErr: "archive.database.host is required",
		},
		{
			name: "archive min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 5, MinConns: 10}
			},
			wantErr: "archive.database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "disabled archive is not checked",
			mutate:  func(c *Config) { c.Archive.Database = DBConfig{} },
			wantErr: "",
		},
		{
			name:    "audit without rest url",
			mutate:  func(c *Config) { c.Audit.Enabled = true },
			wantErr: `audit requires feed.rest_url must be a http/https URL, got ""`,
		},
		{
			name: "audit with rest url",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Feed.RestURL = "https://api.example.com"
			},
			wantErr: "",
		},
		{
			name: "audit zero concurrency",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Feed.RestURL = "https://api.example.com"
				c.Audit.Concurrency = -1
			},
			wantErr: "audit.concurrency must be >= 1",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: `metrics.path must start with /, got "metrics"`,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
