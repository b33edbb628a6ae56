// streamtest watches one symbol's book and prints every synced view as JSON.
// Usage: go run ./cmd/streamtest --config configs/booksync.yaml --symbol btcusdt
//
// --url overrides feed.ws_url, so a config file is optional:
//
//	go run ./cmd/streamtest --url wss://stream.example.com/ws --symbol ethusdt --depth 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/rickgao/booksync/internal/api"
	"github.com/rickgao/booksync/internal/book"
	"github.com/rickgao/booksync/internal/config"
	"github.com/rickgao/booksync/internal/connection"
	"github.com/rickgao/booksync/internal/engine"
	"github.com/rickgao/booksync/internal/router"
)

func main() {
	configPath := flag.String("config", "", "optional path to config file")
	wsURL := flag.String("url", "", "websocket URL (overrides feed.ws_url)")
	symbol := flag.String("symbol", "btcusdt", "symbol to watch")
	depth := flag.Int("depth", 10, "levels per side to print (0 = all)")
	source := flag.String("source", "", "snapshot source: ws or rest (overrides sync.snapshot_source)")
	verbose := flag.Bool("verbose", false, "print indented JSON and router stats")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cfg, err := loadConfig(*configPath, *wsURL, *source, *symbol)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	session := connection.NewSession(connection.SessionConfig{
		Client: connection.ClientConfig{
			URL:              cfg.Feed.WSURL,
			APIKey:           cfg.Feed.APIKey,
			PingInterval:     cfg.Feed.PingInterval,
			PingTimeout:      cfg.Feed.PingTimeout,
			WriteTimeout:     cfg.Feed.WriteTimeout,
			HandshakeTimeout: cfg.Feed.HandshakeTimeout,
			BufferSize:       cfg.Feed.BufferSize,
		},
		CommandTimeout:    cfg.Feed.CommandTimeout,
		ReconnectBaseWait: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxWait:  cfg.Feed.ReconnectMaxDelay,
		MessageBufferSize: cfg.Feed.BufferSize,
	}, logger)

	var snapshots engine.SnapshotSource = session
	if cfg.Sync.SnapshotSource == config.SourceREST {
		snapshots = api.NewClient(cfg.Feed.RestURL, cfg.Feed.APIKey, api.WithLogger(logger))
	}

	eng := engine.New(engine.Config{
		MaxAttempts:     cfg.Sync.Attempts(),
		ResyncDelay:     cfg.Sync.ResyncDelay,
		SnapshotTimeout: cfg.Sync.SnapshotTimeout,
		ResyncOnGap:     cfg.Sync.ResyncOnGap,
	}, session, snapshots, logger)

	rtr := router.NewRouter(router.DefaultRouterConfig(), session.Messages(), eng, nil, logger)
	buffers := rtr.Buffers()

	session.OnDisconnect(func(error) { eng.Disconnected() })

	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}
	logger.Info("connecting", "url", cfg.Feed.WSURL)
	if err := session.Start(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	// Other families are not printed.
	go drain(buffers.Ticker)
	go drain(buffers.Trade)
	go drain(buffers.Candle)
	go drain(buffers.Unrouted)

	if *verbose {
		go printStats(ctx, rtr, session, logger)
	}

	w, err := eng.Watch(ctx, cfg.Sync.Symbols[0], *depth)
	if err != nil {
		logger.Error("failed to watch", "symbol", cfg.Sync.Symbols[0], "error", err)
		os.Exit(1)
	}
	logger.Info("streaming started - press Ctrl+C to stop", "channel", w.Channel())

	err = printViews(ctx, w, *verbose)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	session.Stop(shutdownCtx)
	rtr.Stop(shutdownCtx)
	eng.Stop(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stream ended", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(path, wsURL, source, symbol string) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if cfg.Instance.ID == "" {
		cfg.Instance.ID = "streamtest"
	}
	if wsURL != "" {
		cfg.Feed.WSURL = wsURL
	}
	if source != "" {
		cfg.Sync.SnapshotSource = source
	}
	cfg.Sync.Symbols = []string{symbol}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printViews(ctx context.Context, w *engine.Watcher, verbose bool) error {
	for {
		view, err := w.Next(ctx)
		if err != nil {
			return err
		}
		if err := printView(view, verbose); err != nil {
			return err
		}
	}
}

func printView(v book.View, verbose bool) error {
	var (
		data []byte
		err  error
	)
	if verbose {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printStats(ctx context.Context, rtr router.Router, session *connection.Session, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			routerStats := rtr.Stats()
			sessionStats := session.Stats()
			logger.Info("stats",
				"connected", sessionStats.Connected,
				"reconnects", sessionStats.Reconnects,
				"router_received", routerStats.MessagesReceived,
				"book_deltas", routerStats.BookDeltas,
				"parse_errors", routerStats.ParseErrors,
				"unrouted", routerStats.Unrouted,
			)
		}
	}
}

func drain[T any](buf *router.GrowableBuffer[T]) {
	for {
		if _, ok := buf.Receive(); !ok {
			return
		}
	}
}
