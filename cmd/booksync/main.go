// booksync keeps local order books in sync with an exchange depth feed and
// serves their state over HTTP.
//
// Usage: booksync --config configs/booksync.yaml [--env .env]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/booksync/internal/api"
	"github.com/rickgao/booksync/internal/config"
	"github.com/rickgao/booksync/internal/connection"
	"github.com/rickgao/booksync/internal/database"
	"github.com/rickgao/booksync/internal/engine"
	"github.com/rickgao/booksync/internal/logging"
	"github.com/rickgao/booksync/internal/metrics"
	"github.com/rickgao/booksync/internal/poller"
	"github.com/rickgao/booksync/internal/router"
	"github.com/rickgao/booksync/internal/version"
	"github.com/rickgao/booksync/internal/writer"
)

// stopper is implemented by every long-running component.
type stopper interface {
	Stop(ctx context.Context) error
}

type stopFunc func(ctx context.Context) error

func (f stopFunc) Stop(ctx context.Context) error { return f(ctx) }

func main() {
	configPath := flag.String("config", "configs/booksync.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		slog.Error("booksync failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logCloser.Close()
	logger = logger.With("instance", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting booksync",
		version.Attr(),
		"config", configPath,
		"symbols", cfg.Sync.Symbols,
		"snapshot_source", cfg.Sync.SnapshotSource,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New(version.Version, version.Commit)

	// Feed session and snapshot source
	session := connection.NewSession(sessionConfig(cfg), logger)

	var rest *api.Client
	if cfg.Feed.RestURL != "" {
		rest = api.NewClient(cfg.Feed.RestURL, cfg.Feed.APIKey,
			api.WithLogger(logger),
			api.WithTimeout(cfg.Feed.RestTimeout),
			api.WithRetries(cfg.Feed.RestRetries, 500*time.Millisecond),
		)
	}

	var source engine.SnapshotSource = session
	if cfg.Sync.SnapshotSource == config.SourceREST {
		source = rest
	}

	eng := engine.New(engineConfig(cfg), session, source, logger)
	eng.SetMetrics(m)

	rtr := router.NewRouter(routerConfig(cfg), session.Messages(), eng, m, logger)
	buffers := rtr.Buffers()

	// Shutdown order is the reverse of start order.
	var started []stopper
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(shutdownCtx); err != nil {
				logger.Warn("component stop failed", "error", err)
			}
		}
	}()

	// Optional archive
	var pool *pgxpool.Pool
	if cfg.Archive.Enabled {
		logger.Info("connecting to archive database",
			"host", cfg.Archive.Database.Host,
			"port", cfg.Archive.Database.Port,
			"database", cfg.Archive.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			return fmt.Errorf("connect archive: %w", err)
		}
		started = append(started, stopFunc(func(context.Context) error {
			pool.Close()
			return nil
		}))

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("archive schema: %w", err)
		}

		updates := router.NewGrowableBuffer[engine.Update](cfg.Archive.BufferSize)
		eng.SetPublisher(updates)

		wcfg := writerConfig(cfg)
		writers := []interface {
			stopper
			Start(ctx context.Context) error
		}{
			writer.NewBookWriter(wcfg, updates, pool, m, logger),
			writer.NewTradeWriter(wcfg, buffers.Trade, pool, m, logger),
			writer.NewTickerWriter(wcfg, buffers.Ticker, pool, m, logger),
		}
		for _, w := range writers {
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("start writer: %w", err)
			}
			started = append(started, w)
		}
	}

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	started = append(started, eng)

	if err := rtr.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	started = append(started, rtr)

	reconnected := newSignal()
	session.OnDisconnect(func(err error) {
		eng.Disconnected()
	})
	session.OnReconnect(func() {
		logger.Info("feed reconnected, resubscribing books")
		reconnected.Fire()
	})
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	started = append(started, session)

	if cfg.Audit.Enabled {
		auditor := poller.New(auditConfig(cfg), rest, eng, m, logger)
		if err := auditor.Start(ctx); err != nil {
			return fmt.Errorf("start auditor: %w", err)
		}
		started = append(started, auditor)
	}

	var archive pinger
	if pool != nil {
		archive = pool
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createHTTPHandler(eng, session, archive, cfg.Metrics.Path, m.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	onView := logTopOfBook(logger)
	for _, symbol := range cfg.Sync.Symbols {
		g.Go(func() error {
			return follow(gctx, eng, symbol, cfg.Sync.DefaultDepth, reconnected, logger, onView)
		})
	}

	// Families nobody archives are discarded so their buffers stay small.
	if !cfg.Archive.Enabled {
		go discard(buffers.Trade)
		go discard(buffers.Ticker)
	}
	go discard(buffers.Candle)
	go logUnrouted(buffers.Unrouted, logger)

	logger.Info("booksync running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	err = g.Wait()
	logger.Info("shutting down...")
	return err
}

// discard empties buf until it is closed.
func discard[T any](buf *router.GrowableBuffer[T]) {
	for {
		if _, ok := buf.Receive(); !ok {
			return
		}
	}
}

func logUnrouted(buf *router.GrowableBuffer[connection.RawMessage], logger *slog.Logger) {
	for {
		msg, ok := buf.Receive()
		if !ok {
			return
		}
		logger.Debug("unrouted message", "size", len(msg.Data))
	}
}
