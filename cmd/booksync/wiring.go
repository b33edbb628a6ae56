package main

import (
	"github.com/rickgao/booksync/internal/config"
	"github.com/rickgao/booksync/internal/connection"
	"github.com/rickgao/booksync/internal/engine"
	"github.com/rickgao/booksync/internal/poller"
	"github.com/rickgao/booksync/internal/router"
	"github.com/rickgao/booksync/internal/writer"
)

func sessionConfig(cfg *config.Config) connection.SessionConfig {
	return connection.SessionConfig{
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
	}
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		MaxAttempts:     cfg.Sync.Attempts(),
		ResyncDelay:     cfg.Sync.ResyncDelay,
		SnapshotTimeout: cfg.Sync.SnapshotTimeout,
		ResyncOnGap:     cfg.Sync.ResyncOnGap,
		DefaultDepth:    cfg.Sync.DefaultDepth,
	}
}

func routerConfig(cfg *config.Config) router.RouterConfig {
	return router.RouterConfig{
		TickerBufferSize:   cfg.Router.TickerBufferSize,
		TradeBufferSize:    cfg.Router.TradeBufferSize,
		CandleBufferSize:   cfg.Router.CandleBufferSize,
		UnroutedBufferSize: cfg.Router.UnroutedBufferSize,
	}
}

func writerConfig(cfg *config.Config) writer.WriterConfig {
	return writer.WriterConfig{
		BatchSize:     cfg.Archive.BatchSize,
		FlushInterval: cfg.Archive.FlushInterval,
	}
}

func auditConfig(cfg *config.Config) poller.Config {
	return poller.Config{
		Interval:    cfg.Audit.Interval,
		Concurrency: cfg.Audit.Concurrency,
		Timeout:     cfg.Audit.Timeout,
		Depth:       cfg.Audit.Depth,
	}
}
