package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tradecore/internal/app"
	"tradecore/internal/engine"
	"tradecore/internal/event"
	"tradecore/internal/infra"
	"tradecore/internal/infra/control"
	"tradecore/internal/infra/feed"
	"tradecore/internal/policy"
	"tradecore/internal/service"

	"golang.org/x/sync/errgroup"

	_ "net/http/pprof" // For pprof profiling
)

const inboxSize = 1024

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Metrics endpoint
	go infra.ServeMetrics(cfg.Metrics.Addr)

	// 5. One decision pipeline per instrument. Each pipeline owns its state
	// and runs on its own goroutine; instruments never share hotpath state.
	sessions := service.NewSessionService()
	bounds := policy.FrictionBounds{
		MaxSlippagePts: cfg.Execution.MaxSlippagePts,
		MaxLatencyMS:   cfg.Execution.MaxLatencyMS,
	}
	staleAfterMS := int64(cfg.Feed.StaleAfterSec) * 1000

	event.Warmup()
	inboxes := make(map[string]chan<- event.Event, len(cfg.Feed.Instruments))
	g, ctx := errgroup.WithContext(ctx)
	for _, instrument := range cfg.Feed.Instruments {
		p := engine.NewPipeline(instrument, bootstrap.Doctrine, bounds, staleAfterMS, inboxSize, bootstrap.Journal, sessions.OnSummary)
		inboxes[instrument] = p.Inbox()
		g.Go(func() error {
			p.Run(ctx)
			return nil
		})
		slog.InfoContext(ctx, "✅ Pipeline started", slog.String("instrument", instrument))
	}

	// 6. Operator control surface (ack/flatten/reset)
	ctl := control.NewServer(inboxes)
	go ctl.Serve(cfg.Control.Addr)
	slog.InfoContext(ctx, "✅ Control server started", slog.String("addr", cfg.Control.Addr))

	// 7. Feed Worker (Gateway)
	if cfg.Feed.WSURL != "" {
		worker := feed.NewWorker(cfg.Feed.WSURL, inboxes)
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to connect feed", slog.Any("error", err))
		}
		defer worker.Disconnect()
		slog.InfoContext(ctx, "✅ FeedWorker started", slog.String("url", cfg.Feed.WSURL))
	} else {
		slog.Warn("no feed URL configured, pipelines idle (replay only)")
	}

	slog.InfoContext(ctx, "✨ tradecore fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()
	g.Wait()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
