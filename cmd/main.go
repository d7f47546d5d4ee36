package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkanda/typerace/internal/adapters/hid"
	"github.com/mkanda/typerace/internal/adapters/roster"
	"github.com/mkanda/typerace/internal/adapters/ws"
	"github.com/mkanda/typerace/internal/app"
	"github.com/mkanda/typerace/internal/config"
	"github.com/mkanda/typerace/internal/domain/model"
	"github.com/mkanda/typerace/internal/domain/scoring"
	"github.com/mkanda/typerace/internal/domain/types"
	"github.com/mkanda/typerace/pkg/logger"
	"github.com/mkanda/typerace/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	enumerator := hid.NewEnumerator()
	opts := []app.Option{
		app.WithLogger(log),
		app.WithSnapshotter(enumerator),
		app.WithOpener(enumerator),
		app.WithPollInterval(time.Duration(cfg.PollIntervalMS) * time.Millisecond),
		app.WithQueueSize(cfg.QueueSize),
		app.WithScorer(scoring.NewStandardScorer(
			scoring.WithBasePerChar(cfg.BaseScorePerChar),
			scoring.WithSpeedBonus(cfg.SpeedBonusMax, cfg.SpeedBonusDecayPerSec),
		)),
	}
	if cfg.HeuristicEnabled {
		opts = append(opts, app.WithHeuristicBinder(
			time.Duration(cfg.HeuristicBurstMS)*time.Millisecond,
			time.Duration(cfg.HeuristicIdleMS)*time.Millisecond,
		))
	}
	svc := app.New(opts...)

	// Spectator feed: every pipeline notification is mirrored to connected
	// websocket clients.
	hub := ws.NewHub(log.Named("ws"))
	defer hub.Close()
	svc.OnDeviceConnected(func(dev model.Device) {
		hub.Broadcast("device_connected", dev)
	})
	svc.OnDeviceDisconnected(func(id model.DeviceID) {
		hub.Broadcast("device_disconnected", string(id))
	})
	svc.SubscribeProgress(func(stats types.PlayerStats) {
		hub.Broadcast("progress", stats)
	})
	svc.SubscribeCompletion(func(stats types.PlayerStats) {
		hub.Broadcast("completion", stats)
	})

	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start pipeline: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	if cfg.RosterPath != "" {
		r, err := roster.Load(cfg.RosterPath)
		if err != nil {
			os.Stderr.WriteString("failed to load roster: " + err.Error() + "\n")
			return
		}
		roundID := svc.AssignRound(r.Phrases(), r.Bindings(), r.TeamMembers())
		log.Info(ctx, "round loaded from roster",
			logger.String("round", roundID),
			logger.String("path", cfg.RosterPath),
		)
	} else {
		log.Warn(ctx, "no roster configured; waiting for round assignment")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "stopped")
}
