package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"doccollab/internal/api"
	"doccollab/internal/config"
	"doccollab/internal/events"
	"doccollab/internal/metrics"
	"doccollab/internal/persist"
	"doccollab/internal/routers"
	"doccollab/internal/session"
	"doccollab/internal/store"
	"doccollab/internal/utils"
)

var (
	listenAndServe = func(srv *http.Server) error { return srv.ListenAndServe() }
	exitFunc       = defaultExit
	exit           = os.Exit
	registerer     = prometheus.DefaultRegisterer
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		exitFunc(err)
	}
}

func defaultExit(err error) {
	log.Printf("collab-svc exited: %v", err)
	exit(1)
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLoggerAt(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("document store ready", "backend", cfg.StoreBackend)

	collabMetrics := metrics.NewCollab(registerer)

	writer := persist.NewWriter(st, logger.With("component", "persist"), collabMetrics, persist.Config{
		FlushInterval: cfg.FlushInterval,
		QueueSize:     cfg.PersistQueue,
	})
	if err := writer.Start(); err != nil {
		return err
	}

	var publisher session.LifecyclePublisher
	if cfg.PublishEvents {
		pub, err := events.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.EventsChannel)
		if err != nil {
			logger.Warn("session events disabled", "redisAddr", cfg.RedisAddr, "error", err.Error())
		} else {
			defer func() { _ = pub.Close() }()
			publisher = pub
			logger.Info("publishing session events", "channel", pub.Channel())
		}
	}

	router := session.NewRouter(session.NewHub(), logger.With("component", "session"), session.Options{
		Loader:      writer.ReadThrough(st),
		Persister:   writer,
		Publisher:   publisher,
		Observer:    collabMetrics,
		LoadTimeout: cfg.LoadTimeout,
	})
	h := api.NewHandlers(logger, router, cfg).WithCommentHistory(st)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           routers.New(h, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("collab-svc listening", "addr", srv.Addr)
		errCh <- listenAndServe(srv)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logger.Info("collab-svc shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err.Error())
	}
	// Shutdown leaves hijacked websocket connections open; close them so no
	// update is accepted after the final flush.
	closed := router.Hub().CloseAll()
	writer.Stop(shutdownCtx)
	rooms, clients := router.Hub().Stats()
	logger.Info("collab-svc stopped", "closedConnections", closed, "openSessions", rooms, "connections", clients)

	return serveErr
}
