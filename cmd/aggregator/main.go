package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ical-aggregator/internal/config"
	httptransport "github.com/example/ical-aggregator/internal/http"
	"github.com/example/ical-aggregator/internal/ics"
	"github.com/example/ical-aggregator/internal/ingest"
	"github.com/example/ical-aggregator/internal/logging"
	"github.com/example/ical-aggregator/internal/persistence/sqlite"
	"github.com/example/ical-aggregator/internal/query"
)

func main() {
	logger := logging.NewLogger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	repo := sqlite.NewEventRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}

	fetcher := ics.NewFetcher(cfg.FetchTimeout, logger)
	refresher := ingest.NewRefresher(fetcher, repo, cfg.FeedsPath, logger)
	scheduler, err := ingest.NewScheduler(refresher, repo, cfg.RefreshSchedule, logger)
	if err != nil {
		logger.Error("failed to build refresh scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		if rErr := scheduler.Run(ctx); rErr != nil && !errors.Is(rErr, context.Canceled) {
			logger.Error("refresh loop stopped", "error", rErr)
		}
	}()

	engine := query.NewEngine(repo, logger)
	opts := query.Options{
		IngestOffset:     cfg.IngestOffset,
		MaxPatternLength: cfg.MaxPatternLength,
	}
	eventHandler := httptransport.NewEventHandler(engine, opts, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Events:     eventHandler,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if sErr := server.Shutdown(shutdownCtx); sErr != nil && !errors.Is(sErr, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", sErr)
		}
	}()

	logger.Info("aggregator API listening", "addr", server.Addr, "refresh", cfg.RefreshSchedule)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
