package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rupeeq/callagent/internal/api"
	"github.com/rupeeq/callagent/internal/config"
	"github.com/rupeeq/callagent/internal/database"
	"github.com/rupeeq/callagent/internal/database/pgarchive"
	"github.com/rupeeq/callagent/internal/event"
	"github.com/rupeeq/callagent/internal/metrics"
	"github.com/rupeeq/callagent/internal/objection"
	"github.com/rupeeq/callagent/internal/script"
	"github.com/rupeeq/callagent/internal/session"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting callagent",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Load the conversation script and the objection bundle. The matcher
	// must cover every language the script supports.
	catalog, err := script.Load(cfg.ScriptPath)
	if err != nil {
		slog.Error("failed to load script bundle", "error", err)
		os.Exit(1)
	}
	matcher, err := objection.Load(cfg.ObjectionsPath, catalog.Languages())
	if err != nil {
		slog.Error("failed to load objection bundle", "error", err)
		os.Exit(1)
	}
	slog.Info("script loaded",
		"states", len(catalog.StateIDs()),
		"languages", catalog.Languages(),
	)

	calls := database.NewCallRepository(db)
	transcripts := database.NewTranscriptRepository(db)

	// Event sinks: local store, websocket live feed, and the optional
	// PostgreSQL archive.
	feed := api.NewLiveFeed(logger)
	sinks := event.MultiSink{database.NewStoreSink(calls, transcripts, logger), feed}

	if cfg.ArchiveDSN != "" {
		archive, err := pgarchive.New(cfg.ArchiveDSN, logger)
		if err != nil {
			slog.Error("failed to open archive", "error", err)
			os.Exit(1)
		}
		defer archive.Close()
		sinks = append(sinks, archive)
		slog.Info("postgres archive enabled")
	}

	store := session.NewMemoryStore()
	manager := session.NewManager(catalog, matcher, store, sinks, logger)

	// Prometheus metrics, gathered from the live components at scrape time.
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(store, manager, calls, transcripts, feed, startTime))
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// HTTP server using the api package.
	handler := api.NewServer(cfg, manager, store, calls, transcripts, feed, metricsHandler)
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout. Sessions still active are abandoned
	// so their outcomes reach the store before the process exits.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	abandonActiveSessions(ctx, manager, store)

	slog.Info("callagent stopped")
}

// abandonActiveSessions ends every session still active so its call record
// is closed out instead of being left dangling as "active" forever.
func abandonActiveSessions(ctx context.Context, manager *session.Manager, store *session.MemoryStore) {
	ids := store.ActiveIDs()
	if len(ids) == 0 {
		return
	}
	slog.Info("abandoning active sessions", "count", len(ids))
	for _, id := range ids {
		if _, err := manager.EndCall(ctx, id); err != nil {
			slog.Error("failed to end session on shutdown", "error", err, "session_id", id)
		}
	}
}
