package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/wa-catalog-uploader/internal/config"
	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/session"
	"github.com/pauljones0/wa-catalog-uploader/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("Ignoring .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())
	slog.Info("Starting catalog uploader server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	client := graph.New(graph.Options{
		BaseURL:           cfg.GraphURL(),
		Retries:           cfg.RetryAttempts,
		InitialBackoff:    cfg.InitialBackoff,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.GraphRequestsPerSecond,
	})

	deps := session.Deps{
		API:           client,
		Logger:        slog.Default(),
		BatchDelay:    cfg.BatchDelay,
		MaxStoredRuns: cfg.MaxStoredRuns,
	}
	var runs RunLister
	if cfg.ProjectID != "" {
		store, err := storage.New(ctx, cfg.ProjectID)
		if err != nil {
			slog.Error("Critical error initializing Firestore client", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		deps.Profiles = store
		deps.Recorder = store
		runs = store
	}

	sess := session.New(cfg.Connection(), deps)
	if cfg.AccessToken == "" {
		if err := sess.Restore(ctx); err != nil {
			slog.Warn("Failed to restore saved profile", "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	srv := NewServer(gctx, sess, runs)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		slog.Info("Listening on port", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		srv.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}
