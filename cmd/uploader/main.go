// Command uploader loads a product file and uploads it to the configured
// catalog in one go, then writes the run report.
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

	"github.com/pauljones0/wa-catalog-uploader/internal/config"
	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/journal"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/session"
	"github.com/pauljones0/wa-catalog-uploader/internal/storage"
)

func main() {
	file := flag.String("file", "", "product file (JSON array)")
	report := flag.String("report", "", "report output path (default upload_report_<time>.json)")
	validateOnly := flag.Bool("validate-only", false, "check the connection and exit")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("Ignoring .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, *file, *report, *validateOnly); err != nil {
		slog.Error("Upload failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, path, reportPath string, validateOnly bool) error {
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
		OnProgress: func(s models.UploadStats) {
			fmt.Fprintf(os.Stderr, "\rprocessed %d/%d (ok %d, failed %d)", s.Processed, s.Total, s.Success, s.Failed)
		},
	}
	if cfg.ProjectID != "" {
		store, err := storage.New(ctx, cfg.ProjectID)
		if err != nil {
			return err
		}
		defer store.Close()
		deps.Recorder = store
	}
	sess := session.New(cfg.Connection(), deps)

	if validateOnly {
		ready, err := sess.Validate(ctx, true)
		for _, c := range sess.Catalogs() {
			fmt.Printf("%s\t%s\t%s\n", c.ID, c.Name, c.Vertical)
		}
		if err != nil {
			return err
		}
		if !ready {
			return errors.New(sess.Snapshot().Message)
		}
		fmt.Println("ready:", sess.Snapshot().DeepLink)
		return nil
	}

	if path == "" {
		return errors.New("-file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := sess.LoadItems(ctx, path, "", f); err != nil {
		return err
	}

	stats, runErr := sess.Upload(ctx)
	fmt.Fprintln(os.Stderr)
	slog.Info("Upload finished", "total", stats.Total, "success", stats.Success, "failed", stats.Failed)

	if reportPath == "" {
		reportPath = journal.ReportFileName(time.Now())
	}
	if err := writeReport(sess, reportPath); err != nil {
		return errors.Join(runErr, err)
	}
	slog.Info("Report written", "path", reportPath)
	return runErr
}

func writeReport(sess *session.Session, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := sess.ExportReport(out); err != nil {
		out.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return out.Close()
}
