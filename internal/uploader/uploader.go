// Package uploader drives upload runs: it partitions the item list into
// batches and submits them one after another, keeping run statistics.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/util"
)

var (
	ErrRunInProgress = errors.New("an upload is already running")
	ErrNoItems       = errors.New("no items to upload")
	ErrNoCatalog     = errors.New("no valid catalog ID selected")
	ErrNotReady      = errors.New("connection is not ready")
)

const recordTimeout = 10 * time.Second

type Options struct {
	// BatchDelay is the pause between two batches.
	BatchDelay time.Duration
	// Recorder, when set, stores each finished run.
	Recorder      RunRecorder
	MaxStoredRuns int
	// OnProgress is called with every published stats snapshot.
	OnProgress func(models.UploadStats)
}

type Uploader struct {
	api       BatchAPI
	validator ConnectionValidator
	log       Reporter
	status    StatusSink
	opts      Options

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	stats   models.UploadStats
}

func New(api BatchAPI, v ConnectionValidator, log Reporter, status StatusSink, opts Options) *Uploader {
	return &Uploader{
		api:       api,
		validator: v,
		log:       log,
		status:    status,
		opts:      opts,
		sleep:     util.Sleep,
		now:       time.Now,
	}
}

// Running reports whether a run is in progress.
func (u *Uploader) Running() bool {
	return u.running.Load()
}

// Stats returns the latest stats snapshot.
func (u *Uploader) Stats() models.UploadStats {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.stats
}

// Reset sets the stats to an unstarted run over total items.
// It is a no-op while a run is in progress.
func (u *Uploader) Reset(total int) {
	if u.running.Load() {
		return
	}
	u.publish(models.UploadStats{Total: total})
}

func (u *Uploader) publish(s models.UploadStats) {
	u.mu.Lock()
	u.stats = s
	u.mu.Unlock()
	if u.opts.OnProgress != nil {
		u.opts.OnProgress(s)
	}
}

// Run uploads items to the connection's catalog. Batches are sent strictly
// in order and each one counts entirely as success or failure. When ctx is
// cancelled the run stops before the next batch. A run with failed batches
// returns its stats together with a batch-failure error.
func (u *Uploader) Run(ctx context.Context, conn models.Connection, items []models.Item) (models.UploadStats, error) {
	run, err := u.Start(conn, items)
	if err != nil {
		return u.Stats(), err
	}
	return run(ctx)
}

// Start claims the run slot and checks the local preconditions. On success
// it returns the run body, which must be called exactly once; the slot is
// released when the body returns.
func (u *Uploader) Start(conn models.Connection, items []models.Item) (func(context.Context) (models.UploadStats, error), error) {
	if !u.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	if len(items) == 0 {
		u.running.Store(false)
		u.log.Warn("No items to upload")
		return nil, ErrNoItems
	}
	catalogID, ok := conn.Catalog.ID()
	if !ok {
		u.running.Store(false)
		return nil, ErrNoCatalog
	}
	return func(ctx context.Context) (models.UploadStats, error) {
		defer u.running.Store(false)
		return u.run(ctx, conn, catalogID, items)
	}, nil
}

func (u *Uploader) run(ctx context.Context, conn models.Connection, catalogID string, items []models.Item) (models.UploadStats, error) {
	ready, err := u.validator.Validate(ctx, conn, true)
	if err != nil {
		return u.Stats(), err
	}
	if !ready {
		return u.Stats(), ErrNotReady
	}

	started := u.now()
	u.status.SetStatus(models.StatusUploading)
	stats := models.UploadStats{Total: len(items)}
	u.publish(stats)
	u.log.Info("Starting batch upload...")

	batches := Partition(items, BatchSize)
	cancelled := false
	for i, batch := range batches {
		if i > 0 {
			if err := u.sleep(ctx, u.opts.BatchDelay); err != nil {
				cancelled = true
				break
			}
		}
		stats = u.submit(ctx, conn, catalogID, i+1, batch, stats)
		u.publish(stats)
	}

	if cancelled {
		u.log.Warn(fmt.Sprintf("Upload cancelled: %d of %d items processed", stats.Processed, stats.Total))
	}
	u.status.SetStatus(models.StatusCompleted)
	u.log.Info("Upload process finished.")
	u.log.Info("Accepted items are queued for moderation in Commerce Manager and may not be visible immediately.")

	u.record(ctx, models.RunReport{
		CatalogID:  catalogID,
		StartedAt:  started,
		FinishedAt: u.now(),
		Stats:      stats,
		Cancelled:  cancelled,
		Logs:       u.log.Entries(),
	})

	if stats.Failed > 0 {
		return stats, &models.Error{
			Kind:    models.KindBatchFailure,
			Message: fmt.Sprintf("%d of %d items failed", stats.Failed, stats.Total),
		}
	}
	if cancelled {
		return stats, ctx.Err()
	}
	return stats, nil
}

// submit sends one batch and returns the updated stats.
func (u *Uploader) submit(ctx context.Context, conn models.Connection, catalogID string, num int, batch []models.Item, stats models.UploadStats) models.UploadStats {
	u.log.Info(fmt.Sprintf("Uploading batch #%d (%d items)...", num, len(batch)))

	resp, err := u.api.UploadBatch(ctx, conn.AccessToken, catalogID, BuildRequests(batch, conn.WebsiteURL))
	switch {
	case err != nil:
		stats.Failed += len(batch)
		u.log.Error(fmt.Sprintf("Batch #%d failed", num), graph.ErrorMessage(err))
	case resp.Handles != nil:
		stats.Success += len(batch)
		u.log.Success(fmt.Sprintf("Batch #%d submitted for processing.", num))
	default:
		// No handles and no error still counts as accepted.
		stats.Success += len(batch)
		u.log.Success(fmt.Sprintf("Batch #%d submitted.", num))
	}
	stats.Processed += len(batch)
	return stats
}

func (u *Uploader) record(ctx context.Context, report models.RunReport) {
	if u.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	id, err := u.opts.Recorder.SaveRun(ctx, report)
	if err != nil {
		slog.Warn("Failed to save run report", "error", err)
		return
	}
	slog.Info("Saved run report", "id", id, "success", report.Stats.Success, "failed", report.Stats.Failed)

	if u.opts.MaxStoredRuns > 0 {
		if err := u.opts.Recorder.TrimOldRuns(ctx, u.opts.MaxStoredRuns); err != nil {
			slog.Warn("Failed to trim old run reports", "error", err)
		}
	}
}
