package uploader

import (
	"context"

	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

// BatchAPI abstracts the remote batch endpoint.
type BatchAPI interface {
	UploadBatch(ctx context.Context, token, catalogID string, requests []graph.BatchRequestItem) (*graph.BatchResponse, error)
}

// ConnectionValidator re-checks the connection at run start.
type ConnectionValidator interface {
	Validate(ctx context.Context, conn models.Connection, verbose bool) (bool, error)
}

// Reporter is the run's log journal.
type Reporter interface {
	Info(message string)
	Success(message string)
	Warn(message string)
	Error(message, details string)
	Entries() []models.LogEntry
}

// StatusSink receives run status transitions.
type StatusSink interface {
	SetStatus(status models.Status)
}

// RunRecorder persists finished runs.
type RunRecorder interface {
	SaveRun(ctx context.Context, report models.RunReport) (string, error)
	TrimOldRuns(ctx context.Context, maxRuns int) error
}
