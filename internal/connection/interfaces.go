package connection

import (
	"context"

	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

// CatalogAPI abstracts the remote calls the validator needs.
type CatalogAPI interface {
	Me(ctx context.Context, token string) (*graph.User, error)
	AssignedCatalogs(ctx context.Context, token string) ([]models.Catalog, error)
	Catalog(ctx context.Context, token, catalogID string) (*models.Catalog, error)
}

// Reporter receives operator-facing diagnostics.
type Reporter interface {
	Info(message string)
	Success(message string)
	Warn(message string)
	Error(message, details string)
}

// StatusSink receives connection status transitions.
type StatusSink interface {
	SetStatus(status models.Status)
}
