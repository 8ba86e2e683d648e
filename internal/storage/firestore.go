// Package storage persists connection profiles and upload run reports in Firestore.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

const (
	profilesCollection = "connection_profiles"
	runsCollection     = "upload_runs"
)

type Client struct {
	client *firestore.Client
}

func New(ctx context.Context, projectID string) (*Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

type profileDoc struct {
	AccessToken string    `firestore:"accessToken"`
	CatalogID   string    `firestore:"catalogID"`
	WebsiteURL  string    `firestore:"websiteURL"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newProfileDoc(conn models.Connection, now time.Time) profileDoc {
	return profileDoc{
		AccessToken: conn.AccessToken,
		CatalogID:   conn.Catalog.String(),
		WebsiteURL:  conn.WebsiteURL,
		UpdatedAt:   now,
	}
}

func (d profileDoc) connection() models.Connection {
	return models.Connection{
		AccessToken: d.AccessToken,
		Catalog:     models.ParseCatalogRef(d.CatalogID),
		WebsiteURL:  d.WebsiteURL,
	}
}

// SaveProfile stores the connection settings under name, replacing any previous value.
func (c *Client) SaveProfile(ctx context.Context, name string, conn models.Connection) error {
	doc := newProfileDoc(conn, time.Now())
	if _, err := c.client.Collection(profilesCollection).Doc(name).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to save profile %s: %w", name, err)
	}
	return nil
}

// LoadProfile returns the stored connection settings, or nil if there are none.
func (c *Client) LoadProfile(ctx context.Context, name string) (*models.Connection, error) {
	snap, err := c.client.Collection(profilesCollection).Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", name, err)
	}
	if !snap.Exists() {
		return nil, nil
	}

	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile data: %w", err)
	}
	conn := doc.connection()
	return &conn, nil
}

// SaveRun stores a finished run and returns its document ID.
func (c *Client) SaveRun(ctx context.Context, report models.RunReport) (string, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if _, err := c.client.Collection(runsCollection).Doc(report.ID).Create(ctx, report); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", fmt.Errorf("run %s already exists", report.ID)
		}
		return "", fmt.Errorf("failed to save run: %w", err)
	}
	return report.ID, nil
}

// ListRuns returns the most recent runs first, without their logs.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]models.RunReport, error) {
	iter := c.client.Collection(runsCollection).
		Select("catalogID", "startedAt", "finishedAt", "stats", "cancelled").
		OrderBy("startedAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var runs []models.RunReport
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate runs: %w", err)
		}
		var run models.RunReport
		if err := doc.DataTo(&run); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run %s: %w", doc.Ref.ID, err)
		}
		run.ID = doc.Ref.ID
		runs = append(runs, run)
	}
	return runs, nil
}

// TrimOldRuns deletes the oldest runs (by startedAt) beyond maxRuns.
func (c *Client) TrimOldRuns(ctx context.Context, maxRuns int) error {
	collectionRef := c.client.Collection(runsCollection)

	countSnapshot, err := collectionRef.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get run count for trimming: %w", err)
	}
	value, ok := countSnapshot["all"]
	if !ok {
		return fmt.Errorf("count aggregation result for trimming was invalid: 'all' key missing")
	}
	currentCount, err := countValue(value)
	if err != nil {
		return err
	}
	if currentCount <= maxRuns {
		return nil
	}

	numToDelete := currentCount - maxRuns
	slog.Info("Trimming old runs", "current", currentCount, "max", maxRuns, "deleting", numToDelete)

	iter := collectionRef.
		OrderBy("startedAt", firestore.Asc).
		Limit(numToDelete).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deletedCount := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate runs for trimming: %w", err)
		}
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			slog.Warn("Error queueing run delete", "id", doc.Ref.ID, "error", err)
			continue
		}
		deletedCount++
	}

	if deletedCount > 0 {
		bulkWriter.Flush()
	}
	return nil
}

// countValue reads a count aggregation result.
func countValue(v interface{}) (int, error) {
	switch val := v.(type) {
	case int64:
		return int(val), nil
	case *firestorepb.Value:
		return int(val.GetIntegerValue()), nil
	default:
		return 0, fmt.Errorf("count aggregation result has unexpected type %T", v)
	}
}
