// Package connection decides whether a (token, catalog) pair is usable
// before an upload and discovers the catalogs the token can reach.
package connection

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/util"
)

const (
	msgMissingToken     = "Enter an access token"
	msgMalformedID      = "The catalog ID must contain digits only. Do not paste links (wa.me or facebook.com)."
	msgCatalogFailed    = "Catalog access failed"
	msgConnected        = "Connection successful"
	msgSelectCatalog    = "Token is valid. Select a catalog."
	msgManualCatalog    = "Enter the catalog ID manually"
	msgNoCatalogsHint   = "No catalogs found. Make sure the token has the catalog_management permission."
	msgListingForbidden = "Could not list catalogs for this token"
)

type Validator struct {
	api    CatalogAPI
	log    Reporter
	status StatusSink
	group  singleflight.Group

	mu         sync.RWMutex
	catalogs   []models.Catalog
	catalogID  string
	businessID string
	message    string
}

func New(api CatalogAPI, log Reporter, status StatusSink) *Validator {
	return &Validator{api: api, log: log, status: status}
}

type outcome struct {
	ready bool
	err   error
}

// Validate checks the connection and reports whether an upload may start.
// verbose only controls the journal entries; the verdict is the same.
// Concurrent calls with identical inputs share one validation.
func (v *Validator) Validate(ctx context.Context, conn models.Connection, verbose bool) (bool, error) {
	key := fmt.Sprintf("%s\x00%s\x00%t", conn.AccessToken, conn.Catalog, verbose)
	res, _, _ := v.group.Do(key, func() (any, error) {
		ready, err := v.validate(ctx, conn, verbose)
		return outcome{ready: ready, err: err}, nil
	})
	out := res.(outcome)
	return out.ready, out.err
}

func (v *Validator) validate(ctx context.Context, conn models.Connection, verbose bool) (bool, error) {
	if conn.AccessToken == "" {
		if verbose {
			v.log.Error("Access token is missing", "")
		}
		v.finish(models.StatusIdle, msgMissingToken)
		return false, &models.Error{Kind: models.KindMissingCredential, Message: msgMissingToken}
	}

	v.status.SetStatus(models.StatusValidating)
	if verbose {
		v.log.Info("Checking the token and looking for catalogs...")
	}

	user, err := v.api.Me(ctx, conn.AccessToken)
	if err != nil {
		msg := graph.ErrorMessage(err)
		if verbose {
			v.log.Error("Validation failed", msg)
		}
		v.finish(models.StatusError, msg)
		if models.KindOf(err) == models.KindNetworkUnreachable {
			return false, err
		}
		return false, &models.Error{Kind: models.KindTokenInvalid, Message: msg, Err: err}
	}
	if verbose {
		v.log.Success("Token is valid. User ID: " + user.ID)
	}

	v.discover(ctx, conn, verbose)

	switch {
	case conn.Catalog.IsNone():
		v.finish(models.StatusIdle, msgSelectCatalog)
		return false, nil
	case conn.Catalog.IsManual():
		v.finish(models.StatusIdle, msgManualCatalog)
		return false, nil
	}

	catalogID, _ := conn.Catalog.ID()
	if util.HasNonDigit(catalogID) {
		if verbose {
			v.log.Error("Invalid catalog ID format", msgMalformedID)
		}
		v.finish(models.StatusError, msgMalformedID)
		return false, &models.Error{Kind: models.KindMalformedCatalogID, Message: msgMalformedID}
	}

	catalog, err := v.api.Catalog(ctx, conn.AccessToken, catalogID)
	if err != nil {
		if verbose {
			v.log.Error("Catalog not found or access denied", graph.ErrorMessage(err))
		}
		v.finish(models.StatusError, msgCatalogFailed)
		return false, &models.Error{Kind: models.KindCatalogUnreachable, Message: msgCatalogFailed, Err: err}
	}

	if verbose {
		vertical := catalog.Vertical
		if vertical == "" {
			vertical = "Generic"
		}
		v.log.Success(fmt.Sprintf("Catalog confirmed: %s (%s)", catalog.Name, vertical))
	}
	v.finish(models.StatusReady, msgConnected)
	return true, nil
}

// discover refreshes the catalog list. A listing failure is not fatal.
func (v *Validator) discover(ctx context.Context, conn models.Connection, verbose bool) {
	catalogs, err := v.api.AssignedCatalogs(ctx, conn.AccessToken)
	if err != nil {
		slog.Warn("Failed to list catalogs", "error", err)
		if verbose {
			v.log.Warn(msgListingForbidden + ": " + graph.ErrorMessage(err))
		}
		catalogs = nil
	}

	selectedID, _ := conn.Catalog.ID()

	v.mu.Lock()
	v.catalogs = catalogs
	v.catalogID = selectedID
	v.businessID = ""
	for _, c := range catalogs {
		if selectedID != "" && c.ID == selectedID {
			v.businessID = c.BusinessID
			break
		}
	}
	v.mu.Unlock()

	if !verbose || err != nil {
		return
	}
	if len(catalogs) > 0 {
		v.log.Info(fmt.Sprintf("Catalogs found: %d", len(catalogs)))
	} else {
		v.log.Warn(msgNoCatalogsHint)
	}
}

func (v *Validator) finish(status models.Status, message string) {
	v.mu.Lock()
	v.message = message
	v.mu.Unlock()
	v.status.SetStatus(status)
}

// Catalogs returns the catalogs found by the last validation.
func (v *Validator) Catalogs() []models.Catalog {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.catalogs)
}

// Message is the short verdict of the last validation, for a status banner.
func (v *Validator) Message() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.message
}

// DeepLink points at the items page of the last validated catalog, or "".
func (v *Validator) DeepLink() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.catalogID == "" {
		return ""
	}
	return models.CatalogDeepLink(v.catalogID, v.businessID)
}

// Reset forgets discovered catalogs, e.g. after the token changed.
func (v *Validator) Reset() {
	v.mu.Lock()
	v.catalogs = nil
	v.catalogID = ""
	v.businessID = ""
	v.message = ""
	v.mu.Unlock()
	v.status.SetStatus(models.StatusIdle)
}
