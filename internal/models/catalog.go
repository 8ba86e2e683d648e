package models

import (
	"encoding/json"
	"net/url"
)

// ManualCatalogSentinel is the external spelling of "the operator will type the id".
const ManualCatalogSentinel = "manual"

const commerceManagerURL = "https://business.facebook.com/commerce_manager/"

// Catalog describes a product catalog visible to the access token.
type Catalog struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Vertical   string `json:"vertical,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
}

// CatalogDeepLink returns the Commerce Manager items page for a catalog.
// The business id scopes the page to the right permissions context.
func CatalogDeepLink(catalogID, businessID string) string {
	link := commerceManagerURL + url.PathEscape(catalogID) + "/items"
	if businessID != "" {
		link += "?business_id=" + url.QueryEscape(businessID)
	}
	return link
}

type catalogRefKind int

const (
	catalogNone catalogRefKind = iota
	catalogManual
	catalogSelected
)

// CatalogRef is the target catalog of a connection: nothing yet, awaiting
// manual entry, or a selected id.
type CatalogRef struct {
	kind catalogRefKind
	id   string
}

// ManualCatalog is the "awaiting explicit id entry" state.
func ManualCatalog() CatalogRef {
	return CatalogRef{kind: catalogManual}
}

// SelectedCatalog targets the given catalog id. An empty id yields no catalog.
func SelectedCatalog(id string) CatalogRef {
	if id == "" {
		return CatalogRef{}
	}
	return CatalogRef{kind: catalogSelected, id: id}
}

// ParseCatalogRef maps the external string form to a CatalogRef.
func ParseCatalogRef(s string) CatalogRef {
	switch s {
	case "":
		return CatalogRef{}
	case ManualCatalogSentinel:
		return ManualCatalog()
	default:
		return SelectedCatalog(s)
	}
}

func (r CatalogRef) IsNone() bool   { return r.kind == catalogNone }
func (r CatalogRef) IsManual() bool { return r.kind == catalogManual }

// ID returns the selected catalog id and whether one is selected.
func (r CatalogRef) ID() (string, bool) {
	return r.id, r.kind == catalogSelected
}

// String returns the external form ("", "manual" or the id).
func (r CatalogRef) String() string {
	switch r.kind {
	case catalogManual:
		return ManualCatalogSentinel
	case catalogSelected:
		return r.id
	default:
		return ""
	}
}

func (r CatalogRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *CatalogRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseCatalogRef(s)
	return nil
}
