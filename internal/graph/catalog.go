package graph

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

// BatchMethodUpdate upserts an item: create when absent, update otherwise.
const BatchMethodUpdate = "UPDATE"

// User is the owner of an access token.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type catalogNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Vertical string `json:"vertical,omitempty"`
	Business *struct {
		ID string `json:"id"`
	} `json:"business,omitempty"`
}

func (n catalogNode) toModel() models.Catalog {
	c := models.Catalog{ID: n.ID, Name: n.Name, Vertical: n.Vertical}
	if n.Business != nil {
		c.BusinessID = n.Business.ID
	}
	return c
}

type catalogList struct {
	Data []catalogNode `json:"data"`
}

// ProductData is the normalized item payload of a batch request.
// Fields without a value are left out of the JSON.
type ProductData struct {
	Name         string       `json:"name,omitempty"`
	Description  string       `json:"description,omitempty"`
	Availability string       `json:"availability,omitempty"`
	Condition    string       `json:"condition,omitempty"`
	Price        models.Price `json:"price,omitzero"`
	Currency     string       `json:"currency,omitempty"`
	RetailerID   string       `json:"retailer_id,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	Brand        string       `json:"brand,omitempty"`
	Category     string       `json:"category,omitempty"`
	URL          string       `json:"url,omitempty"`
}

type BatchRequestItem struct {
	Method     string      `json:"method"`
	RetailerID string      `json:"retailer_id"`
	Data       ProductData `json:"data"`
}

type batchRequest struct {
	Requests []BatchRequestItem `json:"requests"`
}

// BatchResponse is the answer to a batch upload. Handles is optional.
type BatchResponse struct {
	Handles []string  `json:"handles,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

func tokenQuery(token string) url.Values {
	q := url.Values{}
	q.Set("access_token", token)
	return q
}

// Me returns the owner of the token. It is the cheapest token check.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.Call(ctx, http.MethodGet, "me", tokenQuery(token), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// AssignedCatalogs lists the catalogs the token's user is assigned to.
func (c *Client) AssignedCatalogs(ctx context.Context, token string) ([]models.Catalog, error) {
	q := tokenQuery(token)
	q.Set("fields", "name,vertical,business")

	var list catalogList
	if err := c.Call(ctx, http.MethodGet, "me/assigned_product_catalogs", q, nil, &list); err != nil {
		return nil, err
	}
	catalogs := make([]models.Catalog, 0, len(list.Data))
	for _, n := range list.Data {
		catalogs = append(catalogs, n.toModel())
	}
	return catalogs, nil
}

// Catalog fetches one catalog by id.
func (c *Client) Catalog(ctx context.Context, token, catalogID string) (*models.Catalog, error) {
	q := tokenQuery(token)
	q.Set("fields", "name,vertical")

	var node catalogNode
	if err := c.Call(ctx, http.MethodGet, url.PathEscape(catalogID), q, nil, &node); err != nil {
		return nil, err
	}
	if node.ID == "" {
		node.ID = catalogID
	}
	cat := node.toModel()
	return &cat, nil
}

// UploadBatch submits one batch of upsert requests to a catalog.
func (c *Client) UploadBatch(ctx context.Context, token, catalogID string, requests []BatchRequestItem) (*BatchResponse, error) {
	var resp BatchResponse
	path := url.PathEscape(catalogID) + "/batch"
	if err := c.Call(ctx, http.MethodPost, path, tokenQuery(token), batchRequest{Requests: requests}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &models.Error{Kind: models.KindUpstream, Err: resp.Error}
	}
	return &resp, nil
}
