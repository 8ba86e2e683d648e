// Package loader turns an operator-supplied JSON file into accepted items.
package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/util"
	"github.com/pauljones0/wa-catalog-uploader/internal/validator"
)

// SampleFileName is the download name of the sample product file.
const SampleFileName = "sample_products.json"

//go:embed sample_products.json
var sample []byte

var (
	ErrUnsupportedType = errors.New("unsupported file type, upload a .json file")
	ErrEmptyFile       = errors.New("file is empty")
	ErrNotArray        = errors.New("JSON must be an array [...]")
	ErrNoValidItems    = errors.New("file has no valid items (retailer_id, name and price are required)")
)

var validate = validator.New()

// Result is the outcome of parsing an item file.
type Result struct {
	Items        []models.Item
	Rejected     int
	MissingImage int
	// OffsiteURLs counts item URLs outside the website's registrable domain.
	OffsiteURLs int
}

// Warnings renders the non-fatal findings for the operator.
func (r *Result) Warnings() []string {
	var out []string
	if r.MissingImage > 0 {
		out = append(out, fmt.Sprintf("Warning: %s no image (image_url). WhatsApp may reject them.",
			util.Plural(r.MissingImage, "item has", "items have")))
	}
	if r.Rejected > 0 {
		out = append(out, fmt.Sprintf("%s skipped (retailer_id, name and price are required).",
			util.Plural(r.Rejected, "item was", "items were")))
	}
	if r.OffsiteURLs > 0 {
		out = append(out, fmt.Sprintf("%s a url outside the website domain.",
			util.Plural(r.OffsiteURLs, "item has", "items have")))
	}
	return out
}

// CheckFileType accepts a .json file name or a JSON content type.
func CheckFileType(name, contentType string) error {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return nil
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType == "application/json" {
		return nil
	}
	return ErrUnsupportedType
}

// Sample returns the embedded sample product file.
func Sample() []byte {
	return bytes.Clone(sample)
}

// rawItem mirrors models.Item with the loosely typed fields left raw.
type rawItem struct {
	RetailerID   json.RawMessage `json:"retailer_id"`
	Name         string          `json:"name"`
	Price        json.RawMessage `json:"price"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	URL          string          `json:"url"`
	Availability string          `json:"availability"`
	Condition    string          `json:"condition"`
	Currency     string          `json:"currency"`
}

// Parse reads a JSON array of items. Elements that are not objects, lack a
// retailer_id or name, or carry a non-numeric price are counted as rejected.
// websiteURL, when set, is used to flag item URLs on other domains.
func Parse(r io.Reader, websiteURL string) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotArray
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if elements == nil {
		return nil, ErrNotArray
	}

	res := &Result{Items: make([]models.Item, 0, len(elements))}
	for _, el := range elements {
		item, ok := toItem(el)
		if !ok {
			res.Rejected++
			continue
		}
		if item.ImageURL == "" {
			res.MissingImage++
		}
		if websiteURL != "" && item.URL != "" && !util.SameSite(item.URL, websiteURL) {
			res.OffsiteURLs++
		}
		res.Items = append(res.Items, item)
	}

	if len(res.Items) == 0 {
		return res, ErrNoValidItems
	}
	return res, nil
}

func toItem(el json.RawMessage) (models.Item, bool) {
	var raw rawItem
	if err := json.Unmarshal(el, &raw); err != nil {
		return models.Item{}, false
	}
	id, ok := retailerID(raw.RetailerID)
	if !ok {
		return models.Item{}, false
	}
	price, err := models.ParsePrice(raw.Price)
	if err != nil {
		return models.Item{}, false
	}

	item := models.Item{
		RetailerID:   id,
		Name:         raw.Name,
		Price:        price,
		Description:  raw.Description,
		ImageURL:     raw.ImageURL,
		Brand:        raw.Brand,
		Category:     raw.Category,
		URL:          raw.URL,
		Availability: models.Availability(raw.Availability),
		Condition:    models.Condition(raw.Condition),
		Currency:     raw.Currency,
	}
	if err := validate.ValidateStruct(item); err != nil {
		slog.Debug("Item rejected", "retailer_id", id, "missing", validator.FailedFields(err))
		return models.Item{}, false
	}
	return item, true
}

// retailerID accepts a string or a JSON number and returns its text form.
func retailerID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
