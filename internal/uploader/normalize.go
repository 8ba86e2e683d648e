package uploader

import (
	"github.com/pauljones0/wa-catalog-uploader/internal/graph"
	"github.com/pauljones0/wa-catalog-uploader/internal/models"
)

const (
	// BatchSize is the maximum number of items per batch request.
	BatchSize = 50

	DefaultAvailability = models.InStock
	DefaultCondition    = models.ConditionNew
	DefaultCurrency     = "RUB"
)

// Partition splits items into contiguous batches of at most size items.
// The batches share the backing array of items.
func Partition(items []models.Item, size int) [][]models.Item {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	batches := make([][]models.Item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// BuildRequest maps an item to an upsert request keyed by its retailer id.
// The item url falls back to websiteURL.
func BuildRequest(item models.Item, websiteURL string) graph.BatchRequestItem {
	return graph.BatchRequestItem{
		Method:     graph.BatchMethodUpdate,
		RetailerID: item.RetailerID,
		Data: graph.ProductData{
			Name:         item.Name,
			Description:  orDefault(item.Description, item.Name),
			Availability: string(orDefault(item.Availability, DefaultAvailability)),
			Condition:    string(orDefault(item.Condition, DefaultCondition)),
			Price:        item.Price,
			Currency:     orDefault(item.Currency, DefaultCurrency),
			RetailerID:   item.RetailerID,
			ImageURL:     item.ImageURL,
			Brand:        item.Brand,
			Category:     item.Category,
			URL:          orDefault(item.URL, websiteURL),
		},
	}
}

func BuildRequests(items []models.Item, websiteURL string) []graph.BatchRequestItem {
	requests := make([]graph.BatchRequestItem, 0, len(items))
	for _, item := range items {
		requests = append(requests, BuildRequest(item, websiteURL))
	}
	return requests
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
