// Package skucache caches AWS price catalog SKUs with a freshness window.
// Pricing responses are expensive and stable, so cached documents are
// trusted for SKUFreshness and refreshed from the cloud afterwards.
package skucache

import (
	"context"

	"github.com/optscale/flavorsearch/internal/models"
)

// Store persists SKU documents keyed by SKU identifier.
type Store interface {
	// GetSKU retrieves one document by SKU. The second return is false when
	// the SKU has never been cached.
	GetSKU(sku string) (models.CachedSKU, bool, error)
	// FindSimilar returns all documents sharing the similarity key: the same
	// product configuration in any location.
	FindSimilar(key string) ([]models.CachedSKU, error)
	// Upsert writes documents keyed by SKU. Existing documents are fully
	// replaced; last write wins.
	Upsert(skus []models.CachedSKU) error
	// Close releases store resources.
	Close() error
}

// Fetcher retrieves similar SKU prices from the cloud pricing API.
// Implemented by the AWS pricing client.
type Fetcher interface {
	GetSimilarSKUPrices(ctx context.Context, sku string) ([]models.CachedSKU, error)
}
