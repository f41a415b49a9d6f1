package skucache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/metrics"
	"github.com/optscale/flavorsearch/internal/models"
)

// Cache resolves "similar SKUs" queries against the store, falling back to
// the cloud when the cached data is stale or too sparse to compare regions.
type Cache struct {
	store   Store
	fetcher Fetcher
	metrics *metrics.Metrics
	logger  zerolog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// New creates a SKU cache over store, refreshing from fetcher.
func New(store Store, fetcher Fetcher, logger zerolog.Logger) *Cache {
	return &Cache{
		store:   store,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "skucache").Logger(),
		now:     time.Now,
	}
}

// SetMetrics attaches lookup metrics. Optional.
func (c *Cache) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// GetSimilarSKUs returns every cached document describing the same product
// configuration as sku, across all locations.
//
// A cache miss, a stale document, or a similarity set that collapses to the
// seed SKU alone (no sibling region prices to compare) all trigger a cloud
// refresh; none of them is an error. Only a failed cloud call errors.
func (c *Cache) GetSimilarSKUs(ctx context.Context, sku string) ([]models.CachedSKU, error) {
	cutoff := c.now().Add(-models.SKUFreshness)

	doc, found, err := c.store.GetSKU(sku)
	if err != nil {
		return nil, fmt.Errorf("sku lookup failed: %w", err)
	}
	if found && doc.UpdatedAt.After(cutoff) {
		similar, err := c.store.FindSimilar(doc.SimilarityKey())
		if err != nil {
			return nil, fmt.Errorf("similarity scan failed: %w", err)
		}
		// A single match is the SKU itself: no sibling locations are cached,
		// so a region comparison is impossible without a refresh.
		if len(similar) > 1 {
			c.metrics.RecordCacheEvent("hit")
			return similar, nil
		}
		c.logger.Debug().Str("sku", sku).Msg("similar set collapsed to seed, refreshing")
	}

	c.metrics.RecordCacheEvent("miss")
	return c.refresh(ctx, sku)
}

func (c *Cache) refresh(ctx context.Context, sku string) ([]models.CachedSKU, error) {
	fetched, err := c.fetcher.GetSimilarSKUPrices(ctx, sku)
	if err != nil {
		c.metrics.RecordCloudCall("aws_cnr", "similar_sku_prices", "error")
		return nil, fmt.Errorf("cloud sku fetch failed: %w", err)
	}
	c.metrics.RecordCloudCall("aws_cnr", "similar_sku_prices", "ok")
	if len(fetched) == 0 {
		return nil, nil
	}

	now := c.now()
	for i := range fetched {
		fetched[i].UpdatedAt = now
	}
	if err := c.store.Upsert(fetched); err != nil {
		return nil, fmt.Errorf("sku upsert failed: %w", err)
	}
	c.metrics.RecordCacheEvent("refresh")
	c.logger.Debug().Str("sku", sku).Int("count", len(fetched)).Msg("refreshed similar skus")
	return fetched, nil
}
