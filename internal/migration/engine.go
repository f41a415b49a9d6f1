// Package migration recommends moving instances to cheaper regions within
// the same geographic group.
package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/models"
	"github.com/optscale/flavorsearch/internal/parallel"
)

// ResourceDiscoverer lists the live instances of an organization.
type ResourceDiscoverer interface {
	ListActiveInstances(ctx context.Context, organizationID string) ([]models.DiscoveredInstance, error)
}

// ExpenseStore resolves the billing SKU an instance was last charged under.
type ExpenseStore interface {
	LastUsedSKU(ctx context.Context, cloudAccountID, cloudResourceID string) (string, error)
}

// SimilarSKUSource is the SKU cache lookup the AWS path runs on.
type SimilarSKUSource interface {
	GetSimilarSKUs(ctx context.Context, sku string) ([]models.CachedSKU, error)
}

// AlibabaPriceSource prices one flavor across regions for the Alibaba path.
type AlibabaPriceSource interface {
	GetAllFlavors(ctx context.Context, region string) (map[string]cloud.AlibabaFlavor, error)
	GetFlavorPrice(ctx context.Context, flavorID, region string) (float64, error)
}

// Engine computes instance migration recommendations.
type Engine struct {
	discoverer    ResourceDiscoverer
	expenses      ExpenseStore
	skus          SimilarSKUSource
	alibaba       AlibabaPriceSource
	excludedPools map[string]struct{}
	workers       int
	memo          *parallel.Memo
	logger        zerolog.Logger
}

// NewEngine creates a recommendation engine. excludedPools marks pools
// whose recommendations are emitted with IsExcluded set.
func NewEngine(discoverer ResourceDiscoverer, expenses ExpenseStore, skus SimilarSKUSource, alibaba AlibabaPriceSource, excludedPools []string, logger zerolog.Logger) *Engine {
	excluded := make(map[string]struct{}, len(excludedPools))
	for _, id := range excludedPools {
		excluded[id] = struct{}{}
	}
	return &Engine{
		discoverer:    discoverer,
		expenses:      expenses,
		skus:          skus,
		alibaba:       alibaba,
		excludedPools: excluded,
		workers:       10,
		memo:          parallel.NewMemo(5 * time.Minute),
		logger:        logger.With().Str("component", "migration-engine").Logger(),
	}
}

// SetWorkers bounds the per-instance pricing fan-out.
func (e *Engine) SetWorkers(n int) {
	if n > 0 {
		e.workers = n
	}
}

// SetMemoTTL controls how long catalog and price lookups are reused
// across instances within one recommendation run.
func (e *Engine) SetMemoTTL(ttl time.Duration) {
	if ttl > 0 {
		e.memo = parallel.NewMemo(ttl)
	}
}

// Recommend walks the organization's instances and emits one
// recommendation per instance that has a strictly cheaper same-group
// region. Spot instances and unsupported clouds are skipped.
func (e *Engine) Recommend(ctx context.Context, organizationID string) ([]models.MigrationRecommendation, error) {
	instances, err := e.discoverer.ListActiveInstances(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to discover instances: %w", err)
	}

	group := parallel.NewGroup(e.workers)
	defer group.Close()

	futures := make([]*parallel.Future, 0, len(instances))
	candidates := make([]models.DiscoveredInstance, 0, len(instances))
	for _, instance := range instances {
		if instance.Spotted {
			continue
		}
		if instance.CloudType != models.CloudAWS && instance.CloudType != models.CloudAlibaba {
			continue
		}
		inst := instance
		candidates = append(candidates, inst)
		futures = append(futures, group.Submit(func() (interface{}, error) {
			return e.recommendFor(ctx, inst)
		}))
	}

	var out []models.MigrationRecommendation
	for i, future := range futures {
		value, err := future.Result(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			e.logger.Warn().Err(err).Str("resource", candidates[i].ResourceID).
				Msg("skipping instance, recommendation failed")
			continue
		}
		if rec, ok := value.(*models.MigrationRecommendation); ok && rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// recommendFor returns nil without error when the instance has no cheaper
// same-group region.
func (e *Engine) recommendFor(ctx context.Context, instance models.DiscoveredInstance) (*models.MigrationRecommendation, error) {
	groups := regionGroupsFor(instance.CloudType)
	peers := groupPeers(groups, instance.Region)
	if peers == nil {
		return nil, nil
	}

	var currentPrice, bestPrice float64
	var bestRegion string
	var err error
	switch instance.CloudType {
	case models.CloudAWS:
		currentPrice, bestPrice, bestRegion, err = e.awsPrices(ctx, instance, peers)
	case models.CloudAlibaba:
		currentPrice, bestPrice, bestRegion, err = e.alibabaPrices(ctx, instance, peers)
	}
	if err != nil {
		return nil, err
	}
	if bestRegion == "" || bestRegion == instance.Region {
		return nil, nil
	}

	saving := (currentPrice - bestPrice) * models.HoursInMonth
	if saving <= 0 {
		return nil, nil
	}

	_, excluded := e.excludedPools[instance.PoolID]
	return &models.MigrationRecommendation{
		ID:                uuid.NewString(),
		ResourceID:        instance.ResourceID,
		CloudResourceID:   instance.CloudResourceID,
		CloudAccountID:    instance.CloudAccountID,
		Flavor:            instance.Flavor,
		CurrentRegion:     instance.Region,
		RecommendedRegion: bestRegion,
		Saving:            saving,
		IsExcluded:        excluded,
	}, nil
}

// awsPrices resolves the instance's billing SKU, pulls the similar-SKU set
// from the cache and compares the current region's hourly price against
// the cheapest same-group peer region.
func (e *Engine) awsPrices(ctx context.Context, instance models.DiscoveredInstance, peers []string) (current, best float64, bestRegion string, err error) {
	sku, err := e.expenses.LastUsedSKU(ctx, instance.CloudAccountID, instance.CloudResourceID)
	if err != nil {
		return 0, 0, "", fmt.Errorf("no billing sku for %s: %w", instance.CloudResourceID, err)
	}
	similar, err := e.skus.GetSimilarSKUs(ctx, sku)
	if err != nil {
		return 0, 0, "", err
	}

	peerSet := make(map[string]struct{}, len(peers))
	for _, region := range peers {
		peerSet[region] = struct{}{}
	}
	nameToCode := cloud.AWSRegionNameCodeMap()

	currentFound := false
	for _, doc := range similar {
		region := doc.RegionCode
		if region == "" {
			code, ok := resolveRegionCode(nameToCode, doc.Location)
			if !ok {
				e.logger.Warn().Str("location", doc.Location).Str("sku", doc.Sku).
					Msg("skipping sku with unresolvable location")
				continue
			}
			region = code
		}
		switch {
		case region == instance.Region:
			if !currentFound || doc.Price < current {
				current = doc.Price
				currentFound = true
			}
		default:
			if _, ok := peerSet[region]; !ok {
				continue
			}
			if bestRegion == "" || doc.Price < best {
				best, bestRegion = doc.Price, region
			}
		}
	}
	if !currentFound {
		return 0, 0, "", fmt.Errorf("%w: no price for %s in %s", models.ErrPricingNotFound, sku, instance.Region)
	}
	return current, best, bestRegion, nil
}

// alibabaPrices prices the instance's flavor in every same-group region
// where the flavor exists. Catalog and price lookups are memoized so
// instances sharing a flavor or region do not repeat the same API calls.
func (e *Engine) alibabaPrices(ctx context.Context, instance models.DiscoveredInstance, peers []string) (current, best float64, bestRegion string, err error) {
	current, err = e.alibabaFlavorPrice(ctx, instance.Flavor, instance.Region)
	if err != nil {
		return 0, 0, "", err
	}

	for _, region := range peers {
		flavors, err := e.alibabaRegionFlavors(ctx, region)
		if err != nil {
			e.logger.Warn().Err(err).Str("region", region).Msg("skipping region, flavor listing failed")
			continue
		}
		if _, ok := flavors[instance.Flavor]; !ok {
			continue
		}
		price, err := e.alibabaFlavorPrice(ctx, instance.Flavor, region)
		if err != nil {
			if errors.Is(err, models.ErrPricingNotFound) {
				continue
			}
			return 0, 0, "", err
		}
		if bestRegion == "" || price < best {
			best, bestRegion = price, region
		}
	}
	return current, best, bestRegion, nil
}

func (e *Engine) alibabaRegionFlavors(ctx context.Context, region string) (map[string]cloud.AlibabaFlavor, error) {
	value, err := e.memo.Do("alibaba-flavors/"+region, func() (interface{}, error) {
		return e.alibaba.GetAllFlavors(ctx, region)
	})
	if err != nil {
		return nil, err
	}
	return value.(map[string]cloud.AlibabaFlavor), nil
}

func (e *Engine) alibabaFlavorPrice(ctx context.Context, flavorID, region string) (float64, error) {
	value, err := e.memo.Do("alibaba-price/"+region+"/"+flavorID, func() (interface{}, error) {
		return e.alibaba.GetFlavorPrice(ctx, flavorID, region)
	})
	if err != nil {
		return 0, err
	}
	return value.(float64), nil
}
