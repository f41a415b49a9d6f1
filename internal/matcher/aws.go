package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/models"
	"github.com/optscale/flavorsearch/internal/parallel"
)

// AWSPricer is the slice of the AWS client the matcher needs.
type AWSPricer interface {
	GetPricing(ctx context.Context, filters map[string]string) ([]models.CachedSKU, error)
	GetAllInstanceTypes(ctx context.Context, region string) (map[string]cloud.InstanceTypeInfo, error)
}

// AWSMatcher matches EC2 flavors via the Price List API. Prices are
// reported monthly (hourly rate times models.HoursInMonth).
type AWSMatcher struct {
	client  AWSPricer
	workers int
	logger  zerolog.Logger
}

func NewAWSMatcher(client AWSPricer, logger zerolog.Logger) *AWSMatcher {
	return &AWSMatcher{
		client:  client,
		workers: defaultWorkers,
		logger:  logger.With().Str("component", "aws-matcher").Logger(),
	}
}

// SetWorkers bounds the catalog fan-out of one lookup.
func (m *AWSMatcher) SetWorkers(n int) {
	if n > 0 {
		m.workers = n
	}
}

var _ Matcher = (*AWSMatcher)(nil)

func (m *AWSMatcher) Match(ctx context.Context, region string, req models.FlavorRequirements, mode models.MatchMode) (*models.FlavorPriceRecord, error) {
	location, ok := cloud.AWSLocationForRegionCode(region)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRegionNotFound, region)
	}

	preinstalled := req.PreinstalledSoftware
	if preinstalled == "" {
		preinstalled = "NA"
	}
	filters := map[string]string{
		"location":        location,
		"operatingSystem": "Linux",
		"tenancy":         "Shared",
		"preInstalledSw":  preinstalled,
		"capacitystatus":  "Used",
	}
	if mode == models.ModeCurrent {
		filters["instanceType"] = req.SourceFlavorID
	}

	// Price list and instance type enumeration are independent calls.
	group := parallel.NewGroup(m.workers)
	defer group.Close()
	pricesFuture := group.Submit(func() (interface{}, error) {
		return m.client.GetPricing(ctx, filters)
	})
	typesFuture := group.Submit(func() (interface{}, error) {
		return m.client.GetAllInstanceTypes(ctx, region)
	})

	pricesValue, err := pricesFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	skus := pricesValue.([]models.CachedSKU)
	typesValue, err := typesFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	types := typesValue.(map[string]cloud.InstanceTypeInfo)

	if len(skus) == 0 {
		return nil, models.ErrNotMatched
	}

	if mode == models.ModeCurrent {
		best, ok := m.bestForType(skus, req.SourceFlavorID)
		if !ok {
			return nil, models.ErrNotMatched
		}
		return m.record(best, types, region), nil
	}

	family := awsFamily(req.SourceFlavorID)
	cands := make([]candidate, 0, len(skus))
	for _, sku := range skus {
		if awsFamily(sku.InstanceType) != family {
			continue
		}
		info, known := types[sku.InstanceType]
		if !known {
			continue
		}
		cands = append(cands, candidate{
			ID:    sku.InstanceType,
			CPU:   info.CPU,
			RAM:   float64(info.RAMMiB) / 1024,
			Price: sku.Price,
		})
	}

	// Exact-CPU tiers keep the most expensive candidate here.
	best, ok := selectRelevant(cands, req.CPU, true)
	if !ok {
		return nil, models.ErrNotMatched
	}
	return &models.FlavorPriceRecord{
		FlavorID: best.ID,
		CPU:      best.CPU,
		RAM:      best.RAM,
		Region:   region,
		Price:    best.Price * models.HoursInMonth,
	}, nil
}

// bestForType picks the highest-priced offer of one instance type, the
// policy used for exact matches.
func (m *AWSMatcher) bestForType(skus []models.CachedSKU, instanceType string) (models.CachedSKU, bool) {
	var best models.CachedSKU
	found := false
	for _, sku := range skus {
		if sku.InstanceType != instanceType {
			continue
		}
		if !found || sku.Price > best.Price {
			best = sku
			found = true
		}
	}
	return best, found
}

func (m *AWSMatcher) record(sku models.CachedSKU, types map[string]cloud.InstanceTypeInfo, region string) *models.FlavorPriceRecord {
	rec := &models.FlavorPriceRecord{
		FlavorID: sku.InstanceType,
		Region:   region,
		Price:    sku.Price * models.HoursInMonth,
	}
	if info, ok := types[sku.InstanceType]; ok {
		rec.CPU = info.CPU
		rec.RAM = float64(info.RAMMiB) / 1024
	}
	return rec
}

// awsFamily is the token before the first dot, e.g. "m5" for "m5.large".
func awsFamily(instanceType string) string {
	return strings.SplitN(instanceType, ".", 2)[0]
}
