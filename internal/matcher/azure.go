package matcher

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/models"
	"github.com/optscale/flavorsearch/internal/parallel"
)

// AzurePricer is the slice of the Azure client the matcher needs.
type AzurePricer interface {
	ListPrices(ctx context.Context, filter string) ([]cloud.RetailPrice, error)
	ListVMSizes(ctx context.Context, region string) ([]cloud.AzureVMSize, error)
}

// AzureMatcher matches VM sizes against the retail price catalog. Family
// equivalence wildcards the digit runs of the source SKU name, so
// Standard_D2s_v5 pulls in Standard_D4s_v5 and Standard_D8s_v5 but not
// Standard_E2s_v5. Prices are hourly consumption rates.
type AzureMatcher struct {
	client  AzurePricer
	workers int
	logger  zerolog.Logger
}

func NewAzureMatcher(client AzurePricer, logger zerolog.Logger) *AzureMatcher {
	return &AzureMatcher{
		client:  client,
		workers: defaultWorkers,
		logger:  logger.With().Str("component", "azure-matcher").Logger(),
	}
}

// SetWorkers bounds the catalog fan-out of one lookup.
func (m *AzureMatcher) SetWorkers(n int) {
	if n > 0 {
		m.workers = n
	}
}

var _ Matcher = (*AzureMatcher)(nil)

func (m *AzureMatcher) Match(ctx context.Context, region string, req models.FlavorRequirements, mode models.MatchMode) (*models.FlavorPriceRecord, error) {
	filter := fmt.Sprintf(
		"armRegionName eq '%s' and serviceName eq 'Virtual Machines' and priceType eq 'Consumption'",
		region)

	if mode == models.ModeCurrent {
		prices, err := m.client.ListPrices(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(prices) == 0 {
			return nil, fmt.Errorf("%w: no virtual machine prices in %s", models.ErrRegionNotFound, region)
		}
		return m.matchCurrent(ctx, region, req, prices)
	}

	// Retail prices and VM size enumeration are independent calls.
	group := parallel.NewGroup(m.workers)
	defer group.Close()
	pricesFuture := group.Submit(func() (interface{}, error) {
		return m.client.ListPrices(ctx, filter)
	})
	sizesFuture := group.Submit(func() (interface{}, error) {
		return m.client.ListVMSizes(ctx, region)
	})

	pricesValue, err := pricesFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	prices := pricesValue.([]cloud.RetailPrice)
	sizesValue, err := sizesFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	sizes := sizesValue.([]cloud.AzureVMSize)

	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no virtual machine prices in %s", models.ErrRegionNotFound, region)
	}
	return m.matchRelevant(region, req, prices, sizes)
}

func (m *AzureMatcher) matchCurrent(ctx context.Context, region string, req models.FlavorRequirements, prices []cloud.RetailPrice) (*models.FlavorPriceRecord, error) {
	var best *cloud.RetailPrice
	for i := range prices {
		p := &prices[i]
		if p.ArmSkuName != req.SourceFlavorID {
			continue
		}
		if req.MeterID != "" {
			if p.MeterID != req.MeterID {
				continue
			}
		} else {
			if azureMeterClass(p) != meterOnDemand {
				continue
			}
			if !azureOSMatches(p, req.OSType) {
				continue
			}
		}
		if best == nil || p.RetailPrice < best.RetailPrice {
			best = p
		}
	}
	if best == nil {
		return nil, models.ErrNotMatched
	}
	return m.record(ctx, region, *best)
}

func (m *AzureMatcher) matchRelevant(region string, req models.FlavorRequirements, prices []cloud.RetailPrice, sizes []cloud.AzureVMSize) (*models.FlavorPriceRecord, error) {
	family, err := azureFamilyPattern(req.SourceFlavorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidParameters, err)
	}

	// The source flavor's meter class (on-demand, spot, low priority)
	// constrains the candidates: a spot source stays within spot meters.
	class := meterOnDemand
	for i := range prices {
		p := &prices[i]
		if p.ArmSkuName == req.SourceFlavorID && (req.MeterID == "" || p.MeterID == req.MeterID) {
			class = azureMeterClass(p)
			break
		}
	}

	cpuBySize := make(map[string]cloud.AzureVMSize, len(sizes))
	for _, s := range sizes {
		cpuBySize[s.Name] = s
	}

	var cands []candidate
	seen := make(map[string]struct{})
	for i := range prices {
		p := &prices[i]
		if !family.MatchString(p.ArmSkuName) {
			continue
		}
		if azureMeterClass(p) != class {
			continue
		}
		if !azureOSMatches(p, req.OSType) {
			continue
		}
		size, ok := cpuBySize[p.ArmSkuName]
		if !ok {
			continue
		}
		// One candidate per size; the catalog repeats sizes per meter.
		key := p.ArmSkuName + "|" + p.MeterID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cands = append(cands, candidate{
			ID:    p.ArmSkuName,
			CPU:   size.CPU,
			RAM:   float64(size.RAMMB) / 1024,
			Price: p.RetailPrice,
		})
	}

	best, ok := selectRelevant(cands, req.CPU, false)
	if !ok {
		return nil, models.ErrNotMatched
	}
	return &models.FlavorPriceRecord{
		FlavorID: best.ID,
		CPU:      best.CPU,
		RAM:      best.RAM,
		Region:   region,
		Price:    best.Price,
	}, nil
}

func (m *AzureMatcher) record(ctx context.Context, region string, p cloud.RetailPrice) (*models.FlavorPriceRecord, error) {
	rec := &models.FlavorPriceRecord{
		FlavorID: p.ArmSkuName,
		Region:   region,
		Price:    p.RetailPrice,
	}
	sizes, err := m.client.ListVMSizes(ctx, region)
	if err != nil {
		// Size enumeration needs ARM credentials; the price alone is
		// still a valid answer.
		m.logger.Debug().Err(err).Msg("vm size enumeration unavailable")
		return rec, nil
	}
	for _, s := range sizes {
		if s.Name == p.ArmSkuName {
			rec.CPU = s.CPU
			rec.RAM = float64(s.RAMMB) / 1024
			break
		}
	}
	return rec, nil
}

type meterClass int

const (
	meterOnDemand meterClass = iota
	meterSpot
	meterLowPriority
)

func azureMeterClass(p *cloud.RetailPrice) meterClass {
	name := p.MeterName + " " + p.SkuName
	switch {
	case strings.Contains(name, "Spot"):
		return meterSpot
	case strings.Contains(name, "Low Priority"):
		return meterLowPriority
	}
	return meterOnDemand
}

// azureOSMatches checks the product name for the requested OS. Windows
// products carry "Windows" in the product name; everything else is Linux.
func azureOSMatches(p *cloud.RetailPrice, osType string) bool {
	isWindows := strings.Contains(p.ProductName, "Windows")
	if strings.EqualFold(osType, "windows") {
		return isWindows
	}
	return !isWindows
}

var digitRun = regexp.MustCompile(`\d+`)

// azureFamilyPattern wildcards the digit runs of the source SKU name while
// keeping a version suffix such as _v5 literal: Standard_D2s_v5 becomes
// ^Standard_D\d+s_v5$. Only the size digits vary within a family.
func azureFamilyPattern(skuName string) (*regexp.Regexp, error) {
	if skuName == "" {
		return nil, fmt.Errorf("empty source flavor")
	}
	// Keep a version suffix such as _v5 literal, wildcard the rest.
	version := ""
	base := skuName
	if idx := strings.LastIndex(skuName, "_v"); idx > 0 {
		base, version = skuName[:idx], skuName[idx:]
	}
	pattern := digitRun.ReplaceAllString(regexp.QuoteMeta(base), `\d+`)
	return regexp.Compile("^" + pattern + regexp.QuoteMeta(version) + "$")
}
