package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/models"
	"github.com/optscale/flavorsearch/internal/parallel"
)

// AlibabaPricer is the slice of the Alibaba client the compute matcher needs.
type AlibabaPricer interface {
	GetAllFlavors(ctx context.Context, region string) (map[string]cloud.AlibabaFlavor, error)
	GetAvailableFlavors(ctx context.Context, region string) ([]string, error)
	GetFlavorPrices(ctx context.Context, flavorIDs []string, region string) (map[string]float64, error)
	GetFlavorPrice(ctx context.Context, flavorID, region string) (float64, error)
}

// AlibabaMatcher matches ECS instance types. Family equivalence is the
// provider's InstanceTypeFamily. Prices are hourly pay-as-you-go.
type AlibabaMatcher struct {
	client  AlibabaPricer
	workers int
	logger  zerolog.Logger
}

func NewAlibabaMatcher(client AlibabaPricer, logger zerolog.Logger) *AlibabaMatcher {
	return &AlibabaMatcher{
		client:  client,
		workers: defaultWorkers,
		logger:  logger.With().Str("component", "alibaba-matcher").Logger(),
	}
}

// SetWorkers bounds the catalog fan-out of one lookup.
func (m *AlibabaMatcher) SetWorkers(n int) {
	if n > 0 {
		m.workers = n
	}
}

var _ Matcher = (*AlibabaMatcher)(nil)

func (m *AlibabaMatcher) Match(ctx context.Context, region string, req models.FlavorRequirements, mode models.MatchMode) (*models.FlavorPriceRecord, error) {
	if mode == models.ModeCurrent {
		return m.matchCurrent(ctx, region, req)
	}
	return m.matchRelevant(ctx, region, req)
}

func (m *AlibabaMatcher) matchCurrent(ctx context.Context, region string, req models.FlavorRequirements) (*models.FlavorPriceRecord, error) {
	all, err := m.client.GetAllFlavors(ctx, region)
	if err != nil {
		return nil, err
	}
	source, ok := all[req.SourceFlavorID]
	if !ok {
		return nil, models.ErrNotMatched
	}
	prices, err := m.priceFlavors(ctx, []string{source.ID}, region)
	if err != nil {
		return nil, err
	}
	price, ok := prices[source.ID]
	if !ok {
		return nil, models.ErrNotMatched
	}
	return alibabaRecord(source, region, price), nil
}

func (m *AlibabaMatcher) matchRelevant(ctx context.Context, region string, req models.FlavorRequirements) (*models.FlavorPriceRecord, error) {
	// Full catalog and purchasable set are independent calls.
	group := parallel.NewGroup(m.workers)
	defer group.Close()
	allFuture := group.Submit(func() (interface{}, error) {
		return m.client.GetAllFlavors(ctx, region)
	})
	availableFuture := group.Submit(func() (interface{}, error) {
		return m.client.GetAvailableFlavors(ctx, region)
	})

	allValue, err := allFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	all := allValue.(map[string]cloud.AlibabaFlavor)
	availableValue, err := availableFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	available := availableValue.([]string)

	source, ok := all[req.SourceFlavorID]
	if !ok {
		return nil, models.ErrNotMatched
	}

	var ids []string
	var flavors []cloud.AlibabaFlavor
	for _, id := range available {
		f, ok := all[id]
		if !ok || f.Family != source.Family {
			continue
		}
		ids = append(ids, id)
		flavors = append(flavors, f)
	}
	if len(ids) == 0 {
		return nil, models.ErrNotMatched
	}

	prices, err := m.priceFlavors(ctx, ids, region)
	if err != nil {
		return nil, err
	}

	cands := make([]candidate, 0, len(flavors))
	for _, f := range flavors {
		price, ok := prices[f.ID]
		if !ok {
			continue
		}
		cands = append(cands, candidate{ID: f.ID, CPU: f.CPU, RAM: f.RAMGB, Price: price})
	}
	best, ok := selectRelevant(cands, req.CPU, false)
	if !ok {
		return nil, models.ErrNotMatched
	}
	f := all[best.ID]
	return alibabaRecord(f, region, best.Price), nil
}

// priceFlavors tries one bulk BSS request and, when the bulk response is
// unpriceable as a whole, falls back to individual requests. Flavors that
// still cannot be priced are logged and dropped.
func (m *AlibabaMatcher) priceFlavors(ctx context.Context, ids []string, region string) (map[string]float64, error) {
	prices, err := m.client.GetFlavorPrices(ctx, ids, region)
	if err == nil {
		return prices, nil
	}
	if !errors.Is(err, models.ErrPricingNotFound) {
		return nil, err
	}

	prices = make(map[string]float64, len(ids))
	for _, id := range ids {
		price, err := m.client.GetFlavorPrice(ctx, id, region)
		if err != nil {
			if errors.Is(err, models.ErrPricingNotFound) {
				m.logger.Warn().Str("flavor", id).Str("region", region).
					Msg("flavor has no pay-as-you-go price, skipping")
				continue
			}
			return nil, err
		}
		prices[id] = price
	}
	return prices, nil
}

func alibabaRecord(f cloud.AlibabaFlavor, region string, price float64) *models.FlavorPriceRecord {
	return &models.FlavorPriceRecord{
		FlavorID: f.ID,
		CPU:      f.CPU,
		RAM:      f.RAMGB,
		Region:   region,
		Price:    price,
	}
}

// AlibabaRDSPricer is the slice of the Alibaba client the RDS matcher needs.
type AlibabaRDSPricer interface {
	GetAvailableRDSClasses(ctx context.Context, region, zone, engine, engineVersion string) ([]cloud.AlibabaRDSClass, error)
	GetRDSClassPrices(ctx context.Context, classIDs []string, region string) (map[string]float64, error)
}

// AlibabaRDSMatcher matches RDS instance classes within the source class
// group. The classes API exposes no CPU counts, so search_relevant picks
// the cheapest class of the group.
type AlibabaRDSMatcher struct {
	client        AlibabaRDSPricer
	engine        string
	engineVersion string
	zone          string
	logger        zerolog.Logger
}

func NewAlibabaRDSMatcher(client AlibabaRDSPricer, engine, engineVersion, zone string, logger zerolog.Logger) *AlibabaRDSMatcher {
	if engine == "" {
		engine = "MySQL"
	}
	return &AlibabaRDSMatcher{
		client:        client,
		engine:        engine,
		engineVersion: engineVersion,
		zone:          zone,
		logger:        logger.With().Str("component", "alibaba-rds-matcher").Logger(),
	}
}

var _ Matcher = (*AlibabaRDSMatcher)(nil)

func (m *AlibabaRDSMatcher) Match(ctx context.Context, region string, req models.FlavorRequirements, mode models.MatchMode) (*models.FlavorPriceRecord, error) {
	classes, err := m.client.GetAvailableRDSClasses(ctx, region, m.zone, m.engine, m.engineVersion)
	if err != nil {
		return nil, err
	}

	group := cloud.RDSClassGroup(req.SourceFlavorID)
	var ids []string
	sourceAvailable := false
	for _, class := range classes {
		if class.Group != group {
			continue
		}
		ids = append(ids, class.Class)
		if class.Class == req.SourceFlavorID {
			sourceAvailable = true
		}
	}

	if mode == models.ModeCurrent {
		if !sourceAvailable {
			return nil, models.ErrNotMatched
		}
		ids = []string{req.SourceFlavorID}
	}
	if len(ids) == 0 {
		return nil, models.ErrNotMatched
	}

	prices, err := m.client.GetRDSClassPrices(ctx, ids, region)
	if err != nil {
		if errors.Is(err, models.ErrPricingNotFound) {
			return nil, fmt.Errorf("%w: rds group %s in %s", models.ErrNotMatched, group, region)
		}
		return nil, err
	}

	bestID, bestPrice := "", 0.0
	for _, id := range ids {
		price, ok := prices[id]
		if !ok {
			m.logger.Warn().Str("class", id).Str("region", region).
				Msg("rds class has no pay-as-you-go price, skipping")
			continue
		}
		if bestID == "" || price < bestPrice {
			bestID, bestPrice = id, price
		}
	}
	if bestID == "" {
		return nil, models.ErrNotMatched
	}
	return &models.FlavorPriceRecord{
		FlavorID: bestID,
		Region:   region,
		Price:    bestPrice,
	}, nil
}
