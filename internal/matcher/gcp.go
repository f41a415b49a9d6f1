package matcher

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/models"
	"github.com/optscale/flavorsearch/internal/parallel"
)

// GCPPricer is the slice of the GCP client the matcher needs.
type GCPPricer interface {
	ListMachineTypes(ctx context.Context, region string) (map[string]cloud.GCPMachineType, error)
	ListFamilyRates(ctx context.Context, region string) (map[string]cloud.GCPRate, error)
}

// GCPMatcher matches Compute Engine machine types. Family equivalence is
// the token before the first dash ("n2" for n2-standard-4). Prices are
// hourly, composed from per-core and per-GB family rates.
type GCPMatcher struct {
	client  GCPPricer
	workers int
	logger  zerolog.Logger
}

func NewGCPMatcher(client GCPPricer, logger zerolog.Logger) *GCPMatcher {
	return &GCPMatcher{
		client:  client,
		workers: defaultWorkers,
		logger:  logger.With().Str("component", "gcp-matcher").Logger(),
	}
}

// SetWorkers bounds the catalog fan-out of one lookup.
func (m *GCPMatcher) SetWorkers(n int) {
	if n > 0 {
		m.workers = n
	}
}

var _ Matcher = (*GCPMatcher)(nil)

func (m *GCPMatcher) Match(ctx context.Context, region string, req models.FlavorRequirements, mode models.MatchMode) (*models.FlavorPriceRecord, error) {
	// Machine type and billing rate catalogs are independent calls.
	group := parallel.NewGroup(m.workers)
	defer group.Close()
	typesFuture := group.Submit(func() (interface{}, error) {
		return m.client.ListMachineTypes(ctx, region)
	})
	ratesFuture := group.Submit(func() (interface{}, error) {
		return m.client.ListFamilyRates(ctx, region)
	})

	typesValue, err := typesFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	types := typesValue.(map[string]cloud.GCPMachineType)
	ratesValue, err := ratesFuture.Result(ctx)
	if err != nil {
		return nil, err
	}
	rates := ratesValue.(map[string]cloud.GCPRate)

	if mode == models.ModeCurrent {
		mt, ok := types[req.SourceFlavorID]
		if !ok {
			return nil, models.ErrNotMatched
		}
		price, ok := cloud.MachineTypePrice(mt, rates)
		if !ok {
			return nil, models.ErrNotMatched
		}
		return gcpRecord(mt, region, price), nil
	}

	family := gcpFamily(req.SourceFlavorID)
	var cands []candidate
	for _, mt := range types {
		if gcpFamily(mt.Name) != family {
			continue
		}
		price, ok := cloud.MachineTypePrice(mt, rates)
		if !ok {
			continue
		}
		cands = append(cands, candidate{
			ID:    mt.Name,
			CPU:   int(mt.GuestCpus),
			RAM:   float64(mt.MemoryMb) / 1024,
			Price: price,
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

func gcpRecord(mt cloud.GCPMachineType, region string, price float64) *models.FlavorPriceRecord {
	return &models.FlavorPriceRecord{
		FlavorID: mt.Name,
		CPU:      int(mt.GuestCpus),
		RAM:      float64(mt.MemoryMb) / 1024,
		Region:   region,
		Price:    price,
	}
}

// gcpFamily is the token before the first dash, e.g. "n2" for
// "n2-standard-4".
func gcpFamily(name string) string {
	return strings.SplitN(name, "-", 2)[0]
}
