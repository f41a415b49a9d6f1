package matcher

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/models"
)

// NebiusPricer is the slice of the Nebius client the matcher needs.
type NebiusPricer interface {
	ListSKUs(ctx context.Context, currency string) ([]cloud.NebiusSKU, error)
}

// nebiusPlatform describes the memory shapes a compute platform supports.
// RAMPerCore values are GB per vCPU, ascending.
type nebiusPlatform struct {
	CatalogName string
	Fractions   []int
	RAMPerCore  []float64
}

// nebiusPlatforms keys are the platform IDs used as SourceFlavorID.
var nebiusPlatforms = map[string]nebiusPlatform{
	"standard-v1": {
		CatalogName: "Intel Broadwell",
		Fractions:   []int{5, 20, 100},
		RAMPerCore:  []float64{1, 2, 3, 4, 5, 6, 7, 8},
	},
	"standard-v2": {
		CatalogName: "Intel Cascade Lake",
		Fractions:   []int{5, 20, 50, 100},
		RAMPerCore:  []float64{0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 5, 6, 7, 8},
	},
	"standard-v3": {
		CatalogName: "Intel Ice Lake",
		Fractions:   []int{20, 50, 100},
		RAMPerCore:  []float64{1, 2, 3, 4, 5, 6, 7, 8},
	},
}

// NebiusMatcher prices compute shapes from the SKU catalog. A "flavor" is
// a platform plus a shape (vCPUs, RAM, core fraction); SourceFlavorID
// carries the platform ID. Prices are hourly.
type NebiusMatcher struct {
	client NebiusPricer
	logger zerolog.Logger
}

func NewNebiusMatcher(client NebiusPricer, logger zerolog.Logger) *NebiusMatcher {
	return &NebiusMatcher{
		client: client,
		logger: logger.With().Str("component", "nebius-matcher").Logger(),
	}
}

var _ Matcher = (*NebiusMatcher)(nil)

func (m *NebiusMatcher) Match(ctx context.Context, region string, req models.FlavorRequirements, mode models.MatchMode) (*models.FlavorPriceRecord, error) {
	platform, ok := nebiusPlatforms[req.SourceFlavorID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown platform %q", models.ErrInvalidParameters, req.SourceFlavorID)
	}
	if req.CPU <= 0 || req.RAM <= 0 {
		return nil, fmt.Errorf("%w: cpu and ram are required", models.ErrInvalidParameters)
	}
	fraction := req.CoreFraction
	if fraction == 0 {
		fraction = 100
	}
	if !containsInt(platform.Fractions, fraction) {
		return nil, fmt.Errorf("%w: platform %s does not offer %d%% cores",
			models.ErrInvalidParameters, req.SourceFlavorID, fraction)
	}

	ramPerCore, ok := m.resolveRAMPerCore(platform, req, mode)
	if !ok {
		return nil, models.ErrNotMatched
	}
	totalRAM := ramPerCore * float64(req.CPU)

	skus, err := m.client.ListSKUs(ctx, "USD")
	if err != nil {
		return nil, err
	}
	coreName := fmt.Sprintf("%s. %d%% vCPU", platform.CatalogName, fraction)
	ramName := platform.CatalogName + ". RAM"
	var corePrice, ramPrice float64
	var haveCore, haveRAM bool
	for _, sku := range skus {
		switch sku.Name {
		case coreName:
			corePrice, haveCore = sku.Price, true
		case ramName:
			ramPrice, haveRAM = sku.Price, true
		}
	}
	if !haveCore || !haveRAM {
		m.logger.Warn().Str("platform", req.SourceFlavorID).Int("fraction", fraction).
			Msg("pricing catalog is missing platform rates")
		return nil, models.ErrNotMatched
	}

	return &models.FlavorPriceRecord{
		FlavorID: req.SourceFlavorID,
		CPU:      req.CPU,
		RAM:      totalRAM,
		Region:   region,
		Price:    float64(req.CPU)*corePrice + totalRAM*ramPrice,
	}, nil
}

// resolveRAMPerCore maps the requested memory shape onto the platform
// table. The request is rounded to the nearest half GB per core; an exact
// table hit wins. In search_relevant mode a miss falls back to the largest
// supported value below the request, while a request at or above the
// platform maximum is rejected.
func (m *NebiusMatcher) resolveRAMPerCore(platform nebiusPlatform, req models.FlavorRequirements, mode models.MatchMode) (float64, bool) {
	rounded := math.Round(req.RAM/float64(req.CPU)*2) / 2
	for _, v := range platform.RAMPerCore {
		if v == rounded {
			return v, true
		}
	}
	if mode == models.ModeCurrent {
		return 0, false
	}

	max := platform.RAMPerCore[len(platform.RAMPerCore)-1]
	if rounded >= max {
		m.logger.Warn().Str("platform", req.SourceFlavorID).Float64("ram_per_core", rounded).
			Msg("requested memory exceeds platform maximum")
		return 0, false
	}
	best, found := 0.0, false
	for _, v := range platform.RAMPerCore {
		if v < rounded {
			best, found = v, true
		}
	}
	return best, found
}

func containsInt(vals []int, v int) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
