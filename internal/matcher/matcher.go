// Package matcher implements per-cloud flavor matching. Every matcher
// shares one contract: given a region, the caller's requirements and a
// match mode, return the best-fitting flavor with its price, or
// models.ErrNotMatched when the catalog has nothing suitable.
package matcher

import (
	"context"

	"github.com/optscale/flavorsearch/internal/models"
)

// Matcher finds a priced flavor in one cloud's catalog.
type Matcher interface {
	Match(ctx context.Context, region string, req models.FlavorRequirements, mode models.MatchMode) (*models.FlavorPriceRecord, error)
}

// defaultWorkers bounds the catalog fan-out of one lookup when the caller
// does not size the pool explicitly.
const defaultWorkers = 10

// candidate is a priced flavor under consideration.
type candidate struct {
	ID    string
	CPU   int
	RAM   float64
	Price float64
}

// selectRelevant applies the search_relevant policy to a candidate set:
// prefer flavors with exactly the requested CPU count; when none exist,
// fall back to the smallest CPU count above the request. Within the chosen
// CPU tier the candidate with the lowest price wins; ties keep the first
// seen. maxPrice inverts the in-tier selection for clouds that keep the
// most expensive exact match.
func selectRelevant(cands []candidate, cpu int, maxPrice bool) (candidate, bool) {
	var exact []candidate
	for _, c := range cands {
		if c.CPU == cpu {
			exact = append(exact, c)
		}
	}
	if len(exact) > 0 {
		return pickByPrice(exact, maxPrice), true
	}

	// Nearest-larger tier.
	bestCPU := 0
	for _, c := range cands {
		if c.CPU > cpu && (bestCPU == 0 || c.CPU < bestCPU) {
			bestCPU = c.CPU
		}
	}
	if bestCPU == 0 {
		return candidate{}, false
	}
	var tier []candidate
	for _, c := range cands {
		if c.CPU == bestCPU {
			tier = append(tier, c)
		}
	}
	return pickByPrice(tier, maxPrice), true
}

func pickByPrice(cands []candidate, max bool) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if max {
			if c.Price > best.Price {
				best = c
			}
		} else if c.Price < best.Price {
			best = c
		}
	}
	return best
}
