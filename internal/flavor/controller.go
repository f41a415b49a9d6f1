// Package flavor dispatches flavor lookups to the per-cloud matchers.
package flavor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/matcher"
	"github.com/optscale/flavorsearch/internal/metrics"
	"github.com/optscale/flavorsearch/internal/models"
)

// MatcherSource resolves the matcher for one (cloud, resource type) pair.
// It returns nil when the pair is not supported.
type MatcherSource interface {
	Matcher(cloudType models.CloudType, resourceType models.ResourceType) (matcher.Matcher, error)
}

// Controller runs flavor lookups. A no-match outcome is not an error: the
// caller gets an empty result so unsupported clouds and absent flavors
// degrade silently, while credential, region and parameter failures
// propagate.
type Controller struct {
	source  MatcherSource
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewController creates a lookup controller. metrics may be nil.
func NewController(source MatcherSource, m *metrics.Metrics, logger zerolog.Logger) *Controller {
	return &Controller{
		source:  source,
		metrics: m,
		logger:  logger.With().Str("component", "flavor-controller").Logger(),
	}
}

// FindFlavor finds the best-fitting flavor for the request. The result map
// carries "flavor", "cpu", "ram" and "price" keys, or is empty when
// nothing matched.
func (c *Controller) FindFlavor(ctx context.Context, cloudType models.CloudType, resourceType models.ResourceType, region string, req models.FlavorRequirements, mode models.MatchMode) (map[string]interface{}, error) {
	start := time.Now()
	result, err := c.findFlavor(ctx, cloudType, resourceType, region, req, mode)
	if c.metrics != nil {
		outcome := "matched"
		switch {
		case err != nil:
			outcome = "error"
		case len(result) == 0:
			outcome = "not_matched"
		}
		c.metrics.RecordLookup(string(cloudType), string(resourceType), outcome, time.Since(start).Seconds())
	}
	return result, err
}

func (c *Controller) findFlavor(ctx context.Context, cloudType models.CloudType, resourceType models.ResourceType, region string, req models.FlavorRequirements, mode models.MatchMode) (map[string]interface{}, error) {
	if req.SourceFlavorID == "" {
		return nil, models.ErrInvalidParameters
	}
	if mode != models.ModeCurrent && mode != models.ModeSearchRelevant {
		return nil, models.ErrInvalidParameters
	}

	m, err := c.source.Matcher(cloudType, resourceType)
	if err != nil {
		return nil, err
	}
	if m == nil {
		c.logger.Debug().Str("cloud", string(cloudType)).Str("resource_type", string(resourceType)).
			Msg("unsupported lookup target")
		return map[string]interface{}{}, nil
	}

	rec, err := m.Match(ctx, region, req, mode)
	if err != nil {
		if errors.Is(err, models.ErrNotMatched) {
			return map[string]interface{}{}, nil
		}
		return nil, err
	}
	return map[string]interface{}{
		"flavor": rec.FlavorID,
		"cpu":    rec.CPU,
		"ram":    rec.RAM,
		"price":  rec.Price,
	}, nil
}
