package flavor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/matcher"
	"github.com/optscale/flavorsearch/internal/models"
)

type stubMatcher struct {
	rec   *models.FlavorPriceRecord
	err   error
	calls int
}

func (s *stubMatcher) Match(context.Context, string, models.FlavorRequirements, models.MatchMode) (*models.FlavorPriceRecord, error) {
	s.calls++
	return s.rec, s.err
}

type stubSource struct {
	matchers map[models.CloudType]*stubMatcher
}

func (s *stubSource) Matcher(ct models.CloudType, rt models.ResourceType) (matcher.Matcher, error) {
	if rt != models.ResourceInstance {
		return nil, nil
	}
	m, ok := s.matchers[ct]
	if !ok {
		return nil, nil
	}
	return m, nil
}

func TestFindFlavorReturnsRecordKeys(t *testing.T) {
	src := &stubSource{matchers: map[models.CloudType]*stubMatcher{
		models.CloudAWS: {rec: &models.FlavorPriceRecord{
			FlavorID: "m5.large", CPU: 2, RAM: 8, Region: "us-east-1", Price: 69.12,
		}},
	}}
	c := NewController(src, nil, zerolog.Nop())

	result, err := c.FindFlavor(context.Background(), models.CloudAWS, models.ResourceInstance,
		"us-east-1", models.FlavorRequirements{SourceFlavorID: "m5.large"}, models.ModeCurrent)
	if err != nil {
		t.Fatalf("FindFlavor: %v", err)
	}
	if result["flavor"] != "m5.large" || result["cpu"] != 2 || result["ram"] != 8.0 || result["price"] != 69.12 {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestFindFlavorNoMatchIsEmptyResult(t *testing.T) {
	src := &stubSource{matchers: map[models.CloudType]*stubMatcher{
		models.CloudAWS: {err: models.ErrNotMatched},
	}}
	c := NewController(src, nil, zerolog.Nop())

	result, err := c.FindFlavor(context.Background(), models.CloudAWS, models.ResourceInstance,
		"us-east-1", models.FlavorRequirements{SourceFlavorID: "m5.large"}, models.ModeCurrent)
	if err != nil {
		t.Fatalf("FindFlavor: %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected empty result, got %v", result)
	}
}

func TestFindFlavorUnsupportedTargetIsEmptyResult(t *testing.T) {
	c := NewController(&stubSource{}, nil, zerolog.Nop())

	for _, tt := range []struct {
		cloud models.CloudType
		rt    models.ResourceType
	}{
		{models.CloudType("k8s_cnr"), models.ResourceInstance},
		{models.CloudAWS, models.ResourceRDS},
		{models.CloudNebius, models.ResourceRDS},
	} {
		result, err := c.FindFlavor(context.Background(), tt.cloud, tt.rt, "anywhere",
			models.FlavorRequirements{SourceFlavorID: "x"}, models.ModeCurrent)
		if err != nil {
			t.Fatalf("FindFlavor(%s, %s): %v", tt.cloud, tt.rt, err)
		}
		if len(result) != 0 {
			t.Fatalf("FindFlavor(%s, %s) = %v, want empty", tt.cloud, tt.rt, result)
		}
	}
}

func TestFindFlavorPropagatesHardErrors(t *testing.T) {
	for _, sentinel := range []error{
		models.ErrForbidden, models.ErrRegionNotFound, models.ErrInvalidParameters,
	} {
		src := &stubSource{matchers: map[models.CloudType]*stubMatcher{
			models.CloudAWS: {err: sentinel},
		}}
		c := NewController(src, nil, zerolog.Nop())
		_, err := c.FindFlavor(context.Background(), models.CloudAWS, models.ResourceInstance,
			"us-east-1", models.FlavorRequirements{SourceFlavorID: "m5.large"}, models.ModeCurrent)
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected %v to propagate, got %v", sentinel, err)
		}
	}
}

func TestFindFlavorValidatesInput(t *testing.T) {
	c := NewController(&stubSource{}, nil, zerolog.Nop())

	_, err := c.FindFlavor(context.Background(), models.CloudAWS, models.ResourceInstance,
		"us-east-1", models.FlavorRequirements{}, models.ModeCurrent)
	if !errors.Is(err, models.ErrInvalidParameters) {
		t.Fatalf("missing source flavor: got %v", err)
	}

	_, err = c.FindFlavor(context.Background(), models.CloudAWS, models.ResourceInstance,
		"us-east-1", models.FlavorRequirements{SourceFlavorID: "m5.large"}, models.MatchMode("fuzzy"))
	if !errors.Is(err, models.ErrInvalidParameters) {
		t.Fatalf("bad mode: got %v", err)
	}
}

func TestFindFlavorReusesMatcher(t *testing.T) {
	m := &stubMatcher{rec: &models.FlavorPriceRecord{FlavorID: "m5.large"}}
	src := &stubSource{matchers: map[models.CloudType]*stubMatcher{models.CloudAWS: m}}
	c := NewController(src, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		if _, err := c.FindFlavor(context.Background(), models.CloudAWS, models.ResourceInstance,
			"us-east-1", models.FlavorRequirements{SourceFlavorID: "m5.large"}, models.ModeCurrent); err != nil {
			t.Fatalf("FindFlavor: %v", err)
		}
	}
	if m.calls != 3 {
		t.Fatalf("matcher called %d times", m.calls)
	}
}
