package migration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/models"
)

type fakeDiscoverer struct {
	instances []models.DiscoveredInstance
}

func (f *fakeDiscoverer) ListActiveInstances(context.Context, string) ([]models.DiscoveredInstance, error) {
	return f.instances, nil
}

type fakeExpenses struct {
	skus map[string]string
}

func (f *fakeExpenses) LastUsedSKU(_ context.Context, _, cloudResourceID string) (string, error) {
	sku, ok := f.skus[cloudResourceID]
	if !ok {
		return "", fmt.Errorf("no expenses for %s", cloudResourceID)
	}
	return sku, nil
}

type fakeSKUSource struct {
	similar map[string][]models.CachedSKU
}

func (f *fakeSKUSource) GetSimilarSKUs(_ context.Context, sku string) ([]models.CachedSKU, error) {
	return f.similar[sku], nil
}

type fakeAlibabaPrices struct {
	mu          sync.Mutex
	flavors     map[string]map[string]cloud.AlibabaFlavor
	prices      map[string]map[string]float64
	flavorCalls map[string]int
}

func (f *fakeAlibabaPrices) GetAllFlavors(_ context.Context, region string) (map[string]cloud.AlibabaFlavor, error) {
	f.mu.Lock()
	if f.flavorCalls == nil {
		f.flavorCalls = make(map[string]int)
	}
	f.flavorCalls[region]++
	f.mu.Unlock()
	return f.flavors[region], nil
}

func (f *fakeAlibabaPrices) GetFlavorPrice(_ context.Context, flavorID, region string) (float64, error) {
	price, ok := f.prices[region][flavorID]
	if !ok {
		return 0, fmt.Errorf("%w: %s in %s", models.ErrPricingNotFound, flavorID, region)
	}
	return price, nil
}

func regionSKU(sku, region string, price float64) models.CachedSKU {
	return models.CachedSKU{Sku: sku, RegionCode: region, InstanceType: "m5.large", Price: price}
}

func awsInstance(id, region string) models.DiscoveredInstance {
	return models.DiscoveredInstance{
		ResourceID:      id,
		CloudResourceID: "i-" + id,
		CloudAccountID:  "acc-aws",
		CloudType:       models.CloudAWS,
		Region:          region,
		Flavor:          "m5.large",
	}
}

func TestRecommendAWSFindsCheaperRegion(t *testing.T) {
	engine := NewEngine(
		&fakeDiscoverer{instances: []models.DiscoveredInstance{awsInstance("r1", "us-east-1")}},
		&fakeExpenses{skus: map[string]string{"i-r1": "SKU-EAST"}},
		&fakeSKUSource{similar: map[string][]models.CachedSKU{
			"SKU-EAST": {
				regionSKU("SKU-EAST", "us-east-1", 0.096),
				regionSKU("SKU-WEST", "us-west-2", 0.084),
				regionSKU("SKU-EU", "eu-central-1", 0.050), // outside the us group
			},
		}},
		nil, nil, zerolog.Nop())

	recs, err := engine.Recommend(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0]
	if rec.RecommendedRegion != "us-west-2" {
		t.Fatalf("recommended %q, want us-west-2 (eu price must be ignored)", rec.RecommendedRegion)
	}
	if rec.CurrentRegion == rec.RecommendedRegion {
		t.Fatal("regions must differ")
	}
	want := (0.096 - 0.084) * models.HoursInMonth
	if math.Abs(rec.Saving-want) > 1e-9 {
		t.Fatalf("saving = %v, want %v", rec.Saving, want)
	}
	if rec.ID == "" || rec.ResourceID != "r1" || rec.Flavor != "m5.large" {
		t.Fatalf("incomplete recommendation: %+v", rec)
	}
}

func TestRecommendNoSavingNoRecommendation(t *testing.T) {
	engine := NewEngine(
		&fakeDiscoverer{instances: []models.DiscoveredInstance{awsInstance("r1", "us-west-2")}},
		&fakeExpenses{skus: map[string]string{"i-r1": "SKU-WEST"}},
		&fakeSKUSource{similar: map[string][]models.CachedSKU{
			"SKU-WEST": {
				regionSKU("SKU-WEST", "us-west-2", 0.084),
				regionSKU("SKU-EAST", "us-east-1", 0.096),
				regionSKU("SKU-SAME", "us-east-2", 0.084), // equal price: no saving
			},
		}},
		nil, nil, zerolog.Nop())

	recs, err := engine.Recommend(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no recommendations, got %+v", recs)
	}
}

func TestRecommendSkipsSpotAndUnsupported(t *testing.T) {
	spot := awsInstance("r1", "us-east-1")
	spot.Spotted = true
	azure := models.DiscoveredInstance{
		ResourceID: "r2", CloudType: models.CloudAzure, Region: "westeurope", Flavor: "Standard_D2s_v5",
	}
	outsideGroups := awsInstance("r3", "af-south-1")

	engine := NewEngine(
		&fakeDiscoverer{instances: []models.DiscoveredInstance{spot, azure, outsideGroups}},
		&fakeExpenses{skus: map[string]string{}},
		&fakeSKUSource{}, nil, nil, zerolog.Nop())

	recs, err := engine.Recommend(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no recommendations, got %+v", recs)
	}
}

func TestRecommendMarksExcludedPools(t *testing.T) {
	inst := awsInstance("r1", "us-east-1")
	inst.PoolID = "pool-dev"
	engine := NewEngine(
		&fakeDiscoverer{instances: []models.DiscoveredInstance{inst}},
		&fakeExpenses{skus: map[string]string{"i-r1": "SKU-EAST"}},
		&fakeSKUSource{similar: map[string][]models.CachedSKU{
			"SKU-EAST": {
				regionSKU("SKU-EAST", "us-east-1", 0.096),
				regionSKU("SKU-WEST", "us-west-2", 0.084),
			},
		}},
		nil, []string{"pool-dev"}, zerolog.Nop())

	recs, err := engine.Recommend(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 || !recs[0].IsExcluded {
		t.Fatalf("expected one excluded recommendation, got %+v", recs)
	}
}

func TestRecommendAlibabaUsesLivePrices(t *testing.T) {
	inst := models.DiscoveredInstance{
		ResourceID:      "r1",
		CloudResourceID: "i-r1",
		CloudAccountID:  "acc-ali",
		CloudType:       models.CloudAlibaba,
		Region:          "cn-hangzhou",
		Flavor:          "ecs.g6.large",
	}
	flavor := map[string]cloud.AlibabaFlavor{
		"ecs.g6.large": {ID: "ecs.g6.large", Family: "ecs.g6", CPU: 2, RAMGB: 8},
	}
	ali := &fakeAlibabaPrices{
		flavors: map[string]map[string]cloud.AlibabaFlavor{
			"cn-hangzhou": flavor,
			"cn-qingdao":  flavor,
			"cn-beijing":  {}, // flavor unavailable there
		},
		prices: map[string]map[string]float64{
			"cn-hangzhou": {"ecs.g6.large": 0.12},
			"cn-qingdao":  {"ecs.g6.large": 0.10},
		},
	}
	engine := NewEngine(
		&fakeDiscoverer{instances: []models.DiscoveredInstance{inst}},
		&fakeExpenses{}, &fakeSKUSource{}, ali, nil, zerolog.Nop())

	recs, err := engine.Recommend(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].RecommendedRegion != "cn-qingdao" {
		t.Fatalf("recommended %q, want cn-qingdao", recs[0].RecommendedRegion)
	}
	want := (0.12 - 0.10) * models.HoursInMonth
	if math.Abs(recs[0].Saving-want) > 1e-9 {
		t.Fatalf("saving = %v, want %v", recs[0].Saving, want)
	}
}

func TestAWSPricesZeroPriceIsNotMissing(t *testing.T) {
	// Free-tier style zero prices are legitimate, only absence of any
	// current-region document is an error.
	engine := NewEngine(
		&fakeDiscoverer{},
		&fakeExpenses{skus: map[string]string{"i-r1": "SKU-FREE"}},
		&fakeSKUSource{similar: map[string][]models.CachedSKU{
			"SKU-FREE": {
				regionSKU("SKU-FREE", "us-east-1", 0),
				regionSKU("SKU-WEST", "us-west-2", 0.010),
			},
		}},
		nil, nil, zerolog.Nop())

	inst := awsInstance("r1", "us-east-1")
	current, _, _, err := engine.awsPrices(context.Background(), inst, []string{"us-west-2"})
	if err != nil {
		t.Fatalf("zero price must not be treated as missing: %v", err)
	}
	if current != 0 {
		t.Fatalf("current = %v, want 0", current)
	}

	missing := awsInstance("r2", "us-east-1")
	missing.CloudResourceID = "i-r1"
	missing.Region = "eu-central-1" // no document for this region
	if _, _, _, err := engine.awsPrices(context.Background(), missing, nil); !errors.Is(err, models.ErrPricingNotFound) {
		t.Fatalf("expected ErrPricingNotFound, got %v", err)
	}
}

func TestRecommendMemoizesAlibabaCatalogCalls(t *testing.T) {
	instance := func(id string) models.DiscoveredInstance {
		return models.DiscoveredInstance{
			ResourceID:      id,
			CloudResourceID: "i-" + id,
			CloudAccountID:  "acc-ali",
			CloudType:       models.CloudAlibaba,
			Region:          "cn-hangzhou",
			Flavor:          "ecs.g6.large",
		}
	}
	flavor := map[string]cloud.AlibabaFlavor{
		"ecs.g6.large": {ID: "ecs.g6.large", Family: "ecs.g6", CPU: 2, RAMGB: 8},
	}
	ali := &fakeAlibabaPrices{
		flavors: map[string]map[string]cloud.AlibabaFlavor{
			"cn-hangzhou": flavor,
			"cn-qingdao":  flavor,
			"cn-beijing":  flavor,
		},
		prices: map[string]map[string]float64{
			"cn-hangzhou": {"ecs.g6.large": 0.12},
			"cn-qingdao":  {"ecs.g6.large": 0.10},
			"cn-beijing":  {"ecs.g6.large": 0.11},
		},
	}
	engine := NewEngine(
		&fakeDiscoverer{instances: []models.DiscoveredInstance{instance("r1"), instance("r2"), instance("r3")}},
		&fakeExpenses{}, &fakeSKUSource{}, ali, nil, zerolog.Nop())

	recs, err := engine.Recommend(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	for region, calls := range ali.flavorCalls {
		if calls != 1 {
			t.Errorf("GetAllFlavors(%s) called %d times, want 1", region, calls)
		}
	}
}

func TestResolveRegionCode(t *testing.T) {
	table := map[string]string{
		"US East (N. Virginia)": "us-east-1",
		"US East (Ohio)":        "us-east-2",
		"EU (Frankfurt)":        "eu-central-1",
	}

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"US East (Ohio)", "us-east-2", true},
		{"Frankfurt", "eu-central-1", true},
		{"US East", "", false}, // matches two table entries
		{"Oregon", "", false},
	}
	for _, tt := range tests {
		got, ok := resolveRegionCode(table, tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("resolveRegionCode(%q) = %q, %v, want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestGroupPeers(t *testing.T) {
	peers := groupPeers(awsRegionGroups, "us-east-1")
	if len(peers) != 3 {
		t.Fatalf("us-east-1 peers = %v", peers)
	}
	for _, peer := range peers {
		if peer == "us-east-1" {
			t.Fatal("peers must not contain the region itself")
		}
	}
	if groupPeers(awsRegionGroups, "af-south-1") != nil {
		t.Fatal("ungrouped region must have no peers")
	}
}
