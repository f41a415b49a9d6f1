package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/optscale/flavorsearch/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertAndListInstances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	instances := []models.DiscoveredInstance{
		{OrganizationID: "org-1", ResourceID: "r1", CloudType: models.CloudAWS, Region: "us-east-1", Flavor: "m5.large"},
		{OrganizationID: "org-1", ResourceID: "r2", CloudType: models.CloudAlibaba, Region: "cn-hangzhou", Flavor: "ecs.g6.large"},
		{OrganizationID: "org-2", ResourceID: "r3", CloudType: models.CloudAWS, Region: "us-west-2", Flavor: "c5.xlarge"},
	}
	if err := store.UpsertInstances(ctx, instances); err != nil {
		t.Fatalf("UpsertInstances: %v", err)
	}

	got, err := store.ListActiveInstances(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListActiveInstances: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("org-1 has %d instances, want 2", len(got))
	}

	// Re-reporting overwrites.
	instances[0].Flavor = "m5.xlarge"
	if err := store.UpsertInstances(ctx, instances[:1]); err != nil {
		t.Fatalf("UpsertInstances: %v", err)
	}
	got, err = store.ListActiveInstances(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListActiveInstances: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("upsert duplicated the instance: %d", len(got))
	}
	for _, instance := range got {
		if instance.ResourceID == "r1" && instance.Flavor != "m5.xlarge" {
			t.Fatalf("upsert did not overwrite: %+v", instance)
		}
	}
}

func TestUpsertInstancesValidation(t *testing.T) {
	store := newTestStore(t)
	err := store.UpsertInstances(context.Background(), []models.DiscoveredInstance{{ResourceID: "r1"}})
	if err == nil {
		t.Fatal("expected error for instance without organization")
	}
}

func TestLastUsedSKU(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	expenses := []models.RawExpense{
		{CloudAccountID: "acc", CloudResourceID: "i-1", Sku: "OLD", Date: base, Cost: 1},
		{CloudAccountID: "acc", CloudResourceID: "i-1", Sku: "NEW", Date: base.AddDate(0, 0, 5), Cost: 1},
		{CloudAccountID: "acc", CloudResourceID: "i-2", Sku: "OTHER", Date: base.AddDate(0, 0, 9), Cost: 1},
	}
	if err := store.RecordExpenses(ctx, expenses); err != nil {
		t.Fatalf("RecordExpenses: %v", err)
	}

	sku, err := store.LastUsedSKU(ctx, "acc", "i-1")
	if err != nil {
		t.Fatalf("LastUsedSKU: %v", err)
	}
	if sku != "NEW" {
		t.Fatalf("sku = %q, want the most recent record", sku)
	}

	if _, err := store.LastUsedSKU(ctx, "acc", "i-404"); err == nil {
		t.Fatal("expected error for resource without expenses")
	}
}
