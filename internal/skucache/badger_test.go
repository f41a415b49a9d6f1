package skucache

import (
	"testing"
	"time"

	"github.com/optscale/flavorsearch/internal/models"
)

func newBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open badger store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerGetSKU(t *testing.T) {
	store := newBadger(t)

	if _, found, err := store.GetSKU("missing"); err != nil || found {
		t.Fatalf("Expected clean miss, got found=%v err=%v", found, err)
	}

	doc := sku("SKU1", "US East (N. Virginia)", "us-east-1", 0.096)
	doc.UpdatedAt = time.Now().UTC()
	if err := store.Upsert([]models.CachedSKU{doc}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, found, err := store.GetSKU("SKU1")
	if err != nil || !found {
		t.Fatalf("GetSKU failed: found=%v err=%v", found, err)
	}
	if got.Price != doc.Price || got.RegionCode != doc.RegionCode {
		t.Errorf("Round-trip mismatch: got %+v", got)
	}
}

func TestBadgerFindSimilar(t *testing.T) {
	store := newBadger(t)

	east := sku("SKU1", "US East (N. Virginia)", "us-east-1", 0.096)
	west := sku("SKU2", "US West (Oregon)", "us-west-2", 0.084)
	windows := sku("SKU3", "US East (N. Virginia)", "us-east-1", 0.188)
	windows.Attributes["operatingSystem"] = "Windows"

	if err := store.Upsert([]models.CachedSKU{east, west, windows}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	similar, err := store.FindSimilar(east.SimilarityKey())
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(similar) != 2 {
		t.Fatalf("Expected 2 similar documents, got %d", len(similar))
	}
	for _, doc := range similar {
		if doc.Attributes["operatingSystem"] != "Linux" {
			t.Errorf("Windows SKU leaked into Linux similarity set: %+v", doc)
		}
	}
}

func TestBadgerUpsertIdempotent(t *testing.T) {
	store := newBadger(t)

	doc := sku("SKU1", "US East (N. Virginia)", "us-east-1", 0.096)
	store.Upsert([]models.CachedSKU{doc})
	doc.Price = 0.090
	store.Upsert([]models.CachedSKU{doc})

	similar, err := store.FindSimilar(doc.SimilarityKey())
	if err != nil {
		t.Fatalf("FindSimilar failed: %v", err)
	}
	if len(similar) != 1 {
		t.Fatalf("Expected 1 document after double upsert, got %d", len(similar))
	}
	if similar[0].Price != 0.090 {
		t.Errorf("Expected latest price, got %f", similar[0].Price)
	}
}
