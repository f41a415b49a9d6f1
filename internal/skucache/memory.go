package skucache

import (
	"sync"

	"github.com/optscale/flavorsearch/internal/models"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used in tests and single-shot scans.
type MemoryStore struct {
	mu   sync.RWMutex
	skus map[string]models.CachedSKU
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{skus: make(map[string]models.CachedSKU)}
}

// GetSKU retrieves a document by SKU.
func (s *MemoryStore) GetSKU(sku string) (models.CachedSKU, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.skus[sku]
	return doc, ok, nil
}

// FindSimilar returns documents sharing the similarity key.
func (s *MemoryStore) FindSimilar(key string) ([]models.CachedSKU, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CachedSKU
	for _, doc := range s.skus {
		if doc.SimilarityKey() == key {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Upsert writes documents keyed by SKU, replacing existing ones.
func (s *MemoryStore) Upsert(skus []models.CachedSKU) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range skus {
		s.skus[doc.Sku] = doc
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// Len returns the number of cached documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.skus)
}
