package skucache

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/optscale/flavorsearch/internal/models"
)

// Compile-time check that BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)

// BadgerStore provides persistent SKU storage using BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

const prefixSKUs = "skus/"

// NewBadgerStore opens (or creates) the SKU database under dataDir.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Join(dataDir, "skus.db"))
	opts.Logger = nil
	opts.ValueLogFileSize = 64 << 20 // 64MB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open sku database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func skuKey(sku string) []byte {
	return []byte(prefixSKUs + sku)
}

// GetSKU retrieves a document by SKU.
func (s *BadgerStore) GetSKU(sku string) (models.CachedSKU, bool, error) {
	var doc models.CachedSKU
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(skuKey(sku))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if err == badger.ErrKeyNotFound {
		return models.CachedSKU{}, false, nil
	}
	if err != nil {
		return models.CachedSKU{}, false, err
	}
	return doc, true, nil
}

// FindSimilar scans all cached documents and returns those sharing the
// similarity key. The catalog slice per configuration is small, so a prefix
// scan is adequate.
func (s *BadgerStore) FindSimilar(key string) ([]models.CachedSKU, error) {
	var out []models.CachedSKU
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSKUs)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc models.CachedSKU
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				if doc.SimilarityKey() == key {
					out = append(out, doc)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Upsert writes documents keyed by SKU, replacing existing ones.
func (s *BadgerStore) Upsert(skus []models.CachedSKU) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, doc := range skus {
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := wb.Set(skuKey(doc.Sku), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}
