// Package inventory persists discovered instances and raw billing records.
// The migration engine reads them back to decide which resources can move
// and which billing SKU each one last ran under.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/optscale/flavorsearch/internal/models"
)

const (
	prefixInstances = "instances/"
	prefixExpenses  = "expenses/"
)

// Store provides persistent inventory storage using BadgerDB.
type Store struct {
	db *badger.DB
}

// NewStore opens (or creates) the inventory database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Join(dataDir, "inventory.db"))
	opts.Logger = nil
	opts.ValueLogFileSize = 64 << 20 // 64MB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func instanceKey(organizationID, resourceID string) []byte {
	return []byte(prefixInstances + organizationID + "/" + resourceID)
}

func expenseKey(e models.RawExpense) []byte {
	return []byte(prefixExpenses + e.CloudAccountID + "/" + e.CloudResourceID + "/" +
		e.Date.UTC().Format(time.RFC3339))
}

// UpsertInstances stores the instances, keyed by organization and resource
// ID. Re-reporting an instance overwrites the previous record.
func (s *Store) UpsertInstances(ctx context.Context, instances []models.DiscoveredInstance) error {
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()

	for _, instance := range instances {
		if instance.OrganizationID == "" || instance.ResourceID == "" {
			return fmt.Errorf("%w: instance needs organization_id and resource_id", models.ErrInvalidParameters)
		}
		value, err := json.Marshal(instance)
		if err != nil {
			return fmt.Errorf("failed to marshal instance %s: %w", instance.ResourceID, err)
		}
		if err := batch.Set(instanceKey(instance.OrganizationID, instance.ResourceID), value); err != nil {
			return fmt.Errorf("failed to store instance %s: %w", instance.ResourceID, err)
		}
	}
	return batch.Flush()
}

// RecordExpenses appends raw billing records, keyed by account, resource
// and date.
func (s *Store) RecordExpenses(ctx context.Context, expenses []models.RawExpense) error {
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()

	for _, expense := range expenses {
		if expense.CloudAccountID == "" || expense.CloudResourceID == "" || expense.Sku == "" {
			return fmt.Errorf("%w: expense needs cloud_account_id, cloud_resource_id and sku", models.ErrInvalidParameters)
		}
		value, err := json.Marshal(expense)
		if err != nil {
			return fmt.Errorf("failed to marshal expense for %s: %w", expense.CloudResourceID, err)
		}
		if err := batch.Set(expenseKey(expense), value); err != nil {
			return fmt.Errorf("failed to store expense for %s: %w", expense.CloudResourceID, err)
		}
	}
	return batch.Flush()
}

// ListActiveInstances returns every instance reported for an organization.
func (s *Store) ListActiveInstances(ctx context.Context, organizationID string) ([]models.DiscoveredInstance, error) {
	var out []models.DiscoveredInstance
	prefix := []byte(prefixInstances + organizationID + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var instance models.DiscoveredInstance
				if err := json.Unmarshal(val, &instance); err != nil {
					return err
				}
				out = append(out, instance)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return out, nil
}

// LastUsedSKU returns the SKU of the most recent billing record of a
// resource.
func (s *Store) LastUsedSKU(ctx context.Context, cloudAccountID, cloudResourceID string) (string, error) {
	var latest models.RawExpense
	found := false
	prefix := []byte(prefixExpenses + cloudAccountID + "/" + cloudResourceID + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var expense models.RawExpense
				if err := json.Unmarshal(val, &expense); err != nil {
					return err
				}
				if !found || expense.Date.After(latest.Date) {
					latest, found = expense, true
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan expenses: %w", err)
	}
	if !found {
		return "", fmt.Errorf("no billing records for %s/%s", cloudAccountID, cloudResourceID)
	}
	return latest.Sku, nil
}
