package memory

import (
	"context"
	"fmt"
	"sync"

	"khata/internal/domain"
	"khata/internal/repository"
	"khata/pkg/validator"
)

type LedgerRepository struct {
	mu        sync.RWMutex
	records   map[string]*domain.LedgerRecord
	shopIndex map[string][]string
	validator *validator.Validator
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		records:   make(map[string]*domain.LedgerRecord),
		shopIndex: make(map[string][]string),
		validator: validator.Default(),
	}
}

func (r *LedgerRepository) Get(ctx context.Context, shopID, customerID string) (*domain.LedgerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[ledgerKey(shopID, customerID)]
	if !exists {
		return nil, fmt.Errorf("%w: customer %s", repository.ErrNotFound, customerID)
	}
	return record.Clone(), nil
}

func (r *LedgerRepository) ListRecords(ctx context.Context, shopID string) ([]*domain.LedgerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.shopIndex[shopID]
	result := make([]*domain.LedgerRecord, 0, len(keys))
	for _, key := range keys {
		if record, exists := r.records[key]; exists {
			result = append(result, record.Clone())
		}
	}
	return result, nil
}

func (r *LedgerRepository) Save(ctx context.Context, record *domain.LedgerRecord) error {
	if err := r.validator.Struct(record); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := record.Key()
	stored, exists := r.records[key]
	var current int64
	if exists {
		current = stored.Version
	}
	if current != record.Version {
		return fmt.Errorf("%w: customer %s at version %d, expected %d",
			repository.ErrVersionConflict, record.CustomerID, current, record.Version)
	}

	record.Version++
	r.records[key] = record.Clone()
	if !exists {
		r.shopIndex[record.ShopID] = append(r.shopIndex[record.ShopID], key)
	}

	return nil
}

func ledgerKey(shopID, customerID string) string {
	return shopID + ":" + customerID
}
