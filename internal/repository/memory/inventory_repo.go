package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"khata/internal/domain"
	"khata/internal/repository"
	"khata/pkg/validator"
)

type InventoryRepository struct {
	mu        sync.RWMutex
	items     map[string]domain.InventoryItem
	shopIndex map[string][]string
	validator *validator.Validator
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		items:     make(map[string]domain.InventoryItem),
		shopIndex: make(map[string][]string),
		validator: validator.Default(),
	}
}

func (r *InventoryRepository) Save(ctx context.Context, item domain.InventoryItem) error {
	if err := r.validator.Struct(item); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := item.ShopID + ":" + item.ItemID
	if _, exists := r.items[key]; !exists {
		r.shopIndex[item.ShopID] = append(r.shopIndex[item.ShopID], key)
	}
	item.LastUpdated = time.Now().UTC()
	r.items[key] = item

	return nil
}

func (r *InventoryRepository) Get(ctx context.Context, shopID, itemID string) (*domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[shopID+":"+itemID]
	if !exists {
		return nil, fmt.Errorf("%w: item %s", repository.ErrNotFound, itemID)
	}
	return &item, nil
}

func (r *InventoryRepository) ListItems(ctx context.Context, shopID string) ([]domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.shopIndex[shopID]
	result := make([]domain.InventoryItem, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.items[key])
	}
	return result, nil
}

func (r *InventoryRepository) Delete(ctx context.Context, shopID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := shopID + ":" + itemID
	if _, exists := r.items[key]; !exists {
		return fmt.Errorf("%w: item %s", repository.ErrNotFound, itemID)
	}
	delete(r.items, key)
	r.shopIndex[shopID] = slices.DeleteFunc(r.shopIndex[shopID], func(k string) bool { return k == key })

	return nil
}
