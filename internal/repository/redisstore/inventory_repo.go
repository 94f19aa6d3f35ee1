package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"khata/internal/domain"
	"khata/internal/repository"
	"khata/pkg/validator"
)

// InventoryRepository stores one hash per shop, keyed by item id.
type InventoryRepository struct {
	client    *redis.Client
	validator *validator.Validator
}

func NewInventoryRepository(client *redis.Client) *InventoryRepository {
	return &InventoryRepository{
		client:    client,
		validator: validator.Default(),
	}
}

func (r *InventoryRepository) Save(ctx context.Context, item domain.InventoryItem) error {
	if err := r.validator.Struct(item); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}

	item.LastUpdated = time.Now().UTC()
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode inventory item: %w", err)
	}
	if err := r.client.HSet(ctx, inventoryKey(item.ShopID), item.ItemID, payload).Err(); err != nil {
		return fmt.Errorf("failed to save inventory item: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Get(ctx context.Context, shopID, itemID string) (*domain.InventoryItem, error) {
	raw, err := r.client.HGet(ctx, inventoryKey(shopID), itemID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: item %s", repository.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory item: %w", err)
	}

	var item domain.InventoryItem
	if err := decode(r.validator, raw, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns the shop's items ordered by item id, since hash order is unspecified.
func (r *InventoryRepository) ListItems(ctx context.Context, shopID string) ([]domain.InventoryItem, error) {
	entries, err := r.client.HGetAll(ctx, inventoryKey(shopID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	items := make([]domain.InventoryItem, 0, len(entries))
	for _, raw := range entries {
		var item domain.InventoryItem
		if err := decode(r.validator, []byte(raw), &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ItemID < items[j].ItemID
	})
	return items, nil
}

func (r *InventoryRepository) Delete(ctx context.Context, shopID, itemID string) error {
	removed, err := r.client.HDel(ctx, inventoryKey(shopID), itemID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: item %s", repository.ErrNotFound, itemID)
	}
	return nil
}
