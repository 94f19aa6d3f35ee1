package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"khata/internal/domain"
	"khata/internal/repository"
	"khata/pkg/validator"
)

// SalesRepository keeps one sorted set per item, scored by the sale day, so
// points come back oldest first whatever order they were posted in.
type SalesRepository struct {
	client    *redis.Client
	validator *validator.Validator
}

func NewSalesRepository(client *redis.Client) *SalesRepository {
	return &SalesRepository{
		client:    client,
		validator: validator.Default(),
	}
}

// Record stores the point, replacing any point already recorded for the same day.
func (r *SalesRepository) Record(ctx context.Context, shopID, itemID string, point domain.SalePoint) error {
	if err := r.validator.Struct(point); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}

	payload, err := json.Marshal(point)
	if err != nil {
		return fmt.Errorf("failed to encode sale point: %w", err)
	}

	key := salesKey(shopID, itemID)
	day := point.Day().Unix()
	bound := strconv.FormatInt(day, 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, bound, bound)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(day), Member: payload})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record sale: %w", err)
	}
	return nil
}

func (r *SalesRepository) History(ctx context.Context, shopID, itemID string, days int) ([]domain.SalePoint, error) {
	start := int64(0)
	if days > 0 {
		start = -int64(days)
	}
	values, err := r.client.ZRange(ctx, salesKey(shopID, itemID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}

	history := make([]domain.SalePoint, 0, len(values))
	for _, raw := range values {
		var point domain.SalePoint
		if err := decode(r.validator, []byte(raw), &point); err != nil {
			return nil, err
		}
		history = append(history, point)
	}
	return history, nil
}
