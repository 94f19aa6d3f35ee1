package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"khata/internal/domain"
	"khata/internal/repository"
	"khata/pkg/validator"
)

type SalesRepository struct {
	mu        sync.RWMutex
	history   map[string][]domain.SalePoint
	validator *validator.Validator
}

func NewSalesRepository() *SalesRepository {
	return &SalesRepository{
		history:   make(map[string][]domain.SalePoint),
		validator: validator.Default(),
	}
}

// Record stores the point, replacing any point already recorded for the same day.
func (r *SalesRepository) Record(ctx context.Context, shopID, itemID string, point domain.SalePoint) error {
	if err := r.validator.Struct(point); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := shopID + ":" + itemID
	series := r.history[key]
	day := point.Day()
	if i := slices.IndexFunc(series, func(p domain.SalePoint) bool { return p.Day().Equal(day) }); i >= 0 {
		series[i] = point
	} else {
		series = append(series, point)
	}
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	r.history[key] = series

	return nil
}

// History returns up to the last days points, oldest first. An item without
// sales yields an empty series, not an error.
func (r *SalesRepository) History(ctx context.Context, shopID, itemID string, days int) ([]domain.SalePoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	series := r.history[shopID+":"+itemID]
	start := 0
	if days > 0 && len(series) > days {
		start = len(series) - days
	}
	return append([]domain.SalePoint(nil), series[start:]...), nil
}
