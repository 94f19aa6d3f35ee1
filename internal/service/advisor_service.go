package service

import (
	"context"
	"fmt"

	"khata/internal/processor"
)

type ShopInsights struct {
	Snapshot        processor.ShopSnapshot     `json:"snapshot"`
	Recommendations []processor.Recommendation `json:"recommendations"`
}

// AdvisorService serves the read-only pricing and shop recommendations.
type AdvisorService struct {
	inventory processor.InventorySource
	ledger    processor.LedgerSource
	pricing   *processor.PricingAdvisor
}

func NewAdvisorService(inventory processor.InventorySource, ledger processor.LedgerSource) *AdvisorService {
	return &AdvisorService{
		inventory: inventory,
		ledger:    ledger,
		pricing:   processor.NewPricingAdvisor(),
	}
}

func (s *AdvisorService) PricingRecommendations(ctx context.Context, shopID string) ([]processor.PricingRecommendation, error) {
	items, err := s.inventory.ListItems(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	return s.pricing.Recommend(items), nil
}

func (s *AdvisorService) Insights(ctx context.Context, shopID string) (*ShopInsights, error) {
	items, err := s.inventory.ListItems(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	records, err := s.ledger.ListRecords(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	snap := processor.Snapshot(items, records)
	return &ShopInsights{
		Snapshot:        snap,
		Recommendations: processor.Advise(snap),
	}, nil
}
