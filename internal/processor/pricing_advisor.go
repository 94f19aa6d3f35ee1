package processor

import (
	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

type PriceAction string

const (
	PriceIncrease PriceAction = "INCREASE"
	PriceDecrease PriceAction = "DECREASE"
	PriceMaintain PriceAction = "MAINTAIN"
)

type PricingRecommendation struct {
	ItemID          string          `json:"itemId"`
	ItemName        string          `json:"itemName"`
	CurrentPrice    decimal.Decimal `json:"currentPrice"`
	SuggestedPrice  decimal.Decimal `json:"suggestedPrice"`
	CurrentMargin   decimal.Decimal `json:"currentMargin"`
	SuggestedMargin decimal.Decimal `json:"suggestedMargin"`
	Action          PriceAction     `json:"action"`
	Reason          string          `json:"reason"`
	Confidence      float64         `json:"confidence"`
}

const pricingConfidence = 0.75

var (
	hundred           = decimal.NewFromInt(100)
	lowMarginPercent  = decimal.NewFromInt(10)
	highMarginPercent = decimal.NewFromInt(40)
	lowMarginMarkup   = decimal.RequireFromString("1.15")
	highMarginMarkup  = decimal.RequireFromString("1.25")
	lowStockPriceBump = decimal.RequireFromString("1.05")
)

type PricingAdvisor struct{}

func NewPricingAdvisor() *PricingAdvisor {
	return &PricingAdvisor{}
}

func (a *PricingAdvisor) Recommend(items []domain.InventoryItem) []PricingRecommendation {
	recs := make([]PricingRecommendation, 0, len(items))
	for _, item := range items {
		if rec, ok := a.Analyze(item); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

// Analyze returns false for items without both a cost and a selling price.
func (a *PricingAdvisor) Analyze(item domain.InventoryItem) (PricingRecommendation, bool) {
	cost, sell := item.CostPrice, item.SellingPrice
	if cost.IsZero() || sell.IsZero() {
		return PricingRecommendation{}, false
	}

	margin := marginPercent(cost, sell)
	rec := PricingRecommendation{
		ItemID:         item.ItemID,
		ItemName:       item.DisplayName(),
		CurrentPrice:   sell,
		SuggestedPrice: sell,
		CurrentMargin:  margin.Round(2),
		Confidence:     pricingConfidence,
	}

	switch {
	case margin.LessThan(lowMarginPercent):
		rec.Action = PriceIncrease
		rec.SuggestedPrice = cost.Mul(lowMarginMarkup)
		rec.Reason = "Low margin detected. Increase price to improve profitability."
	case margin.GreaterThan(highMarginPercent):
		rec.Action = PriceDecrease
		rec.SuggestedPrice = cost.Mul(highMarginMarkup)
		rec.Reason = "High margin may reduce sales. Consider price reduction to increase volume."
	case item.Quantity.LessThan(item.MinStockLevel):
		rec.Action = PriceIncrease
		rec.SuggestedPrice = sell.Mul(lowStockPriceBump)
		rec.Reason = "Low stock. Slight price increase to manage demand."
	default:
		rec.Action = PriceMaintain
		rec.Reason = "Current pricing is optimal."
	}

	rec.SuggestedMargin = marginPercent(cost, rec.SuggestedPrice).Round(2)
	rec.SuggestedPrice = rec.SuggestedPrice.Round(2)
	return rec, true
}

func marginPercent(cost, sell decimal.Decimal) decimal.Decimal {
	return sell.Sub(cost).Div(sell).Mul(hundred)
}
