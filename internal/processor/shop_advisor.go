package processor

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

type ShopSnapshot struct {
	InventoryCount      int             `json:"inventoryCount"`
	TotalInventoryValue decimal.Decimal `json:"totalInventoryValue"`
	LowStockCount       int             `json:"lowStockCount"`
	LowStockItems       []string        `json:"lowStockItems"`
	TotalUdhaar         decimal.Decimal `json:"totalUdhaar"`
	UdhaarCustomers     int             `json:"udhaarCustomers"`
}

type Recommendation struct {
	Category       string          `json:"category"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Priority       domain.Priority `json:"priority"`
	ExpectedImpact string          `json:"expectedImpact"`
}

const lowStockSampleSize = 5

func Snapshot(items []domain.InventoryItem, records []*domain.LedgerRecord) ShopSnapshot {
	snap := ShopSnapshot{
		InventoryCount:      len(items),
		TotalInventoryValue: decimal.Zero,
		TotalUdhaar:         decimal.Zero,
		UdhaarCustomers:     len(records),
	}
	for _, item := range items {
		snap.TotalInventoryValue = snap.TotalInventoryValue.Add(item.Quantity.Mul(item.CostPrice))
		if item.Quantity.LessThan(item.MinStockLevel) {
			snap.LowStockCount++
			if len(snap.LowStockItems) < lowStockSampleSize {
				snap.LowStockItems = append(snap.LowStockItems, item.DisplayName())
			}
		}
	}
	for _, r := range records {
		snap.TotalUdhaar = snap.TotalUdhaar.Add(r.OutstandingAmount)
	}
	snap.TotalInventoryValue = snap.TotalInventoryValue.Round(2)
	snap.TotalUdhaar = snap.TotalUdhaar.Round(2)
	return snap
}

// Advise turns a snapshot into rule-based recommendations for the shop owner.
func Advise(snap ShopSnapshot) []Recommendation {
	var recs []Recommendation

	if snap.LowStockCount > 0 {
		recs = append(recs, Recommendation{
			Category: "Inventory Management",
			Title:    "Restock Low Inventory Items",
			Description: fmt.Sprintf("You have %d items running low. Restock %s to avoid stock-outs.",
				snap.LowStockCount, strings.Join(snap.LowStockItems[:min(len(snap.LowStockItems), messageNameLimit)], ", ")),
			Priority:       domain.PriorityHigh,
			ExpectedImpact: "Prevent lost sales due to stock-outs",
		})
	}

	if snap.TotalUdhaar.GreaterThan(highUdhaarThreshold) {
		recs = append(recs, Recommendation{
			Category: "Cash Flow",
			Title:    "Recover Outstanding Udhaar",
			Description: fmt.Sprintf("₹%s is pending from %d customers. Follow up with top 3 customers to improve cash flow.",
				snap.TotalUdhaar.StringFixed(2), snap.UdhaarCustomers),
			Priority:       domain.PriorityHigh,
			ExpectedImpact: "Improve working capital by 20-30%",
		})
	}

	recs = append(recs, Recommendation{
		Category:       "Sales Growth",
		Title:          "Promote Fast-Moving Items",
		Description:    "Identify your top 5 selling items and create combo offers to increase average transaction value.",
		Priority:       domain.PriorityMedium,
		ExpectedImpact: "Increase daily sales by 10-15%",
	})

	return recs
}
