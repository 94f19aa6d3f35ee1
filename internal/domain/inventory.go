package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a read-only snapshot supplied by the inventory collaborator.
// ExpiryDate stays in its raw form; the alert generator parses it and reports
// malformed values instead of dropping them silently.
type InventoryItem struct {
	ShopID        string          `json:"shopId" validate:"required"`
	ItemID        string          `json:"itemId" validate:"required"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	Unit          string          `json:"unit,omitempty"`
	Quantity      decimal.Decimal `json:"quantity" validate:"gte=0"`
	MinStockLevel decimal.Decimal `json:"minStockLevel" validate:"gte=0"`
	ExpiryDate    string          `json:"expiryDate,omitempty"`
	CostPrice     decimal.Decimal `json:"costPrice" validate:"gte=0"`
	SellingPrice  decimal.Decimal `json:"sellingPrice" validate:"gte=0"`
	LastUpdated   time.Time       `json:"lastUpdated"`
}

func (i InventoryItem) DisplayName() string {
	if i.Name == "" {
		return "Unknown"
	}
	return i.Name
}
