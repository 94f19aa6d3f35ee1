package domain

import "time"

// SalePoint is one day of sold quantity for an item.
type SalePoint struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity" validate:"gte=0"`
}

// Day is the UTC calendar day the point belongs to. An item has at most one
// point per day.
func (p SalePoint) Day() time.Time {
	return p.Date.UTC().Truncate(24 * time.Hour)
}
