package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AlertType string

const (
	AlertOutOfStock    AlertType = "OUT_OF_STOCK"
	AlertLowStock      AlertType = "LOW_STOCK"
	AlertOverdueUdhaar AlertType = "OVERDUE_UDHAAR"
	AlertHighUdhaar    AlertType = "HIGH_UDHAAR"
	AlertExpired       AlertType = "EXPIRED"
	AlertExpiringSoon  AlertType = "EXPIRING_SOON"
)

type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank orders priorities for sorting; unknown values sort with LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

type CustomerAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type ExpiringItem struct {
	Name       string          `json:"name"`
	ExpiryDate string          `json:"expiryDate"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Alert payloads are typed per alert kind; exactly one of Items, Customers
// or Expiring is populated.
type Alert struct {
	Type      AlertType        `json:"type"`
	Priority  Priority         `json:"priority"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Action    string           `json:"action"`
	Items     []string         `json:"items,omitempty"`
	Customers []CustomerAmount `json:"customers,omitempty"`
	Expiring  []ExpiringItem   `json:"expiringItems,omitempty"`
}

type AlertReport struct {
	ShopID       string    `json:"shopId"`
	Alerts       []Alert   `json:"alerts"`
	Count        int       `json:"count"`
	GeneratedAt  time.Time `json:"generatedAt"`
	FailedChecks []string  `json:"failedChecks,omitempty"`
}
