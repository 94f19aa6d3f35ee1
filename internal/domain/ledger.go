package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerStatus string

const (
	StatusPending LedgerStatus = "PENDING"
	StatusPaid    LedgerStatus = "PAID"
)

// LedgerRecord is the running udhaar account of one customer at one shop.
// Version is bumped by the store on every successful save.
type LedgerRecord struct {
	ShopID            string          `json:"shopId" validate:"required"`
	CustomerID        string          `json:"customerId" validate:"required"`
	CustomerName      string          `json:"customerName"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount" validate:"gte=0"`
	Transactions      []Transaction   `json:"transactions" validate:"dive"`
	Status            LedgerStatus    `json:"status" validate:"oneof=PENDING PAID"`
	DueAt             *time.Time      `json:"dueDate,omitempty"`
	LastUpdated       time.Time       `json:"lastUpdated"`
	Version           int64           `json:"version"`
}

func NewLedgerRecord(shopID, customerID, customerName string) *LedgerRecord {
	return &LedgerRecord{
		ShopID:            shopID,
		CustomerID:        customerID,
		CustomerName:      customerName,
		OutstandingAmount: decimal.Zero,
		Status:            StatusPaid,
	}
}

func (r *LedgerRecord) Key() string {
	return r.ShopID + ":" + r.CustomerID
}

// Clone returns a deep copy so that mutations never leak into a caller's snapshot.
func (r *LedgerRecord) Clone() *LedgerRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Transactions = make([]Transaction, len(r.Transactions))
	for i, tx := range r.Transactions {
		c.Transactions[i] = tx
		if tx.DueAt != nil {
			due := *tx.DueAt
			c.Transactions[i].DueAt = &due
		}
		if tx.Items != nil {
			c.Transactions[i].Items = append([]LineItem(nil), tx.Items...)
		}
	}
	if r.DueAt != nil {
		due := *r.DueAt
		c.DueAt = &due
	}
	return &c
}

func (r *LedgerRecord) CountByKind(kind TransactionKind) int {
	n := 0
	for _, tx := range r.Transactions {
		if tx.Kind == kind {
			n++
		}
	}
	return n
}
