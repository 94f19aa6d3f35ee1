package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	KindCredit  TransactionKind = "CREDIT"
	KindPayment TransactionKind = "PAYMENT"
)

// LineItem describes goods handed over on credit. The ledger never interprets it.
type LineItem struct {
	Name     string          `json:"name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type Transaction struct {
	ID         string          `json:"transactionId" validate:"required"`
	Kind       TransactionKind `json:"type" validate:"oneof=CREDIT PAYMENT"`
	Amount     decimal.Decimal `json:"amount" validate:"gt=0"`
	OccurredAt time.Time       `json:"date"`
	DueAt      *time.Time      `json:"dueDate,omitempty"`
	Items      []LineItem      `json:"items,omitempty" validate:"dive"`
}

func NewTransaction(kind TransactionKind, amount decimal.Decimal, at time.Time) Transaction {
	return Transaction{
		ID:         generateTransactionID(),
		Kind:       kind,
		Amount:     amount,
		OccurredAt: at,
	}
}

func (tx Transaction) WithDueDate(due time.Time) Transaction {
	tx.DueAt = &due
	return tx
}

func (tx Transaction) WithItems(items []LineItem) Transaction {
	if len(items) > 0 {
		tx.Items = append([]LineItem(nil), items...)
	}
	return tx
}

func generateTransactionID() string {
	return "txn-" + uuid.NewString()
}
