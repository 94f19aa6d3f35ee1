package processor

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrExceedsOutstanding = errors.New("payment exceeds outstanding balance")
)

const DefaultDueInDays = 30

// Ledger applies credit and payment transactions to a customer's record.
// It never mutates its input: every operation returns an updated copy, and
// persisting that copy is the caller's job.
type Ledger struct {
	clock Clock
}

func NewLedger(clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{clock: clock}
}

func (l *Ledger) ApplyCredit(record *domain.LedgerRecord, amount decimal.Decimal, items []domain.LineItem, dueInDays int) (*domain.LedgerRecord, error) {
	if record == nil {
		return nil, errors.New("ledger record is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if dueInDays <= 0 {
		dueInDays = DefaultDueInDays
	}

	now := l.clock.Now()
	due := now.Add(time.Duration(dueInDays) * 24 * time.Hour)
	tx := domain.NewTransaction(domain.KindCredit, amount, now).
		WithDueDate(due).
		WithItems(items)

	updated := record.Clone()
	updated.Transactions = append(updated.Transactions, tx)
	updated.OutstandingAmount = updated.OutstandingAmount.Add(amount)
	updated.DueAt = &due
	updated.LastUpdated = now
	updated.Status = statusFor(updated.OutstandingAmount)

	return updated, nil
}

func (l *Ledger) ApplyPayment(record *domain.LedgerRecord, amount decimal.Decimal) (*domain.LedgerRecord, error) {
	if record == nil {
		return nil, errors.New("ledger record is required")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if amount.GreaterThan(record.OutstandingAmount) {
		return nil, fmt.Errorf("%w: %s > %s", ErrExceedsOutstanding, amount, record.OutstandingAmount)
	}

	now := l.clock.Now()
	tx := domain.NewTransaction(domain.KindPayment, amount, now)

	updated := record.Clone()
	updated.Transactions = append(updated.Transactions, tx)
	updated.OutstandingAmount = updated.OutstandingAmount.Sub(amount)
	updated.LastUpdated = now
	updated.Status = statusFor(updated.OutstandingAmount)

	return updated, nil
}

// IsOverdue reports whether a positive balance is still owed past the due date.
// A record without a due date is never overdue.
func IsOverdue(record *domain.LedgerRecord, now time.Time) bool {
	if record == nil || record.DueAt == nil || record.DueAt.IsZero() {
		return false
	}
	return now.After(*record.DueAt) && record.OutstandingAmount.IsPositive()
}

// Replay recomputes the outstanding balance from the transaction list.
func Replay(transactions []domain.Transaction) decimal.Decimal {
	balance := decimal.Zero
	for _, tx := range transactions {
		switch tx.Kind {
		case domain.KindCredit:
			balance = balance.Add(tx.Amount)
		case domain.KindPayment:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}

func statusFor(outstanding decimal.Decimal) domain.LedgerStatus {
	if outstanding.IsZero() {
		return domain.StatusPaid
	}
	return domain.StatusPending
}
