package processor

import (
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

func recordWith(outstanding int64, credits, payments int, due *time.Time) *domain.LedgerRecord {
	record := domain.NewLedgerRecord("shop1", "cust1", "Ramesh")
	record.OutstandingAmount = decimal.NewFromInt(outstanding)
	record.DueAt = due
	for i := 0; i < credits; i++ {
		record.Transactions = append(record.Transactions, domain.NewTransaction(domain.KindCredit, decimal.NewFromInt(1), testNow))
	}
	for i := 0; i < payments; i++ {
		record.Transactions = append(record.Transactions, domain.NewTransaction(domain.KindPayment, decimal.NewFromInt(1), testNow))
	}
	return record
}

func TestRiskScorer_AllFactorsCapAtOne(t *testing.T) {
	scorer := NewRiskScorer()
	past := testNow.AddDate(0, 0, -1)

	score, flags := scorer.Score(recordWith(12000, 1, 0, &past), testNow)

	if score != 1.0 {
		t.Errorf("expected risk 1.0, got %v", score)
	}
	want := []string{"high_outstanding", "overdue", "poor_payment_history"}
	if !slices.Equal(flags, want) {
		t.Errorf("expected flags %v, got %v", want, flags)
	}
}

func TestRiskScorer_NoTransactions(t *testing.T) {
	scorer := NewRiskScorer()

	score, flags := scorer.Score(domain.NewLedgerRecord("shop1", "cust1", ""), testNow)

	if score != 0.5 || len(flags) != 0 {
		t.Errorf("expected 0.5 without flags, got %v %v", score, flags)
	}
}

func TestRiskScorer_Factors(t *testing.T) {
	scorer := NewRiskScorer()
	future := testNow.AddDate(0, 0, 10)
	past := testNow.AddDate(0, 0, -10)

	cases := []struct {
		name   string
		record *domain.LedgerRecord
		want   float64
	}{
		{"healthy", recordWith(1000, 1, 1, &future), 0},
		{"elevated only", recordWith(6000, 1, 1, &future), 0.2},
		{"exactly 10000 is elevated", recordWith(10000, 1, 1, &future), 0.2},
		{"exactly 5000 is not elevated", recordWith(5000, 1, 1, &future), 0},
		{"overdue only", recordWith(1000, 2, 1, &past), 0.3},
		{"poor history only", recordWith(1000, 3, 1, &future), 0.3},
		{"elevated overdue poor history", recordWith(7000, 3, 0, &past), 0.8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, flags := scorer.Score(tc.record, testNow)
			if score != tc.want {
				t.Errorf("expected %v, got %v (%v)", tc.want, score, flags)
			}
		})
	}
}
