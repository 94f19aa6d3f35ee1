package processor

import (
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

// RiskScorer is a tunable additive rule set over a ledger record, not a
// statistically fitted model. Weights are in hundredths so that sums stay exact.
type RiskScorer struct {
	factors []RiskFactor
}

type RiskFactor struct {
	Name        string
	Description string
	Detect      func(record *domain.LedgerRecord, now time.Time) bool
	Weight      int
}

const (
	insufficientHistoryScore = 0.5
	maxRiskWeight            = 100
)

var (
	highOutstandingThreshold     = decimal.NewFromInt(10000)
	elevatedOutstandingThreshold = decimal.NewFromInt(5000)
)

func NewRiskScorer() *RiskScorer {
	return &RiskScorer{
		factors: []RiskFactor{
			{
				Name:        "high_outstanding",
				Description: "Outstanding balance above 10000",
				Detect: func(r *domain.LedgerRecord, _ time.Time) bool {
					return r.OutstandingAmount.GreaterThan(highOutstandingThreshold)
				},
				Weight: 40,
			},
			{
				Name:        "elevated_outstanding",
				Description: "Outstanding balance above 5000",
				Detect: func(r *domain.LedgerRecord, _ time.Time) bool {
					return r.OutstandingAmount.GreaterThan(elevatedOutstandingThreshold) &&
						!r.OutstandingAmount.GreaterThan(highOutstandingThreshold)
				},
				Weight: 20,
			},
			{
				Name:        "overdue",
				Description: "Balance is past its due date",
				Detect:      IsOverdue,
				Weight:      30,
			},
			{
				Name:        "poor_payment_history",
				Description: "Fewer than one payment per two credits",
				Detect:      detectPoorPaymentHistory,
				Weight:      30,
			},
		},
	}
}

// Score returns a value in [0, 1] and the names of the factors that fired.
// Records without any transactions score 0.5 without further evaluation.
func (s *RiskScorer) Score(record *domain.LedgerRecord, now time.Time) (float64, []string) {
	if record == nil || len(record.Transactions) == 0 {
		return insufficientHistoryScore, nil
	}

	var weight int
	var flags []string

	for _, factor := range s.factors {
		if factor.Detect(record, now) {
			weight += factor.Weight
			flags = append(flags, factor.Name)
		}
	}

	return float64(min(weight, maxRiskWeight)) / 100, flags
}

func detectPoorPaymentHistory(r *domain.LedgerRecord, _ time.Time) bool {
	credits := r.CountByKind(domain.KindCredit)
	if credits == 0 {
		return false
	}
	payments := r.CountByKind(domain.KindPayment)
	// payments/credits < 0.5
	return payments*2 < credits
}
