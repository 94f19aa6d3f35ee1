package processor

import (
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

type LedgerSummary struct {
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	TotalCustomers   int             `json:"totalCustomers"`
	OverdueCount     int             `json:"overdueCount"`
}

// Summarize totals every record of a shop, then narrows the returned list to
// the requested status. TotalCustomers counts the narrowed list.
func Summarize(records []*domain.LedgerRecord, now time.Time, status domain.LedgerStatus) ([]*domain.LedgerRecord, LedgerSummary) {
	summary := LedgerSummary{TotalOutstanding: decimal.Zero}
	for _, r := range records {
		summary.TotalOutstanding = summary.TotalOutstanding.Add(r.OutstandingAmount)
		if IsOverdue(r, now) {
			summary.OverdueCount++
		}
	}
	summary.TotalOutstanding = summary.TotalOutstanding.Round(2)

	filtered := records
	if status != "" {
		filtered = make([]*domain.LedgerRecord, 0, len(records))
		for _, r := range records {
			if r.Status == status {
				filtered = append(filtered, r)
			}
		}
	}
	summary.TotalCustomers = len(filtered)

	return filtered, summary
}
