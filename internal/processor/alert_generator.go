package processor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"khata/internal/domain"
)

type InventorySource interface {
	ListItems(ctx context.Context, shopID string) ([]domain.InventoryItem, error)
}

type LedgerSource interface {
	ListRecords(ctx context.Context, shopID string) ([]*domain.LedgerRecord, error)
}

const (
	messageNameLimit    = 3
	customerPayloadSize = 5
	expiringPayloadSize = 5
	expiryWarningDays   = 7
)

var highUdhaarThreshold = decimal.NewFromInt(5000)

// SubCheck is one independent alert rule. A failing check contributes no
// alerts and never stops the others.
type SubCheck struct {
	Name string
	Run  func(now time.Time) ([]domain.Alert, error)
}

type AlertGenerator struct {
	inventory InventorySource
	ledger    LedgerSource
	clock     Clock
	logger    *slog.Logger
}

func NewAlertGenerator(inventory InventorySource, ledger LedgerSource, clock Clock, logger *slog.Logger) *AlertGenerator {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AlertGenerator{
		inventory: inventory,
		ledger:    ledger,
		clock:     clock,
		logger:    logger,
	}
}

func (g *AlertGenerator) Generate(ctx context.Context, shopID string) *domain.AlertReport {
	now := g.clock.Now()
	report := &domain.AlertReport{
		ShopID:      shopID,
		GeneratedAt: now,
	}

	var alerts []domain.Alert
	for _, check := range g.subChecks(ctx, shopID) {
		found, err := check.Run(now)
		if err != nil {
			g.logger.ErrorContext(ctx, "Alert sub-check failed",
				slog.String("check", check.Name),
				slog.String("shop_id", shopID),
				slog.String("error", err.Error()))
			report.FailedChecks = append(report.FailedChecks, check.Name)
			continue
		}
		alerts = append(alerts, found...)
	}

	SortAlerts(alerts)
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	report.Alerts = alerts
	report.Count = len(alerts)

	return report
}

// subChecks loads each data source at most once per scan; a source error is
// reported by every check that depends on it.
func (g *AlertGenerator) subChecks(ctx context.Context, shopID string) []SubCheck {
	loadItems := sync.OnceValues(func() ([]domain.InventoryItem, error) {
		items, err := g.inventory.ListItems(ctx, shopID)
		if err != nil {
			return nil, fmt.Errorf("load inventory: %w", err)
		}
		return items, nil
	})
	loadRecords := sync.OnceValues(func() ([]*domain.LedgerRecord, error) {
		records, err := g.ledger.ListRecords(ctx, shopID)
		if err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
		return records, nil
	})

	return []SubCheck{
		{Name: "out_of_stock", Run: func(time.Time) ([]domain.Alert, error) {
			items, err := loadItems()
			if err != nil {
				return nil, err
			}
			return OutOfStockAlerts(items), nil
		}},
		{Name: "low_stock", Run: func(time.Time) ([]domain.Alert, error) {
			items, err := loadItems()
			if err != nil {
				return nil, err
			}
			return LowStockAlerts(items), nil
		}},
		{Name: "overdue_udhaar", Run: func(now time.Time) ([]domain.Alert, error) {
			records, err := loadRecords()
			if err != nil {
				return nil, err
			}
			return OverdueUdhaarAlerts(records, now), nil
		}},
		{Name: "high_udhaar", Run: func(time.Time) ([]domain.Alert, error) {
			records, err := loadRecords()
			if err != nil {
				return nil, err
			}
			return HighUdhaarAlerts(records), nil
		}},
		{Name: "expiry", Run: func(now time.Time) ([]domain.Alert, error) {
			items, err := loadItems()
			if err != nil {
				return nil, err
			}
			return ExpiryAlerts(ctx, items, now, g.logger), nil
		}},
	}
}

// SortAlerts orders by priority; equal priorities keep their scan order.
func SortAlerts(alerts []domain.Alert) {
	slices.SortStableFunc(alerts, func(a, b domain.Alert) int {
		return a.Priority.Rank() - b.Priority.Rank()
	})
}

func OutOfStockAlerts(items []domain.InventoryItem) []domain.Alert {
	var names []string
	for _, item := range items {
		if item.Quantity.IsZero() {
			names = append(names, item.DisplayName())
		}
	}
	if len(names) == 0 {
		return nil
	}

	return []domain.Alert{{
		Type:     domain.AlertOutOfStock,
		Priority: domain.PriorityCritical,
		Title:    "Items Out of Stock",
		Message:  fmt.Sprintf("%d items are out of stock: %s", len(names), joinFirst(names, messageNameLimit)),
		Action:   "Restock immediately to avoid lost sales",
		Items:    names,
	}}
}

func LowStockAlerts(items []domain.InventoryItem) []domain.Alert {
	var names []string
	for _, item := range items {
		if item.Quantity.IsPositive() && item.Quantity.LessThan(item.MinStockLevel) {
			names = append(names, item.DisplayName())
		}
	}
	if len(names) == 0 {
		return nil
	}

	return []domain.Alert{{
		Type:     domain.AlertLowStock,
		Priority: domain.PriorityHigh,
		Title:    "Low Stock Warning",
		Message:  fmt.Sprintf("%d items are running low: %s", len(names), joinFirst(names, messageNameLimit)),
		Action:   "Plan restocking for these items",
		Items:    names,
	}}
}

func OverdueUdhaarAlerts(records []*domain.LedgerRecord, now time.Time) []domain.Alert {
	var customers []domain.CustomerAmount
	total := decimal.Zero
	for _, record := range records {
		if !IsOverdue(record, now) {
			continue
		}
		customers = append(customers, customerAmount(record))
		total = total.Add(record.OutstandingAmount)
	}
	if len(customers) == 0 {
		return nil
	}

	return []domain.Alert{{
		Type:      domain.AlertOverdueUdhaar,
		Priority:  domain.PriorityHigh,
		Title:     "Overdue Payments",
		Message:   fmt.Sprintf("₹%s overdue from %d customers", total.Round(2).StringFixed(2), len(customers)),
		Action:    "Follow up with customers for payment",
		Customers: customers[:min(len(customers), customerPayloadSize)],
	}}
}

func HighUdhaarAlerts(records []*domain.LedgerRecord) []domain.Alert {
	var customers []domain.CustomerAmount
	for _, record := range records {
		if record != nil && record.OutstandingAmount.GreaterThan(highUdhaarThreshold) {
			customers = append(customers, customerAmount(record))
		}
	}
	if len(customers) == 0 {
		return nil
	}

	return []domain.Alert{{
		Type:      domain.AlertHighUdhaar,
		Priority:  domain.PriorityMedium,
		Title:     "High Outstanding Credit",
		Message:   fmt.Sprintf("%d customers have high outstanding amounts", len(customers)),
		Action:    "Consider limiting further credit",
		Customers: customers[:min(len(customers), customerPayloadSize)],
	}}
}

// ExpiryAlerts skips items whose expiry date cannot be parsed, logging each one.
func ExpiryAlerts(ctx context.Context, items []domain.InventoryItem, now time.Time, logger *slog.Logger) []domain.Alert {
	if logger == nil {
		logger = slog.Default()
	}

	today := truncateToDay(now)
	warningDate := today.AddDate(0, 0, expiryWarningDays)

	var expired []string
	var expiring []domain.ExpiringItem
	for _, item := range items {
		if item.ExpiryDate == "" {
			continue
		}
		expiry, err := ParseExpiryDate(item.ExpiryDate)
		if err != nil {
			logger.WarnContext(ctx, "Skipping item with malformed expiry date",
				slog.String("shop_id", item.ShopID),
				slog.String("item_id", item.ItemID),
				slog.String("expiry_date", item.ExpiryDate))
			continue
		}

		switch {
		case expiry.Before(today):
			expired = append(expired, item.DisplayName())
		case !expiry.After(warningDate):
			expiring = append(expiring, domain.ExpiringItem{
				Name:       item.DisplayName(),
				ExpiryDate: item.ExpiryDate,
				Quantity:   item.Quantity,
			})
		}
	}

	var alerts []domain.Alert
	if len(expired) > 0 {
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertExpired,
			Priority: domain.PriorityCritical,
			Title:    "Expired Items",
			Message:  fmt.Sprintf("%d items have expired: %s", len(expired), joinFirst(expired, messageNameLimit)),
			Action:   "Remove from inventory immediately",
			Items:    expired,
		})
	}
	if len(expiring) > 0 {
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertExpiringSoon,
			Priority: domain.PriorityMedium,
			Title:    "Items Expiring Soon",
			Message:  fmt.Sprintf("%d items expiring within %d days", len(expiring), expiryWarningDays),
			Action:   "Consider discount or promotion to clear stock",
			Expiring: expiring[:min(len(expiring), expiringPayloadSize)],
		})
	}

	return alerts
}

var expiryLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseExpiryDate accepts a plain date or an ISO-8601 timestamp and returns
// the calendar day at midnight UTC.
func ParseExpiryDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised expiry date %q", raw)
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func customerAmount(record *domain.LedgerRecord) domain.CustomerAmount {
	name := record.CustomerName
	if name == "" {
		name = "Unknown"
	}
	return domain.CustomerAmount{Name: name, Amount: record.OutstandingAmount}
}

func joinFirst(names []string, n int) string {
	return strings.Join(names[:min(len(names), n)], ", ")
}
