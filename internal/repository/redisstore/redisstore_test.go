package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"khata/internal/domain"
	"khata/internal/processor"
	"khata/internal/repository"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestLedgerRepository_SaveAndGet(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	record := domain.NewLedgerRecord("shop1", "cust1", "Ramesh")
	record.OutstandingAmount = decimal.RequireFromString("1250.50")
	record.Status = domain.StatusPending

	err := repo.Save(context.Background(), record)
	if err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	got, err := repo.Get(context.Background(), "shop1", "cust1")

	if err != nil {
		t.Fatalf("unexpected error on Get: %v", err)
	}
	if !got.OutstandingAmount.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("expected outstanding 1250.50, got %s", got.OutstandingAmount)
	}
	if got.Version != 1 || record.Version != 1 {
		t.Errorf("expected version 1, got stored=%d caller=%d", got.Version, record.Version)
	}
}

func TestLedgerRepository_GetMissing(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)

	_, err := repo.Get(context.Background(), "shop1", "ghost")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerRepository_StaleVersionConflicts(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	_ = repo.Save(context.Background(), domain.NewLedgerRecord("shop1", "cust1", "Ramesh"))
	first, _ := repo.Get(context.Background(), "shop1", "cust1")
	stale, _ := repo.Get(context.Background(), "shop1", "cust1")

	if err := repo.Save(context.Background(), first); err != nil {
		t.Fatalf("unexpected error on first Save: %v", err)
	}
	err := repo.Save(context.Background(), stale)

	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if stale.Version != 1 {
		t.Errorf("expected rejected record to keep version 1, got %d", stale.Version)
	}
}

func TestLedgerRepository_ListRecordsInFirstSaveOrder(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	b := domain.NewLedgerRecord("shop1", "b", "B")
	_ = repo.Save(context.Background(), b)
	_ = repo.Save(context.Background(), domain.NewLedgerRecord("shop1", "a", "A"))
	_ = repo.Save(context.Background(), b)

	records, err := repo.ListRecords(context.Background(), "shop1")

	if err != nil {
		t.Fatalf("unexpected error on ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].CustomerID != "b" || records[1].CustomerID != "a" {
		t.Errorf("expected [b a], got [%s %s]", records[0].CustomerID, records[1].CustomerID)
	}
}

func TestLedgerRepository_CorruptRecordIsInvalid(t *testing.T) {
	server, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	server.Set(ledgerKey("shop1", "cust1"), `{"shopId":"shop1","customerId":"cust1","outstandingAmount":"-5","status":"PENDING"}`)

	_, err := repo.Get(context.Background(), "shop1", "cust1")

	if !errors.Is(err, repository.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

const unreadableDueRecord = `{"shopId":"shop1","customerId":"bad","customerName":"Suresh",` +
	`"outstandingAmount":"300","status":"PENDING","dueDate":"not-a-date",` +
	`"transactions":[{"transactionId":"t1","type":"CREDIT","amount":"300",` +
	`"date":"2024-05-01T00:00:00Z","dueDate":"garbage"}],` +
	`"lastUpdated":"2024-05-01T00:00:00Z","version":1}`

func storeRaw(t *testing.T, client *redis.Client, shopID, customerID, raw string) {
	t.Helper()
	ctx := context.Background()
	if err := client.Set(ctx, ledgerKey(shopID, customerID), raw, 0).Err(); err != nil {
		t.Fatalf("unexpected error on Set: %v", err)
	}
	if err := client.RPush(ctx, ledgerIndexKey(shopID), customerID).Err(); err != nil {
		t.Fatalf("unexpected error on RPush: %v", err)
	}
}

func TestLedgerRepository_UnreadableDueDateIsNotOverdue(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	storeRaw(t, client, "shop1", "bad", unreadableDueRecord)

	record, err := repo.Get(context.Background(), "shop1", "bad")

	if err != nil {
		t.Fatalf("unexpected error on Get: %v", err)
	}
	if record.DueAt != nil {
		t.Errorf("expected unreadable due date to be dropped, got %v", record.DueAt)
	}
	if len(record.Transactions) != 1 || record.Transactions[0].DueAt != nil {
		t.Errorf("expected one transaction without due date, got %+v", record.Transactions)
	}
	if !record.OutstandingAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected outstanding 300, got %s", record.OutstandingAmount)
	}
	if processor.IsOverdue(record, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("expected record with unreadable due date not to be overdue")
	}
}

func TestLedgerRepository_UnreadableDueDateStaysWritable(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	storeRaw(t, client, "shop1", "bad", unreadableDueRecord)
	record, err := repo.Get(context.Background(), "shop1", "bad")
	if err != nil {
		t.Fatalf("unexpected error on Get: %v", err)
	}

	record.OutstandingAmount = decimal.NewFromInt(100)
	err = repo.Save(context.Background(), record)

	if err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	if record.Version != 2 {
		t.Errorf("expected version 2, got %d", record.Version)
	}
}

func TestLedgerRepository_ListSkipsCorruptRecord(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	_ = repo.Save(context.Background(), domain.NewLedgerRecord("shop1", "good", "Ramesh"))
	storeRaw(t, client, "shop1", "broken", `{"shopId":"shop1","customerId":"broken","outstandingAmount":"-5"}`)
	storeRaw(t, client, "shop1", "bad", unreadableDueRecord)

	records, err := repo.ListRecords(context.Background(), "shop1")

	if err != nil {
		t.Fatalf("unexpected error on ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 readable records, got %d", len(records))
	}
	if records[0].CustomerID != "good" || records[1].CustomerID != "bad" {
		t.Errorf("expected [good bad], got [%s %s]", records[0].CustomerID, records[1].CustomerID)
	}
}

func TestLedgerRepository_UnreadableDueDateKeepsShopAlerts(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewLedgerRepository(client, nil)
	good := domain.NewLedgerRecord("shop1", "good", "Ramesh")
	good.OutstandingAmount = decimal.NewFromInt(8000)
	good.Status = domain.StatusPending
	if err := repo.Save(context.Background(), good); err != nil {
		t.Fatalf("unexpected error on Save: %v", err)
	}
	storeRaw(t, client, "shop1", "bad", unreadableDueRecord)
	generator := processor.NewAlertGenerator(NewInventoryRepository(client), repo,
		processor.FixedClock{At: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)}, nil)

	report := generator.Generate(context.Background(), "shop1")

	if len(report.FailedChecks) != 0 {
		t.Fatalf("expected no failed checks, got %v", report.FailedChecks)
	}
	if report.Count != 1 || report.Alerts[0].Type != domain.AlertHighUdhaar {
		t.Errorf("expected a single HIGH_UDHAAR alert, got %+v", report.Alerts)
	}
}

func TestInventoryRepository_ListSortedByItemID(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewInventoryRepository(client)
	for _, id := range []string{"sugar", "atta", "oil"} {
		err := repo.Save(context.Background(), domain.InventoryItem{ShopID: "shop1", ItemID: id, Name: id})
		if err != nil {
			t.Fatalf("unexpected error on Save: %v", err)
		}
	}

	items, err := repo.ListItems(context.Background(), "shop1")

	if err != nil {
		t.Fatalf("unexpected error on ListItems: %v", err)
	}
	if len(items) != 3 || items[0].ItemID != "atta" || items[2].ItemID != "sugar" {
		t.Errorf("expected items sorted by id, got %+v", items)
	}
}

func TestInventoryRepository_DeleteMissing(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewInventoryRepository(client)

	err := repo.Delete(context.Background(), "shop1", "ghost")

	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSalesRepository_HistoryWindow(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewSalesRepository(client)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_ = repo.Record(context.Background(), "shop1", "rice", domain.SalePoint{
			Date:     start.AddDate(0, 0, i),
			Quantity: float64(i),
		})
	}

	history, err := repo.History(context.Background(), "shop1", "rice", 4)

	if err != nil {
		t.Fatalf("unexpected error on History: %v", err)
	}
	if len(history) != 4 || history[0].Quantity != 6 || history[3].Quantity != 9 {
		t.Errorf("expected last four points [6..9], got %v", history)
	}
}

func TestSalesRepository_RejectsNegativeQuantity(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewSalesRepository(client)

	err := repo.Record(context.Background(), "shop1", "rice", domain.SalePoint{Date: time.Now(), Quantity: -1})

	if !errors.Is(err, repository.ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestSalesRepository_OutOfOrderPostsReturnDateOrder(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewSalesRepository(client)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []int{2, 0, 1} {
		_ = repo.Record(context.Background(), "shop1", "rice", domain.SalePoint{
			Date:     start.AddDate(0, 0, offset),
			Quantity: float64(offset),
		})
	}

	history, err := repo.History(context.Background(), "shop1", "rice", 2)

	if err != nil {
		t.Fatalf("unexpected error on History: %v", err)
	}
	if len(history) != 2 || history[0].Quantity != 1 || history[1].Quantity != 2 {
		t.Errorf("expected the two latest days [1 2], got %v", history)
	}
}

func TestSalesRepository_SameDayReplacesPoint(t *testing.T) {
	_, client := newTestClient(t)
	repo := NewSalesRepository(client)
	day := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	_ = repo.Record(context.Background(), "shop1", "rice", domain.SalePoint{Date: day, Quantity: 4})

	err := repo.Record(context.Background(), "shop1", "rice", domain.SalePoint{Date: day.Add(8 * time.Hour), Quantity: 7})

	if err != nil {
		t.Fatalf("unexpected error on Record: %v", err)
	}
	history, _ := repo.History(context.Background(), "shop1", "rice", 30)
	if len(history) != 1 || history[0].Quantity != 7 {
		t.Errorf("expected a single point with quantity 7, got %v", history)
	}
}
