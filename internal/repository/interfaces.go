package repository

import (
	"context"
	"errors"

	"khata/internal/domain"
)

// LedgerRepository persists ledger records with optimistic concurrency:
// Save only succeeds when the stored version equals record.Version (0 means
// the record must not exist yet) and then advances record.Version.
type LedgerRepository interface {
	Get(ctx context.Context, shopID, customerID string) (*domain.LedgerRecord, error)
	ListRecords(ctx context.Context, shopID string) ([]*domain.LedgerRecord, error)
	Save(ctx context.Context, record *domain.LedgerRecord) error
}

type InventoryRepository interface {
	Save(ctx context.Context, item domain.InventoryItem) error
	Get(ctx context.Context, shopID, itemID string) (*domain.InventoryItem, error)
	ListItems(ctx context.Context, shopID string) ([]domain.InventoryItem, error)
	Delete(ctx context.Context, shopID, itemID string) error
}

type SalesRepository interface {
	Record(ctx context.Context, shopID, itemID string, point domain.SalePoint) error
	History(ctx context.Context, shopID, itemID string, days int) ([]domain.SalePoint, error)
}

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidRecord   = errors.New("invalid record")
)
