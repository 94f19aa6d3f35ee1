package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"khata/internal/domain"
	"khata/internal/repository"
	"khata/pkg/validator"
)

type LedgerRepository struct {
	client    *redis.Client
	validator *validator.Validator
	logger    *slog.Logger
}

func NewLedgerRepository(client *redis.Client, logger *slog.Logger) *LedgerRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &LedgerRepository{
		client:    client,
		validator: validator.Default(),
		logger:    logger,
	}
}

func (r *LedgerRepository) Get(ctx context.Context, shopID, customerID string) (*domain.LedgerRecord, error) {
	raw, err := r.client.Get(ctx, ledgerKey(shopID, customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: customer %s", repository.ErrNotFound, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger record: %w", err)
	}

	return r.decodeRecord(ctx, shopID, customerID, raw)
}

func (r *LedgerRepository) ListRecords(ctx context.Context, shopID string) ([]*domain.LedgerRecord, error) {
	customerIDs, err := r.client.LRange(ctx, ledgerIndexKey(shopID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger index: %w", err)
	}
	if len(customerIDs) == 0 {
		return []*domain.LedgerRecord{}, nil
	}

	keys := make([]string, len(customerIDs))
	for i, id := range customerIDs {
		keys[i] = ledgerKey(shopID, id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger records: %w", err)
	}

	records := make([]*domain.LedgerRecord, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		record, err := r.decodeRecord(ctx, shopID, customerIDs[i], []byte(raw))
		if err != nil {
			// A corrupt record is skipped so the rest of the shop stays listed.
			r.logger.WarnContext(ctx, "Skipping unreadable ledger record",
				slog.String("shop_id", shopID),
				slog.String("customer_id", customerIDs[i]),
				slog.String("error", err.Error()))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (r *LedgerRepository) decodeRecord(ctx context.Context, shopID, customerID string, raw []byte) (*domain.LedgerRecord, error) {
	record, dropped, err := decodeLedgerRecord(r.validator, raw)
	if err != nil {
		return nil, err
	}
	for _, field := range dropped {
		r.logger.WarnContext(ctx, "Ignoring unreadable due date",
			slog.String("shop_id", shopID),
			slog.String("customer_id", customerID),
			slog.String("field", field))
	}
	return record, nil
}

func (r *LedgerRepository) Save(ctx context.Context, record *domain.LedgerRecord) error {
	if err := r.validator.Struct(record); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}

	key := ledgerKey(record.ShopID, record.CustomerID)
	next := record.Clone()
	next.Version++
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode ledger record: %w", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != record.Version {
			return fmt.Errorf("%w: customer %s at version %d, expected %d",
				repository.ErrVersionConflict, record.CustomerID, current, record.Version)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			if current == 0 {
				pipe.RPush(ctx, ledgerIndexKey(record.ShopID), record.CustomerID)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: customer %s changed during save", repository.ErrVersionConflict, record.CustomerID)
	}
	if err != nil {
		return err
	}

	record.Version = next.Version
	return nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger record: %w", err)
	}

	var stored struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return 0, fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}
	return stored.Version, nil
}
