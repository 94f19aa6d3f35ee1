// Package redisstore keeps ledger, inventory and sales data in redis.
// Ledger records are JSON strings guarded by WATCH for compare-and-swap
// saves; every shop has an index list preserving first-save order. Sales
// are sorted sets scored by sale day.
package redisstore

import (
	"encoding/json"
	"fmt"

	"khata/internal/repository"
	"khata/pkg/validator"
)

const keyPrefix = "khata"

func ledgerKey(shopID, customerID string) string {
	return fmt.Sprintf("%s:ledger:%s:%s", keyPrefix, shopID, customerID)
}

func ledgerIndexKey(shopID string) string {
	return fmt.Sprintf("%s:ledger:%s:index", keyPrefix, shopID)
}

func inventoryKey(shopID string) string {
	return fmt.Sprintf("%s:inventory:%s", keyPrefix, shopID)
}

func salesKey(shopID, itemID string) string {
	return fmt.Sprintf("%s:sales:%s:%s", keyPrefix, shopID, itemID)
}

// decode unmarshals a stored value and validates it the same way writes are validated.
func decode(v *validator.Validator, raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}
	if err := v.Struct(dest); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}
	return nil
}
