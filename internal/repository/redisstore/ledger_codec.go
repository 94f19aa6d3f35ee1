package redisstore

import (
	"encoding/json"
	"fmt"
	"time"

	"khata/internal/domain"
	"khata/internal/repository"
	"khata/pkg/validator"
)

// storedTransaction and storedRecord shadow the dueDate fields of the domain
// types so an unreadable date decodes to nil instead of failing the record.
type storedTransaction struct {
	domain.Transaction
	DueAt json.RawMessage `json:"dueDate,omitempty"`
}

type storedRecord struct {
	domain.LedgerRecord
	Transactions []storedTransaction `json:"transactions"`
	DueAt        json.RawMessage     `json:"dueDate,omitempty"`
}

// decodeLedgerRecord returns the record together with the names of the due
// date fields that could not be read and were dropped.
func decodeLedgerRecord(v *validator.Validator, raw []byte) (*domain.LedgerRecord, []string, error) {
	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}

	var dropped []string
	record := stored.LedgerRecord
	due, ok := parseDueDate(stored.DueAt)
	if !ok {
		dropped = append(dropped, "dueDate")
	}
	record.DueAt = due

	if stored.Transactions != nil {
		record.Transactions = make([]domain.Transaction, len(stored.Transactions))
	}
	for i, tx := range stored.Transactions {
		record.Transactions[i] = tx.Transaction
		due, ok := parseDueDate(tx.DueAt)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("transactions[%d].dueDate", i))
		}
		record.Transactions[i].DueAt = due
	}

	if err := v.Struct(&record); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", repository.ErrInvalidRecord, err)
	}
	return &record, dropped, nil
}

func parseDueDate(raw json.RawMessage) (*time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var due time.Time
	if err := json.Unmarshal(raw, &due); err != nil {
		return nil, false
	}
	return &due, true
}
