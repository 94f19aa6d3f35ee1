package redisstore

import (
	"khata/internal/processor"
	"khata/internal/repository"
)

var (
	_ repository.LedgerRepository    = (*LedgerRepository)(nil)
	_ repository.InventoryRepository = (*InventoryRepository)(nil)
	_ repository.SalesRepository     = (*SalesRepository)(nil)

	_ processor.LedgerSource    = (*LedgerRepository)(nil)
	_ processor.InventorySource = (*InventoryRepository)(nil)
)
