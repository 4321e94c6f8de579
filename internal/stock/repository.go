package stock

import (
	"context"

	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock/dto"
)

type Repository interface {
	// Stock records
	Create(ctx context.Context, rec *model.StockRecord) error
	GetByID(ctx context.Context, id model.StockRecordID) (*model.StockRecord, error)
	GetByLocationItem(ctx context.Context, locationID model.LocationID, productID *model.ProductID, variantID *model.VariantID) (*model.StockRecord, error)
	FindAll(ctx context.Context, filters *dto.StockFilters) ([]model.StockRecord, int, error)

	// UpdateWithEntry commits the record mutation and appends the ledger
	// entry in one atomic unit, conditional on expectedVersion. Returns
	// ErrVersionConflict when another writer committed first.
	UpdateWithEntry(ctx context.Context, rec *model.StockRecord, expectedVersion int64, entry *model.LedgerEntry) error

	// Ledger
	ListEntries(ctx context.Context, filters *dto.HistoryFilters) ([]model.LedgerEntry, string, error)

	// Aggregation
	SumByItem(ctx context.Context, productID *model.ProductID, variantID *model.VariantID) (*dto.ItemSummary, error)
}
