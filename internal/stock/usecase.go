package stock

import (
	"context"

	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock/dto"
)

type UseCase interface {
	CreateStockLocation(ctx context.Context, input *dto.CreateStockLocationInput) (*model.StockRecord, error)
	GetStockRecord(ctx context.Context, id model.StockRecordID) (*model.StockRecord, error)
	GetStockRecordByItem(ctx context.Context, locationID model.LocationID, productID *model.ProductID, variantID *model.VariantID) (*model.StockRecord, error)
	ListStockRecords(ctx context.Context, filters *dto.StockFilters) ([]model.StockRecord, int, error)

	Reserve(ctx context.Context, input *dto.ReserveInput) (*model.LedgerEntry, error)
	CancelReservation(ctx context.Context, input *dto.CancelReservationInput) (*model.LedgerEntry, error)
	Adjust(ctx context.Context, input *dto.AdjustInput) (*model.LedgerEntry, error)
	MarkDefective(ctx context.Context, input *dto.MarkDefectiveInput) (*model.LedgerEntry, error)
	RestoreFromDefective(ctx context.Context, input *dto.RestoreDefectiveInput) (*model.LedgerEntry, error)

	ListHistory(ctx context.Context, filters *dto.HistoryFilters) ([]model.LedgerEntry, string, error)
	ItemSummary(ctx context.Context, productID *model.ProductID, variantID *model.VariantID) (*dto.ItemSummary, error)

	LowStockThreshold() int64
}

// EventPublisher receives every committed ledger entry. Publishing is
// best-effort: the durable ledger row is the source of truth and reporting
// consumers re-read from it if they fall behind.
type EventPublisher interface {
	PublishEntry(ctx context.Context, rec *model.StockRecord, entry *model.LedgerEntry) error
}
