package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock"
	"github.com/rahadianir/stocklet/internal/stock/dto"
	"github.com/rahadianir/stocklet/pkg/cache"
	"github.com/rahadianir/stocklet/pkg/logger"
	"go.uber.org/zap"
)

type Config struct {
	LowStockThreshold int64
	MaxRetries        int
	CacheTTL          time.Duration
}

type stockUseCase struct {
	repo      stock.Repository
	cache     *cache.RedisClient
	publisher stock.EventPublisher
	logger    logger.ZapLogger
	cfg       Config
}

func NewStockUseCase(repo stock.Repository, redis *cache.RedisClient, publisher stock.EventPublisher, log logger.ZapLogger, cfg Config) stock.UseCase {
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = model.DefaultLowStockThreshold
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &stockUseCase{
		repo:      repo,
		cache:     redis,
		publisher: publisher,
		logger:    log,
		cfg:       cfg,
	}
}

func (uc *stockUseCase) LowStockThreshold() int64 {
	return uc.cfg.LowStockThreshold
}

func (uc *stockUseCase) CreateStockLocation(ctx context.Context, input *dto.CreateStockLocationInput) (*model.StockRecord, error) {
	if input.LocationID == "" {
		return nil, fmt.Errorf("%w: location id is required", stock.ErrInvalidInput)
	}
	if err := validateItemRef(input.ProductID, input.VariantID); err != nil {
		return nil, err
	}
	if input.InitialQuantity < 0 {
		return nil, fmt.Errorf("%w: initial quantity must not be negative", stock.ErrInvalidInput)
	}

	now := time.Now()
	rec := &model.StockRecord{
		ID:         model.StockRecordID(uuid.New().String()),
		LocationID: input.LocationID,
		ProductID:  input.ProductID,
		VariantID:  input.VariantID,
		Quantity:   input.InitialQuantity,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	uc.logger.Info("stock location created",
		zap.String("stock_record_id", string(rec.ID)),
		zap.String("location_id", string(rec.LocationID)),
		zap.Int64("initial_quantity", rec.Quantity),
	)
	return rec, nil
}

func (uc *stockUseCase) GetStockRecord(ctx context.Context, id model.StockRecordID) (*model.StockRecord, error) {
	if rec := uc.cachedRecord(ctx, id); rec != nil {
		return rec, nil
	}

	rec, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	uc.cacheRecord(ctx, rec)
	return rec, nil
}

func (uc *stockUseCase) GetStockRecordByItem(ctx context.Context, locationID model.LocationID, productID *model.ProductID, variantID *model.VariantID) (*model.StockRecord, error) {
	if locationID == "" {
		return nil, fmt.Errorf("%w: location id is required", stock.ErrInvalidInput)
	}
	if err := validateItemRef(productID, variantID); err != nil {
		return nil, err
	}
	return uc.repo.GetByLocationItem(ctx, locationID, productID, variantID)
}

func (uc *stockUseCase) ListStockRecords(ctx context.Context, filters *dto.StockFilters) ([]model.StockRecord, int, error) {
	if filters.LowStock {
		filters.LowStockThreshold = uc.cfg.LowStockThreshold
	}
	return uc.repo.FindAll(ctx, filters)
}

func (uc *stockUseCase) Reserve(ctx context.Context, input *dto.ReserveInput) (*model.LedgerEntry, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: reserve quantity must be positive", stock.ErrInvalidInput)
	}

	return uc.mutate(ctx, input.StockRecordID, func(rec *model.StockRecord) (*model.LedgerEntry, error) {
		if rec.Available() < input.Quantity {
			return nil, stock.ErrInsufficientAvailable
		}
		rec.Reserved += input.Quantity
		return &model.LedgerEntry{
			ReservedDelta: input.Quantity,
			Reason:        model.ReasonReservation,
			Reference:     optionalRef(input.Reference),
			Actor:         input.Actor,
		}, nil
	})
}

func (uc *stockUseCase) CancelReservation(ctx context.Context, input *dto.CancelReservationInput) (*model.LedgerEntry, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: cancel quantity must be positive", stock.ErrInvalidInput)
	}

	return uc.mutate(ctx, input.StockRecordID, func(rec *model.StockRecord) (*model.LedgerEntry, error) {
		if input.Quantity > rec.Reserved {
			return nil, stock.ErrInvalidCancellation
		}
		rec.Reserved -= input.Quantity
		return &model.LedgerEntry{
			ReservedDelta: -input.Quantity,
			Reason:        model.ReasonCancelReservation,
			Reference:     optionalRef(input.Reference),
			Actor:         input.Actor,
		}, nil
	})
}

func (uc *stockUseCase) Adjust(ctx context.Context, input *dto.AdjustInput) (*model.LedgerEntry, error) {
	if input.Change == 0 {
		return nil, fmt.Errorf("%w: change must not be zero", stock.ErrInvalidInput)
	}
	switch input.Reason {
	case model.ReasonInbound:
		if input.Change < 0 {
			return nil, fmt.Errorf("%w: inbound change must be positive", stock.ErrInvalidInput)
		}
	case model.ReasonOutbound:
		if input.Change > 0 {
			return nil, fmt.Errorf("%w: outbound change must be negative", stock.ErrInvalidInput)
		}
	case model.ReasonAdjustment:
		// either direction
	default:
		return nil, fmt.Errorf("%w: reason %q is not an adjustment reason", stock.ErrInvalidInput, input.Reason)
	}

	return uc.mutate(ctx, input.StockRecordID, func(rec *model.StockRecord) (*model.LedgerEntry, error) {
		newQuantity := rec.Quantity + input.Change
		if newQuantity < 0 || newQuantity < rec.Reserved {
			return nil, stock.ErrInsufficientQuantity
		}
		rec.Quantity = newQuantity
		return &model.LedgerEntry{
			QuantityChange: input.Change,
			Reason:         input.Reason,
			Reference:      optionalRef(input.Reference),
			Actor:          input.Actor,
		}, nil
	})
}

// MarkDefective moves units from the sellable pool to the defective pool.
// Reserved units cannot be pulled; quantity + defective is conserved.
func (uc *stockUseCase) MarkDefective(ctx context.Context, input *dto.MarkDefectiveInput) (*model.LedgerEntry, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: defective quantity must be positive", stock.ErrInvalidInput)
	}

	return uc.mutate(ctx, input.StockRecordID, func(rec *model.StockRecord) (*model.LedgerEntry, error) {
		if input.Quantity > rec.Available() {
			return nil, stock.ErrInsufficientQuantity
		}
		rec.Quantity -= input.Quantity
		rec.Defective += input.Quantity
		return &model.LedgerEntry{
			QuantityChange: -input.Quantity,
			DefectiveDelta: input.Quantity,
			Reason:         model.ReasonMarkDefective,
			Reference:      optionalRef(input.Reference),
			Actor:          input.Actor,
		}, nil
	})
}

func (uc *stockUseCase) RestoreFromDefective(ctx context.Context, input *dto.RestoreDefectiveInput) (*model.LedgerEntry, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: restore quantity must be positive", stock.ErrInvalidInput)
	}

	return uc.mutate(ctx, input.StockRecordID, func(rec *model.StockRecord) (*model.LedgerEntry, error) {
		if input.Quantity > rec.Defective {
			return nil, stock.ErrInsufficientDefective
		}
		rec.Defective -= input.Quantity
		rec.Quantity += input.Quantity
		return &model.LedgerEntry{
			QuantityChange: input.Quantity,
			DefectiveDelta: -input.Quantity,
			Reason:         model.ReasonRestoreDefective,
			Reference:      optionalRef(input.Reference),
			Actor:          input.Actor,
		}, nil
	})
}

func (uc *stockUseCase) ListHistory(ctx context.Context, filters *dto.HistoryFilters) ([]model.LedgerEntry, string, error) {
	if filters.Reason != "" && !filters.Reason.Valid() {
		return nil, "", fmt.Errorf("%w: unknown reason %q", stock.ErrInvalidInput, filters.Reason)
	}
	return uc.repo.ListEntries(ctx, filters)
}

func (uc *stockUseCase) ItemSummary(ctx context.Context, productID *model.ProductID, variantID *model.VariantID) (*dto.ItemSummary, error) {
	if err := validateItemRef(productID, variantID); err != nil {
		return nil, err
	}

	summary, err := uc.repo.SumByItem(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	summary.Available = summary.Quantity - summary.Reserved
	total := summary.Quantity + summary.Defective
	if total == 0 {
		summary.QualityRate = 100
	} else {
		summary.QualityRate = float64(summary.Quantity) / float64(total) * 100
	}
	return summary, nil
}

// mutate runs the optimistic read-apply-commit loop shared by every mutating
// command. apply validates against the snapshot and edits it in place; on a
// version conflict the whole step re-runs against a fresh read, up to the
// configured retry budget. Business-rule failures abort without retrying and
// leave no trace in the ledger.
func (uc *stockUseCase) mutate(ctx context.Context, id model.StockRecordID, apply func(rec *model.StockRecord) (*model.LedgerEntry, error)) (*model.LedgerEntry, error) {
	for attempt := 0; attempt < uc.cfg.MaxRetries; attempt++ {
		rec, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		expectedVersion := rec.Version
		entry, err := apply(rec)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		rec.UpdatedAt = now
		entry.ID = model.LedgerEntryID(uuid.New().String())
		entry.StockRecordID = rec.ID
		entry.CreatedAt = now

		err = uc.repo.UpdateWithEntry(ctx, rec, expectedVersion, entry)
		if errors.Is(err, stock.ErrVersionConflict) {
			uc.logger.Debug("lost compare-and-swap race, retrying",
				zap.String("stock_record_id", string(id)),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		uc.invalidateRecord(ctx, rec.ID)
		uc.publishEntry(ctx, rec, entry)
		return entry, nil
	}

	uc.logger.Warn("mutation retries exhausted", zap.String("stock_record_id", string(id)))
	return nil, stock.ErrContention
}

func (uc *stockUseCase) publishEntry(ctx context.Context, rec *model.StockRecord, entry *model.LedgerEntry) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishEntry(ctx, rec, entry); err != nil {
		// The ledger row is already durable; reporting consumers catch up from it.
		uc.logger.Error("failed to publish ledger entry",
			zap.String("ledger_entry_id", string(entry.ID)),
			zap.Error(err),
		)
	}
}

const recordCachePrefix = "stock:record:"

func (uc *stockUseCase) cachedRecord(ctx context.Context, id model.StockRecordID) *model.StockRecord {
	if uc.cache == nil {
		return nil
	}
	raw, err := uc.cache.Get(ctx, recordCachePrefix+string(id))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			uc.logger.Warn("stock record cache read failed", zap.Error(err))
		}
		return nil
	}
	var rec model.StockRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil
	}
	return &rec
}

func (uc *stockUseCase) cacheRecord(ctx context.Context, rec *model.StockRecord) {
	if uc.cache == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := uc.cache.Set(ctx, recordCachePrefix+string(rec.ID), raw, uc.cfg.CacheTTL); err != nil {
		uc.logger.Warn("stock record cache write failed", zap.Error(err))
	}
}

func (uc *stockUseCase) invalidateRecord(ctx context.Context, id model.StockRecordID) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Delete(ctx, recordCachePrefix+string(id)); err != nil {
		uc.logger.Warn("stock record cache invalidation failed", zap.Error(err))
	}
}

func validateItemRef(productID *model.ProductID, variantID *model.VariantID) error {
	if (productID == nil) == (variantID == nil) {
		return fmt.Errorf("%w: exactly one of product id and variant id must be set", stock.ErrInvalidInput)
	}
	if productID != nil && *productID == "" {
		return fmt.Errorf("%w: product id must not be empty", stock.ErrInvalidInput)
	}
	if variantID != nil && *variantID == "" {
		return fmt.Errorf("%w: variant id must not be empty", stock.ErrInvalidInput)
	}
	return nil
}

func optionalRef(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}
