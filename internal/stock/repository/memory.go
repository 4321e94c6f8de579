package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock"
	"github.com/rahadianir/stocklet/internal/stock/dto"
)

// MemoryRepository keeps records and ledger entries in process memory with
// the same compare-and-swap semantics as the Postgres repository. Used by
// tests and local development; not safe across processes.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[model.StockRecordID]model.StockRecord
	entries []model.LedgerEntry
	seq     int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[model.StockRecordID]model.StockRecord),
	}
}

func (r *MemoryRepository) Create(_ context.Context, rec *model.StockRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.LocationID != rec.LocationID {
			continue
		}
		if equalProduct(existing.ProductID, rec.ProductID) && equalVariant(existing.VariantID, rec.VariantID) {
			return stock.ErrDuplicateLocation
		}
	}

	r.records[rec.ID] = *rec
	return nil
}

func equalProduct(a, b *model.ProductID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalVariant(a, b *model.VariantID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *MemoryRepository) GetByID(_ context.Context, id model.StockRecordID) (*model.StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, stock.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (r *MemoryRepository) GetByLocationItem(_ context.Context, locationID model.LocationID, productID *model.ProductID, variantID *model.VariantID) (*model.StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.LocationID != locationID {
			continue
		}
		if productID != nil && rec.ProductID != nil && *rec.ProductID == *productID {
			out := rec
			return &out, nil
		}
		if variantID != nil && rec.VariantID != nil && *rec.VariantID == *variantID {
			out := rec
			return &out, nil
		}
	}
	return nil, stock.ErrNotFound
}

func (r *MemoryRepository) FindAll(_ context.Context, f *dto.StockFilters) ([]model.StockRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []model.StockRecord
	for _, rec := range r.records {
		if f.LocationID != "" && rec.LocationID != f.LocationID {
			continue
		}
		if f.ProductID != "" && (rec.ProductID == nil || *rec.ProductID != f.ProductID) {
			continue
		}
		if f.VariantID != "" && (rec.VariantID == nil || *rec.VariantID != f.VariantID) {
			continue
		}
		if f.LowStock && rec.Available() > f.LowStockThreshold {
			continue
		}
		items = append(items, rec)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	count := len(items)
	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * f.PageSize
		if start > len(items) {
			start = len(items)
		}
		end := start + f.PageSize
		if end > len(items) {
			end = len(items)
		}
		items = items[start:end]
	}
	return items, count, nil
}

func (r *MemoryRepository) UpdateWithEntry(_ context.Context, rec *model.StockRecord, expectedVersion int64, entry *model.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[rec.ID]
	if !ok {
		return stock.ErrNotFound
	}
	if current.Version != expectedVersion {
		return stock.ErrVersionConflict
	}

	rec.Version = expectedVersion + 1
	r.records[rec.ID] = *rec

	r.seq++
	entry.Seq = r.seq
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *MemoryRepository) ListEntries(_ context.Context, f *dto.HistoryFilters) ([]model.LedgerEntry, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	afterSeq := int64(0)
	if f.PageToken != "" {
		seq, err := strconv.ParseInt(f.PageToken, 10, 64)
		if err != nil {
			return nil, "", stock.ErrInvalidInput
		}
		afterSeq = seq
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var entries []model.LedgerEntry
	for _, e := range r.entries {
		if e.StockRecordID != f.StockRecordID || e.Seq <= afterSeq {
			continue
		}
		if f.Reason != "" && e.Reason != f.Reason {
			continue
		}
		entries = append(entries, e)
	}

	nextToken := ""
	if len(entries) > pageSize {
		entries = entries[:pageSize]
		nextToken = strconv.FormatInt(entries[len(entries)-1].Seq, 10)
	}
	return entries, nextToken, nil
}

func (r *MemoryRepository) SumByItem(_ context.Context, productID *model.ProductID, variantID *model.VariantID) (*dto.ItemSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := &dto.ItemSummary{ProductID: productID, VariantID: variantID}
	for _, rec := range r.records {
		match := false
		if productID != nil && rec.ProductID != nil && *rec.ProductID == *productID {
			match = true
		}
		if variantID != nil && rec.VariantID != nil && *rec.VariantID == *variantID {
			match = true
		}
		if !match {
			continue
		}
		summary.Locations++
		summary.Quantity += rec.Quantity
		summary.Reserved += rec.Reserved
		summary.Defective += rec.Defective
	}
	return summary, nil
}
