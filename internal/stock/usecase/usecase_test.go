package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock"
	"github.com/rahadianir/stocklet/internal/stock/dto"
	"github.com/rahadianir/stocklet/internal/stock/repository"
	"github.com/rahadianir/stocklet/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUseCase(t *testing.T) (stock.UseCase, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	uc := NewStockUseCase(repo, nil, nil, logger.NewNop(), Config{
		LowStockThreshold: 10,
		MaxRetries:        3,
	})
	return uc, repo
}

func createRecord(t *testing.T, uc stock.UseCase, locationID, productID string, initial int64) *model.StockRecord {
	t.Helper()
	p := model.ProductID(productID)
	rec, err := uc.CreateStockLocation(context.Background(), &dto.CreateStockLocationInput{
		LocationID:      model.LocationID(locationID),
		ProductID:       &p,
		InitialQuantity: initial,
		Actor:           "tester",
	})
	require.NoError(t, err)
	return rec
}

func allEntries(t *testing.T, uc stock.UseCase, id model.StockRecordID) []model.LedgerEntry {
	t.Helper()
	var out []model.LedgerEntry
	token := ""
	for {
		entries, next, err := uc.ListHistory(context.Background(), &dto.HistoryFilters{
			StockRecordID: id,
			PageToken:     token,
			PageSize:      100,
		})
		require.NoError(t, err)
		out = append(out, entries...)
		if next == "" {
			return out
		}
		token = next
	}
}

func TestCreateStockLocation(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 100)
	assert.Equal(t, int64(100), rec.Quantity)
	assert.Equal(t, int64(0), rec.Reserved)
	assert.Equal(t, int64(0), rec.Defective)
	assert.Equal(t, int64(1), rec.Version)

	// A second record for the same pair must be rejected.
	p := model.ProductID("prod-1")
	_, err := uc.CreateStockLocation(ctx, &dto.CreateStockLocationInput{
		LocationID:      "loc-1",
		ProductID:       &p,
		InitialQuantity: 5,
	})
	assert.ErrorIs(t, err, stock.ErrDuplicateLocation)

	// Same product at another location is fine.
	_, err = uc.CreateStockLocation(ctx, &dto.CreateStockLocationInput{
		LocationID:      "loc-2",
		ProductID:       &p,
		InitialQuantity: 5,
	})
	assert.NoError(t, err)
}

func TestCreateStockLocationValidation(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	p := model.ProductID("prod-1")
	v := model.VariantID("var-1")

	_, err := uc.CreateStockLocation(ctx, &dto.CreateStockLocationInput{LocationID: "loc-1"})
	assert.ErrorIs(t, err, stock.ErrInvalidInput, "neither product nor variant")

	_, err = uc.CreateStockLocation(ctx, &dto.CreateStockLocationInput{
		LocationID: "loc-1", ProductID: &p, VariantID: &v,
	})
	assert.ErrorIs(t, err, stock.ErrInvalidInput, "both product and variant")

	_, err = uc.CreateStockLocation(ctx, &dto.CreateStockLocationInput{
		LocationID: "loc-1", ProductID: &p, InitialQuantity: -1,
	})
	assert.ErrorIs(t, err, stock.ErrInvalidInput, "negative opening count")
}

func TestReserve(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 100)

	entry, err := uc.Reserve(ctx, &dto.ReserveInput{
		StockRecordID: rec.ID,
		Quantity:      30,
		Reference:     "order-1",
		Actor:         "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReasonReservation, entry.Reason)
	assert.Equal(t, int64(30), entry.ReservedDelta)
	assert.Equal(t, int64(0), entry.QuantityChange)
	require.NotNil(t, entry.Reference)
	assert.Equal(t, "order-1", *entry.Reference)

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Quantity)
	assert.Equal(t, int64(30), got.Reserved)
	assert.Equal(t, int64(70), got.Available())

	entries := allEntries(t, uc, rec.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ReasonReservation, entries[0].Reason)
}

func TestReserveInsufficientAvailable(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 5)
	_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 5})
	require.NoError(t, err)

	// Fully reserved: one more unit must be rejected with no trace.
	_, err = uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 1})
	assert.ErrorIs(t, err, stock.ErrInsufficientAvailable)

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Quantity)
	assert.Equal(t, int64(5), got.Reserved)
	assert.Len(t, allEntries(t, uc, rec.ID), 1, "rejected reservation must not append an entry")
}

func TestReserveUnknownRecord(t *testing.T) {
	uc, _ := newTestUseCase(t)
	_, err := uc.Reserve(context.Background(), &dto.ReserveInput{StockRecordID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, stock.ErrNotFound)
}

func TestCancelReservation(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 10)
	_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 4})
	require.NoError(t, err)

	entry, err := uc.CancelReservation(ctx, &dto.CancelReservationInput{
		StockRecordID: rec.ID,
		Quantity:      3,
		Reference:     "order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReasonCancelReservation, entry.Reason)
	assert.Equal(t, int64(-3), entry.ReservedDelta)

	got, _ := uc.GetStockRecord(ctx, rec.ID)
	assert.Equal(t, int64(1), got.Reserved)

	// Cancelling more than is reserved is a business-rule violation.
	_, err = uc.CancelReservation(ctx, &dto.CancelReservationInput{StockRecordID: rec.ID, Quantity: 2})
	assert.ErrorIs(t, err, stock.ErrInvalidCancellation)
}

func TestAdjust(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 10)

	entry, err := uc.Adjust(ctx, &dto.AdjustInput{
		StockRecordID: rec.ID,
		Change:        15,
		Reason:        model.ReasonInbound,
		Reference:     "po-77",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), entry.QuantityChange)

	entry, err = uc.Adjust(ctx, &dto.AdjustInput{
		StockRecordID: rec.ID,
		Change:        -5,
		Reason:        model.ReasonOutbound,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-5), entry.QuantityChange)

	got, _ := uc.GetStockRecord(ctx, rec.ID)
	assert.Equal(t, int64(20), got.Quantity)
}

func TestAdjustGuards(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 10)
	_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 8})
	require.NoError(t, err)

	// Would drive quantity below reserved.
	_, err = uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: -3, Reason: model.ReasonOutbound})
	assert.ErrorIs(t, err, stock.ErrInsufficientQuantity)

	// Would drive quantity negative.
	_, err = uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: -100, Reason: model.ReasonAdjustment})
	assert.ErrorIs(t, err, stock.ErrInsufficientQuantity)

	// Sign conventions per reason.
	_, err = uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: -1, Reason: model.ReasonInbound})
	assert.ErrorIs(t, err, stock.ErrInvalidInput)
	_, err = uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: 1, Reason: model.ReasonOutbound})
	assert.ErrorIs(t, err, stock.ErrInvalidInput)

	// Reservation reasons are not accepted by the adjust command.
	_, err = uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: 1, Reason: model.ReasonReservation})
	assert.ErrorIs(t, err, stock.ErrInvalidInput)

	got, _ := uc.GetStockRecord(ctx, rec.ID)
	assert.Equal(t, int64(10), got.Quantity, "rejected adjustments must not mutate")
	assert.Len(t, allEntries(t, uc, rec.ID), 1)
}

func TestDefectiveTransferConservesTotal(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 20)

	entry, err := uc.MarkDefective(ctx, &dto.MarkDefectiveInput{
		StockRecordID: rec.ID,
		Quantity:      3,
		Reference:     "damage-report-9",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReasonMarkDefective, entry.Reason)
	assert.Equal(t, int64(-3), entry.QuantityChange)
	assert.Equal(t, int64(3), entry.DefectiveDelta)

	got, _ := uc.GetStockRecord(ctx, rec.ID)
	assert.Equal(t, int64(17), got.Quantity)
	assert.Equal(t, int64(3), got.Defective)
	assert.InDelta(t, 85.0, got.QualityRate(), 0.001)
	assert.Equal(t, int64(20), got.Quantity+got.Defective, "pool transfer, not shrinkage")

	_, err = uc.RestoreFromDefective(ctx, &dto.RestoreDefectiveInput{StockRecordID: rec.ID, Quantity: 3})
	require.NoError(t, err)

	got, _ = uc.GetStockRecord(ctx, rec.ID)
	assert.Equal(t, int64(20), got.Quantity)
	assert.Equal(t, int64(0), got.Defective)
}

func TestMarkDefectiveCannotPullReserved(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 10)
	_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 8})
	require.NoError(t, err)

	_, err = uc.MarkDefective(ctx, &dto.MarkDefectiveInput{StockRecordID: rec.ID, Quantity: 3})
	assert.ErrorIs(t, err, stock.ErrInsufficientQuantity)
}

func TestRestoreInsufficientDefective(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 10)
	_, err := uc.RestoreFromDefective(ctx, &dto.RestoreDefectiveInput{StockRecordID: rec.ID, Quantity: 1})
	assert.ErrorIs(t, err, stock.ErrInsufficientDefective)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Reserve(ctx, &dto.ReserveInput{
				StockRecordID: rec.ID,
				Quantity:      6,
				Reference:     "race",
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.True(t,
				errors.Is(err, stock.ErrInsufficientAvailable) || errors.Is(err, stock.ErrContention),
				"unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "combined demand exceeds availability; exactly one wins")

	got, _ := uc.GetStockRecord(ctx, rec.ID)
	assert.Equal(t, int64(6), got.Reserved)
	assert.GreaterOrEqual(t, got.Available(), int64(0))
}

func TestContentionAfterRetriesExhausted(t *testing.T) {
	repo := repository.NewMemoryRepository()
	uc := NewStockUseCase(&alwaysConflictRepo{Repository: repo}, nil, nil, logger.NewNop(), Config{MaxRetries: 3})

	p := model.ProductID("prod-1")
	rec, err := uc.CreateStockLocation(context.Background(), &dto.CreateStockLocationInput{
		LocationID: "loc-1", ProductID: &p, InitialQuantity: 10,
	})
	require.NoError(t, err)

	_, err = uc.Reserve(context.Background(), &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 1})
	assert.ErrorIs(t, err, stock.ErrContention)
}

// alwaysConflictRepo simulates a record whose version moves between every
// read and commit.
type alwaysConflictRepo struct {
	stock.Repository
}

func (r *alwaysConflictRepo) UpdateWithEntry(context.Context, *model.StockRecord, int64, *model.LedgerEntry) error {
	return stock.ErrVersionConflict
}

func TestLedgerCompleteness(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	const initial = int64(50)
	rec := createRecord(t, uc, "loc-1", "prod-1", initial)

	ops := []func() error{
		func() error {
			_, err := uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: 25, Reason: model.ReasonInbound})
			return err
		},
		func() error {
			_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 12})
			return err
		},
		func() error {
			_, err := uc.CancelReservation(ctx, &dto.CancelReservationInput{StockRecordID: rec.ID, Quantity: 4})
			return err
		},
		func() error {
			_, err := uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: -10, Reason: model.ReasonOutbound})
			return err
		},
		func() error {
			_, err := uc.MarkDefective(ctx, &dto.MarkDefectiveInput{StockRecordID: rec.ID, Quantity: 5})
			return err
		},
		func() error {
			_, err := uc.RestoreFromDefective(ctx, &dto.RestoreDefectiveInput{StockRecordID: rec.ID, Quantity: 2})
			return err
		},
	}
	for _, op := range ops {
		require.NoError(t, op())
	}

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)

	var sumChange, sumReserved, sumDefective int64
	for _, e := range allEntries(t, uc, rec.ID) {
		sumChange += e.QuantityChange
		sumReserved += e.ReservedDelta
		sumDefective += e.DefectiveDelta
	}

	assert.Equal(t, got.Quantity-initial, sumChange)
	assert.Equal(t, got.Reserved, sumReserved)
	assert.Equal(t, got.Defective, sumDefective)

	// Invariants hold after the whole sequence.
	assert.GreaterOrEqual(t, got.Reserved, int64(0))
	assert.LessOrEqual(t, got.Reserved, got.Quantity)
	assert.GreaterOrEqual(t, got.Defective, int64(0))
}

func TestListHistoryPagination(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 100)
	for i := 0; i < 7; i++ {
		_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 1})
		require.NoError(t, err)
	}

	var collected []model.LedgerEntry
	token := ""
	pages := 0
	for {
		entries, next, err := uc.ListHistory(ctx, &dto.HistoryFilters{
			StockRecordID: rec.ID,
			PageToken:     token,
			PageSize:      3,
		})
		require.NoError(t, err)
		collected = append(collected, entries...)
		pages++
		if next == "" {
			break
		}
		token = next
	}

	assert.Equal(t, 3, pages)
	require.Len(t, collected, 7)
	for i := 1; i < len(collected); i++ {
		assert.Greater(t, collected[i].Seq, collected[i-1].Seq, "oldest first, strictly ordered")
	}
}

func TestListHistoryReasonFilter(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 100)
	_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = uc.Adjust(ctx, &dto.AdjustInput{StockRecordID: rec.ID, Change: 5, Reason: model.ReasonInbound})
	require.NoError(t, err)

	entries, _, err := uc.ListHistory(ctx, &dto.HistoryFilters{
		StockRecordID: rec.ID,
		Reason:        model.ReasonInbound,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ReasonInbound, entries[0].Reason)

	_, _, err = uc.ListHistory(ctx, &dto.HistoryFilters{StockRecordID: rec.ID, Reason: "BOGUS"})
	assert.ErrorIs(t, err, stock.ErrInvalidInput)
}

func TestItemSummary(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	createRecord(t, uc, "loc-1", "prod-1", 20)
	rec2 := createRecord(t, uc, "loc-2", "prod-1", 10)
	createRecord(t, uc, "loc-1", "prod-2", 99)

	_, err := uc.Reserve(ctx, &dto.ReserveInput{StockRecordID: rec2.ID, Quantity: 5})
	require.NoError(t, err)
	_, err = uc.MarkDefective(ctx, &dto.MarkDefectiveInput{StockRecordID: rec2.ID, Quantity: 2})
	require.NoError(t, err)

	p := model.ProductID("prod-1")
	summary, err := uc.ItemSummary(ctx, &p, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Locations)
	assert.Equal(t, int64(28), summary.Quantity)
	assert.Equal(t, int64(5), summary.Reserved)
	assert.Equal(t, int64(2), summary.Defective)
	assert.Equal(t, int64(23), summary.Available)
	assert.InDelta(t, float64(28)/30*100, summary.QualityRate, 0.001)
}

func TestGetStockRecordIdempotentRead(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	rec := createRecord(t, uc, "loc-1", "prod-1", 42)

	first, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	second, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestListStockRecordsLowStockFilter(t *testing.T) {
	uc, _ := newTestUseCase(t)
	ctx := context.Background()

	createRecord(t, uc, "loc-1", "prod-low", 3)
	createRecord(t, uc, "loc-1", "prod-high", 500)

	items, total, err := uc.ListStockRecords(ctx, &dto.StockFilters{LowStock: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ProductID)
	assert.Equal(t, model.ProductID("prod-low"), *items[0].ProductID)
}
