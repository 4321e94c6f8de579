package listener

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock"
	"github.com/rahadianir/stocklet/internal/stock/dto"
	"github.com/rahadianir/stocklet/internal/stock/repository"
	"github.com/rahadianir/stocklet/internal/stock/usecase"
	"github.com/rahadianir/stocklet/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*OrderListener, stock.UseCase, *model.StockRecord) {
	t.Helper()

	uc := usecase.NewStockUseCase(repository.NewMemoryRepository(), nil, nil, logger.NewNop(), usecase.Config{
		LowStockThreshold: 10,
		MaxRetries:        3,
	})

	p := model.ProductID("prod-1")
	rec, err := uc.CreateStockLocation(context.Background(), &dto.CreateStockLocationInput{
		LocationID:      "store-1",
		ProductID:       &p,
		InitialQuantity: 10,
		Actor:           "tester",
	})
	require.NoError(t, err)

	return NewOrderListener(nil, uc, logger.NewNop()), uc, rec
}

func orderEvent(t *testing.T, eventType, orderID string, qty int64) []byte {
	t.Helper()
	productID := "prod-1"
	raw, err := json.Marshal(OrderEvent{
		EventID:   "evt-1",
		EventType: eventType,
		Payload: OrderPayload{
			ID:         orderID,
			LocationID: "store-1",
			Items: []OrderItemPayload{
				{ProductID: &productID, Quantity: qty},
			},
		},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return raw
}

func TestOrderCreatedReservesStock(t *testing.T) {
	l, uc, rec := setup(t)
	ctx := context.Background()

	l.processMessage(ctx, orderEvent(t, "OrderCreated", "order-1", 4))

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Reserved)

	entries, _, err := uc.ListHistory(ctx, &dto.HistoryFilters{StockRecordID: rec.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ReasonReservation, entries[0].Reason)
	require.NotNil(t, entries[0].Reference)
	assert.Equal(t, "order-1", *entries[0].Reference)
	assert.Equal(t, "order-intake", entries[0].Actor)
}

func TestOrderCancelledReleasesReservation(t *testing.T) {
	l, uc, rec := setup(t)
	ctx := context.Background()

	l.processMessage(ctx, orderEvent(t, "OrderCreated", "order-1", 4))
	l.processMessage(ctx, orderEvent(t, "OrderCancelled", "order-1", 4))

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Reserved)
}

func TestOrderReturnedRestocks(t *testing.T) {
	l, uc, rec := setup(t)
	ctx := context.Background()

	l.processMessage(ctx, orderEvent(t, "OrderReturned", "order-9", 3))

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(13), got.Quantity)
}

func TestOversizedOrderDoesNotOversell(t *testing.T) {
	l, uc, rec := setup(t)
	ctx := context.Background()

	l.processMessage(ctx, orderEvent(t, "OrderCreated", "order-big", 50))

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Reserved, "rejected reservation leaves no hold")
}

func TestUnknownEventTypeIgnored(t *testing.T) {
	l, uc, rec := setup(t)
	ctx := context.Background()

	l.processMessage(ctx, orderEvent(t, "OrderShipped", "order-1", 2))
	l.processMessage(ctx, []byte("not json"))

	got, err := uc.GetStockRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Quantity)
	assert.Equal(t, int64(0), got.Reserved)
}
