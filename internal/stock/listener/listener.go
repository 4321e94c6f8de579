package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock"
	"github.com/rahadianir/stocklet/internal/stock/dto"
	"github.com/rahadianir/stocklet/pkg/broker"
	"github.com/rahadianir/stocklet/pkg/logger"
	"go.uber.org/zap"
)

const orderActor = "order-intake"

// OrderListener is the order-intake caller: it turns order lifecycle events
// into reservation and adjustment commands against the ledger.
type OrderListener struct {
	consumer *broker.KafkaConsumer
	uc       stock.UseCase
	logger   logger.ZapLogger
}

func NewOrderListener(consumer *broker.KafkaConsumer, uc stock.UseCase, log logger.ZapLogger) *OrderListener {
	return &OrderListener{
		consumer: consumer,
		uc:       uc,
		logger:   log,
	}
}

func (l *OrderListener) Start(ctx context.Context) {
	l.logger.Info("starting order event listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping order event listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.processMessage(ctx, msg.Value)
		}
	}
}

type OrderEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID         string             `json:"id"`
	LocationID string             `json:"location_id"`
	Items      []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID *string `json:"product_id"`
	VariantID *string `json:"variant_id"`
	Quantity  int64   `json:"quantity"`
}

func (l *OrderListener) processMessage(ctx context.Context, value []byte) {
	var event OrderEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("failed to unmarshal order event", zap.Error(err))
		return
	}

	switch event.EventType {
	case "OrderCreated", "OrderCancelled", "OrderReturned":
	default:
		return
	}

	l.logger.Info("processing order event",
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.Payload.ID),
	)

	for _, item := range event.Payload.Items {
		rec, err := l.resolveRecord(ctx, event.Payload.LocationID, item)
		if err != nil {
			l.logger.Error("failed to resolve stock record for order item",
				zap.String("order_id", event.Payload.ID),
				zap.Error(err),
			)
			continue
		}

		if err := l.applyItem(ctx, event, rec.ID, item.Quantity); err != nil {
			l.logger.Error("failed to apply order event to stock record",
				zap.String("order_id", event.Payload.ID),
				zap.String("stock_record_id", string(rec.ID)),
				zap.Error(err),
			)
		}
	}
}

func (l *OrderListener) resolveRecord(ctx context.Context, locationID string, item OrderItemPayload) (*model.StockRecord, error) {
	var productID *model.ProductID
	var variantID *model.VariantID
	if item.VariantID != nil && *item.VariantID != "" {
		v := model.VariantID(*item.VariantID)
		variantID = &v
	} else if item.ProductID != nil && *item.ProductID != "" {
		p := model.ProductID(*item.ProductID)
		productID = &p
	}
	return l.uc.GetStockRecordByItem(ctx, model.LocationID(locationID), productID, variantID)
}

func (l *OrderListener) applyItem(ctx context.Context, event OrderEvent, id model.StockRecordID, qty int64) error {
	switch event.EventType {
	case "OrderCreated":
		_, err := l.uc.Reserve(ctx, &dto.ReserveInput{
			StockRecordID: id,
			Quantity:      qty,
			Reference:     event.Payload.ID,
			Actor:         orderActor,
		})
		if errors.Is(err, stock.ErrInsufficientAvailable) {
			// Surfaced back to ordering through the reporting stream; the
			// listener never force-reserves past availability.
			l.logger.Warn("order reservation rejected, insufficient stock",
				zap.String("order_id", event.Payload.ID),
				zap.String("stock_record_id", string(id)),
			)
			return nil
		}
		return err
	case "OrderCancelled":
		_, err := l.uc.CancelReservation(ctx, &dto.CancelReservationInput{
			StockRecordID: id,
			Quantity:      qty,
			Reference:     event.Payload.ID,
			Actor:         orderActor,
		})
		return err
	case "OrderReturned":
		_, err := l.uc.Adjust(ctx, &dto.AdjustInput{
			StockRecordID: id,
			Change:        qty,
			Reason:        model.ReasonInbound,
			Reference:     event.Payload.ID,
			Actor:         orderActor,
		})
		return err
	}
	return nil
}
