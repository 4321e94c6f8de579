package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/pkg/broker"
)

// LedgerEventPublisher emits every committed ledger entry to Kafka for the
// external reporting component. Messages are keyed by stock record id so one
// record's history stays ordered within a partition.
type LedgerEventPublisher struct {
	producer *broker.KafkaProducer
}

func NewLedgerEventPublisher(producer *broker.KafkaProducer) *LedgerEventPublisher {
	return &LedgerEventPublisher{producer: producer}
}

type LedgerEvent struct {
	EventType string            `json:"event_type"`
	Entry     model.LedgerEntry `json:"entry"`
	Record    RecordSnapshot    `json:"record"`
	Timestamp time.Time         `json:"timestamp"`
}

// RecordSnapshot is the record state right after the entry was applied.
type RecordSnapshot struct {
	ID         model.StockRecordID `json:"id"`
	LocationID model.LocationID    `json:"location_id"`
	ProductID  *model.ProductID    `json:"product_id,omitempty"`
	VariantID  *model.VariantID    `json:"variant_id,omitempty"`
	Quantity   int64               `json:"quantity"`
	Reserved   int64               `json:"reserved"`
	Defective  int64               `json:"defective"`
	Available  int64               `json:"available"`
	Version    int64               `json:"version"`
}

func (p *LedgerEventPublisher) PublishEntry(ctx context.Context, rec *model.StockRecord, entry *model.LedgerEntry) error {
	event := LedgerEvent{
		EventType: "LedgerEntryAppended",
		Entry:     *entry,
		Record: RecordSnapshot{
			ID:         rec.ID,
			LocationID: rec.LocationID,
			ProductID:  rec.ProductID,
			VariantID:  rec.VariantID,
			Quantity:   rec.Quantity,
			Reserved:   rec.Reserved,
			Defective:  rec.Defective,
			Available:  rec.Available(),
			Version:    rec.Version,
		},
		Timestamp: entry.CreatedAt,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, []byte(rec.ID), value)
}
