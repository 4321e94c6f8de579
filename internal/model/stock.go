package model

import "time"

// Typed identifiers. Location and item identity is owned by the warehouse and
// product master data services; the ledger treats them as opaque.
type (
	StockRecordID string
	LedgerEntryID string
	LocationID    string
	ProductID     string
	VariantID     string
)

// Reason classifies an accepted mutation in the ledger.
type Reason string

const (
	ReasonInbound           Reason = "INBOUND"
	ReasonOutbound          Reason = "OUTBOUND"
	ReasonAdjustment        Reason = "ADJUSTMENT"
	ReasonReservation       Reason = "RESERVATION"
	ReasonCancelReservation Reason = "CANCEL_RESERVATION"
	ReasonMarkDefective     Reason = "MARK_DEFECTIVE"
	ReasonRestoreDefective  Reason = "RESTORE_DEFECTIVE"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonInbound, ReasonOutbound, ReasonAdjustment,
		ReasonReservation, ReasonCancelReservation,
		ReasonMarkDefective, ReasonRestoreDefective:
		return true
	}
	return false
}

// AdjustmentReason reports whether the reason is accepted by the manual
// adjust command. Reservation and defective reasons have dedicated commands.
func (r Reason) AdjustmentReason() bool {
	switch r {
	case ReasonInbound, ReasonOutbound, ReasonAdjustment:
		return true
	}
	return false
}

type StockStatus string

const (
	StatusInStock    StockStatus = "IN_STOCK"
	StatusLowStock   StockStatus = "LOW_STOCK"
	StatusOutOfStock StockStatus = "OUT_OF_STOCK"
)

const DefaultLowStockThreshold = 10

// StockRecord is one row per (location, item) pair. Exactly one of ProductID
// and VariantID is set. Version increases by one on every committed mutation
// and is the compare-and-swap key; nothing updates a record blindly.
type StockRecord struct {
	ID         StockRecordID `db:"id" json:"id"`
	LocationID LocationID    `db:"location_id" json:"location_id"`
	ProductID  *ProductID    `db:"product_id" json:"product_id,omitempty"`
	VariantID  *VariantID    `db:"variant_id" json:"variant_id,omitempty"`
	Quantity   int64         `db:"quantity" json:"quantity"`
	Reserved   int64         `db:"reserved" json:"reserved"`
	Defective  int64         `db:"defective" json:"defective"`
	Version    int64         `db:"version" json:"version"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// Available is the sellable remainder: quantity minus reserved.
func (s *StockRecord) Available() int64 {
	return s.Quantity - s.Reserved
}

func (s *StockRecord) Status(lowStockThreshold int64) StockStatus {
	available := s.Available()
	switch {
	case available <= 0:
		return StatusOutOfStock
	case available <= lowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// QualityRate is the percentage of on-premise units that are sellable.
// Defined as 100 when nothing is on premises.
func (s *StockRecord) QualityRate() float64 {
	total := s.Quantity + s.Defective
	if total == 0 {
		return 100
	}
	return float64(s.Quantity) / float64(total) * 100
}

// LedgerEntry is an immutable audit row, one per accepted mutation. Entries
// are never updated or deleted; Seq orders them oldest first within a record.
type LedgerEntry struct {
	ID             LedgerEntryID `db:"id" json:"id"`
	Seq            int64         `db:"seq" json:"seq"`
	StockRecordID  StockRecordID `db:"stock_record_id" json:"stock_record_id"`
	QuantityChange int64         `db:"quantity_change" json:"quantity_change"`
	ReservedDelta  int64         `db:"reserved_delta" json:"reserved_delta"`
	DefectiveDelta int64         `db:"defective_delta" json:"defective_delta"`
	Reason         Reason        `db:"reason" json:"reason"`
	Reference      *string       `db:"reference" json:"reference,omitempty"`
	Actor          string        `db:"actor" json:"actor"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}
