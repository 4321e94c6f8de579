package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStockRecordAvailable(t *testing.T) {
	rec := &StockRecord{Quantity: 100, Reserved: 30}
	assert.Equal(t, int64(70), rec.Available())

	rec = &StockRecord{Quantity: 5, Reserved: 5}
	assert.Equal(t, int64(0), rec.Available())
}

func TestStockRecordStatus(t *testing.T) {
	tests := []struct {
		name     string
		quantity int64
		reserved int64
		want     StockStatus
	}{
		{"out of stock when nothing on hand", 0, 0, StatusOutOfStock},
		{"out of stock when fully reserved", 5, 5, StatusOutOfStock},
		{"low stock at threshold", 10, 0, StatusLowStock},
		{"low stock below threshold", 12, 5, StatusLowStock},
		{"in stock above threshold", 11, 0, StatusInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &StockRecord{Quantity: tt.quantity, Reserved: tt.reserved}
			assert.Equal(t, tt.want, rec.Status(DefaultLowStockThreshold))
		})
	}
}

func TestStockRecordQualityRate(t *testing.T) {
	rec := &StockRecord{Quantity: 17, Defective: 3}
	assert.InDelta(t, 85.0, rec.QualityRate(), 0.001)

	rec = &StockRecord{Quantity: 0, Defective: 0}
	assert.Equal(t, 100.0, rec.QualityRate())

	rec = &StockRecord{Quantity: 0, Defective: 4}
	assert.Equal(t, 0.0, rec.QualityRate())
}

func TestReasonValid(t *testing.T) {
	for _, r := range []Reason{
		ReasonInbound, ReasonOutbound, ReasonAdjustment, ReasonReservation,
		ReasonCancelReservation, ReasonMarkDefective, ReasonRestoreDefective,
	} {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, Reason("SHRINKAGE").Valid())
	assert.False(t, Reason("").Valid())
}

func TestReasonAdjustmentReason(t *testing.T) {
	assert.True(t, ReasonInbound.AdjustmentReason())
	assert.True(t, ReasonOutbound.AdjustmentReason())
	assert.True(t, ReasonAdjustment.AdjustmentReason())
	assert.False(t, ReasonReservation.AdjustmentReason())
	assert.False(t, ReasonMarkDefective.AdjustmentReason())
}
