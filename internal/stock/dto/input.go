package dto

import "github.com/rahadianir/stocklet/internal/model"

type CreateStockLocationInput struct {
	LocationID      model.LocationID
	ProductID       *model.ProductID
	VariantID       *model.VariantID
	InitialQuantity int64
	Actor           string
}

type ReserveInput struct {
	StockRecordID model.StockRecordID
	Quantity      int64
	Reference     string
	Actor         string
}

type CancelReservationInput struct {
	StockRecordID model.StockRecordID
	Quantity      int64
	Reference     string
	Actor         string
}

type AdjustInput struct {
	StockRecordID model.StockRecordID
	Change        int64
	Reason        model.Reason // INBOUND, OUTBOUND or ADJUSTMENT
	Reference     string
	Actor         string
}

type MarkDefectiveInput struct {
	StockRecordID model.StockRecordID
	Quantity      int64
	Reference     string
	Actor         string
}

type RestoreDefectiveInput struct {
	StockRecordID model.StockRecordID
	Quantity      int64
	Reference     string
	Actor         string
}
