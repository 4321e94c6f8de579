package dto

import "github.com/rahadianir/stocklet/internal/model"

type StockFilters struct {
	LocationID model.LocationID
	ProductID  model.ProductID
	VariantID  model.VariantID
	LowStock   bool
	// LowStockThreshold backs the LowStock filter; set by the use case from
	// configuration, not by callers.
	LowStockThreshold int64
	Page              int
	PageSize          int
}

type HistoryFilters struct {
	StockRecordID model.StockRecordID
	Reason        model.Reason
	PageToken     string
	PageSize      int
}

// ItemSummary aggregates one item across all stocking locations. Values are a
// point-in-time snapshot and may trail concurrent writers.
type ItemSummary struct {
	ProductID   *model.ProductID `json:"product_id,omitempty"`
	VariantID   *model.VariantID `json:"variant_id,omitempty"`
	Locations   int              `json:"locations"`
	Quantity    int64            `json:"quantity"`
	Reserved    int64            `json:"reserved"`
	Defective   int64            `json:"defective"`
	Available   int64            `json:"available"`
	QualityRate float64          `json:"quality_rate"`
}
