package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rahadianir/stocklet/internal/auth"
	"github.com/rahadianir/stocklet/internal/model"
	"github.com/rahadianir/stocklet/internal/stock"
	"github.com/rahadianir/stocklet/internal/stock/dto"
	"github.com/rahadianir/stocklet/pkg/logger"
	"go.uber.org/zap"
)

type StockHandler struct {
	uc     stock.UseCase
	logger logger.ZapLogger
}

func NewStockHandler(uc stock.UseCase, log logger.ZapLogger) *StockHandler {
	return &StockHandler{
		uc:     uc,
		logger: log,
	}
}

type createStockLocationRequest struct {
	LocationID      string  `json:"location_id" binding:"required"`
	ProductID       *string `json:"product_id"`
	VariantID       *string `json:"variant_id"`
	InitialQuantity int64   `json:"initial_quantity" binding:"gte=0"`
}

type quantityRequest struct {
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Reference string `json:"reference"`
}

type adjustRequest struct {
	Change    int64  `json:"change" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
	Reference string `json:"reference"`
}

// stockRecordResponse carries the record plus the derived display fields.
// Derived values are advisory; every command re-validates at commit time.
type stockRecordResponse struct {
	model.StockRecord
	Available   int64             `json:"available"`
	Status      model.StockStatus `json:"status"`
	QualityRate float64           `json:"quality_rate"`
}

func (h *StockHandler) toResponse(rec *model.StockRecord) stockRecordResponse {
	return stockRecordResponse{
		StockRecord: *rec,
		Available:   rec.Available(),
		Status:      rec.Status(h.uc.LowStockThreshold()),
		QualityRate: rec.QualityRate(),
	}
}

func (h *StockHandler) CreateStockLocation(c *gin.Context) {
	var req createStockLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, wrapBinding(err))
		return
	}

	rec, err := h.uc.CreateStockLocation(c.Request.Context(), &dto.CreateStockLocationInput{
		LocationID:      model.LocationID(req.LocationID),
		ProductID:       (*model.ProductID)(req.ProductID),
		VariantID:       (*model.VariantID)(req.VariantID),
		InitialQuantity: req.InitialQuantity,
		Actor:           auth.Actor(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(rec))
}

func (h *StockHandler) GetStockRecord(c *gin.Context) {
	rec, err := h.uc.GetStockRecord(c.Request.Context(), model.StockRecordID(c.Param("id")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(rec))
}

func (h *StockHandler) LookupStockRecord(c *gin.Context) {
	var productID *model.ProductID
	var variantID *model.VariantID
	if v := c.Query("product_id"); v != "" {
		p := model.ProductID(v)
		productID = &p
	}
	if v := c.Query("variant_id"); v != "" {
		vid := model.VariantID(v)
		variantID = &vid
	}

	rec, err := h.uc.GetStockRecordByItem(c.Request.Context(), model.LocationID(c.Query("location_id")), productID, variantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(rec))
}

func (h *StockHandler) ListStockRecords(c *gin.Context) {
	filters := &dto.StockFilters{
		LocationID: model.LocationID(c.Query("location_id")),
		ProductID:  model.ProductID(c.Query("product_id")),
		VariantID:  model.VariantID(c.Query("variant_id")),
		LowStock:   c.Query("low_stock") == "true",
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}

	items, count, err := h.uc.ListStockRecords(c.Request.Context(), filters)
	if err != nil {
		h.respondError(c, err)
		return
	}

	records := make([]stockRecordResponse, len(items))
	for i := range items {
		records[i] = h.toResponse(&items[i])
	}
	c.JSON(http.StatusOK, gin.H{"items": records, "total": count})
}

func (h *StockHandler) Reserve(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, wrapBinding(err))
		return
	}

	entry, err := h.uc.Reserve(c.Request.Context(), &dto.ReserveInput{
		StockRecordID: model.StockRecordID(c.Param("id")),
		Quantity:      req.Quantity,
		Reference:     req.Reference,
		Actor:         auth.Actor(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *StockHandler) CancelReservation(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, wrapBinding(err))
		return
	}

	entry, err := h.uc.CancelReservation(c.Request.Context(), &dto.CancelReservationInput{
		StockRecordID: model.StockRecordID(c.Param("id")),
		Quantity:      req.Quantity,
		Reference:     req.Reference,
		Actor:         auth.Actor(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *StockHandler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, wrapBinding(err))
		return
	}

	entry, err := h.uc.Adjust(c.Request.Context(), &dto.AdjustInput{
		StockRecordID: model.StockRecordID(c.Param("id")),
		Change:        req.Change,
		Reason:        model.Reason(req.Reason),
		Reference:     req.Reference,
		Actor:         auth.Actor(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *StockHandler) MarkDefective(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, wrapBinding(err))
		return
	}

	entry, err := h.uc.MarkDefective(c.Request.Context(), &dto.MarkDefectiveInput{
		StockRecordID: model.StockRecordID(c.Param("id")),
		Quantity:      req.Quantity,
		Reference:     req.Reference,
		Actor:         auth.Actor(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *StockHandler) RestoreFromDefective(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, wrapBinding(err))
		return
	}

	entry, err := h.uc.RestoreFromDefective(c.Request.Context(), &dto.RestoreDefectiveInput{
		StockRecordID: model.StockRecordID(c.Param("id")),
		Quantity:      req.Quantity,
		Reference:     req.Reference,
		Actor:         auth.Actor(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *StockHandler) ListHistory(c *gin.Context) {
	entries, nextToken, err := h.uc.ListHistory(c.Request.Context(), &dto.HistoryFilters{
		StockRecordID: model.StockRecordID(c.Param("id")),
		Reason:        model.Reason(c.Query("reason")),
		PageToken:     c.Query("page_token"),
		PageSize:      queryInt(c, "page_size", 50),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "next_page_token": nextToken})
}

func (h *StockHandler) ItemSummary(c *gin.Context) {
	var productID *model.ProductID
	var variantID *model.VariantID
	if v := c.Query("product_id"); v != "" {
		p := model.ProductID(v)
		productID = &p
	}
	if v := c.Query("variant_id"); v != "" {
		vid := model.VariantID(v)
		variantID = &vid
	}

	summary, err := h.uc.ItemSummary(c.Request.Context(), productID, variantID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// respondError maps the error taxonomy to HTTP. The code field lets calling
// UIs distinguish "fix the input" from "try again" without parsing messages.
func (h *StockHandler) respondError(c *gin.Context, err error) {
	type errorBody struct {
		Code      string `json:"code"`
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	}

	status := http.StatusInternalServerError
	body := errorBody{Code: "INTERNAL", Error: "internal error"}

	switch {
	case errors.Is(err, stock.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{Code: "NOT_FOUND", Error: err.Error()}
	case errors.Is(err, stock.ErrDuplicateLocation):
		status, body = http.StatusConflict, errorBody{Code: "DUPLICATE_LOCATION", Error: err.Error()}
	case errors.Is(err, stock.ErrInsufficientAvailable):
		status, body = http.StatusUnprocessableEntity, errorBody{Code: "INSUFFICIENT_AVAILABLE", Error: err.Error()}
	case errors.Is(err, stock.ErrInsufficientQuantity):
		status, body = http.StatusUnprocessableEntity, errorBody{Code: "INSUFFICIENT_QUANTITY", Error: err.Error()}
	case errors.Is(err, stock.ErrInsufficientDefective):
		status, body = http.StatusUnprocessableEntity, errorBody{Code: "INSUFFICIENT_DEFECTIVE", Error: err.Error()}
	case errors.Is(err, stock.ErrInvalidCancellation):
		status, body = http.StatusUnprocessableEntity, errorBody{Code: "INVALID_CANCELLATION", Error: err.Error()}
	case errors.Is(err, stock.ErrInvalidInput):
		status, body = http.StatusBadRequest, errorBody{Code: "INVALID_INPUT", Error: err.Error()}
	case errors.Is(err, stock.ErrContention):
		status, body = http.StatusConflict, errorBody{Code: "CONTENTION", Error: err.Error(), Retryable: true}
	default:
		h.logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, body)
}

func wrapBinding(err error) error {
	return errors.Join(stock.ErrInvalidInput, err)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
