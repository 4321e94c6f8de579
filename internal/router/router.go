package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rahadianir/stocklet/internal/auth"
	"github.com/rahadianir/stocklet/internal/stock/handler"
	"github.com/rahadianir/stocklet/pkg/logger"
	"go.uber.org/zap"
)

// New wires the Gin engine with routes and middlewares.
func New(h *handler.StockHandler, log logger.ZapLogger, appEnv string) *gin.Engine {
	if appEnv != "development" && appEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(auth.ActorMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/stock", h.CreateStockLocation)
		v1.GET("/stock", h.ListStockRecords)
		v1.GET("/stock/:id", h.GetStockRecord)
		v1.GET("/stock/:id/history", h.ListHistory)
		v1.POST("/stock/:id/reserve", h.Reserve)
		v1.POST("/stock/:id/cancel-reservation", h.CancelReservation)
		v1.POST("/stock/:id/adjust", h.Adjust)
		v1.POST("/stock/:id/defective", h.MarkDefective)
		v1.POST("/stock/:id/restore", h.RestoreFromDefective)
		v1.GET("/items/stock", h.LookupStockRecord)
		v1.GET("/items/summary", h.ItemSummary)
	}

	return r
}

func requestLogger(log logger.ZapLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
