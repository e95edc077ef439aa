package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/cache"
	"github.com/savorahq/savora/internal/handlers"
	"github.com/savorahq/savora/internal/middleware"
	"github.com/savorahq/savora/internal/realtime"
	"github.com/savorahq/savora/internal/services"
)

func registerOrderRoutes(api *gin.RouterGroup, db *gorm.DB, hub *realtime.Hub, store cache.Store) error {
	notifications, err := services.NewNotificationService(db, hub, store)
	if err != nil {
		return err
	}
	handler, err := handlers.NewOrderHandler(db, hub, notifications)
	if err != nil {
		return err
	}

	requireAdmin := middleware.RequireAdmin()

	orders := api.Group("/orders")
	{
		orders.POST("", handler.Record)
		orders.PATCH("/:id/status", requireAdmin, handler.UpdateStatus)
		orders.POST("/:id/refund/:stage", requireAdmin, handler.RecordRefundStage)
	}

	api.POST("/payments/:id/result", requireAdmin, handler.RecordPaymentResult)

	return nil
}
