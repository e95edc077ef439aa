package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/cache"
	"github.com/savorahq/savora/internal/handlers"
	"github.com/savorahq/savora/internal/middleware"
	"github.com/savorahq/savora/internal/realtime"
)

func registerNotificationRoutes(api *gin.RouterGroup, db *gorm.DB, hub *realtime.Hub, store cache.Store) error {
	handler, err := handlers.NewNotificationHandler(db, hub, store)
	if err != nil {
		return err
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", handler.List)
		notifications.GET("/unread-count", handler.UnreadCount)
		notifications.POST("/mark-read", handler.MarkRead)
		notifications.POST("/mark-all-read", handler.MarkAllRead)
		notifications.DELETE("/:id", handler.Delete)
		notifications.POST("", middleware.RequireAdmin(), handler.Create)
	}

	return nil
}
