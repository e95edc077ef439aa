package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/cache"
	"github.com/savorahq/savora/internal/middleware"
	"github.com/savorahq/savora/internal/realtime"
	"github.com/savorahq/savora/internal/services"
	"github.com/savorahq/savora/pkg/errors"
	"github.com/savorahq/savora/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service *services.NotificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(db *gorm.DB, hub *realtime.Hub, store cache.Store) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db, hub, store)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{service: service}, nil
}

// List returns one page of notifications for the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 20)

	input := services.ListNotificationsInput{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
		Type:     strings.TrimSpace(c.Query("type")),
	}
	switch c.Query("unread") {
	case "true":
		v := true
		input.Unread = &v
	case "false":
		v := false
		input.Unread = &v
	}

	items, hasMore, err := h.service.ListForUser(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Page:    page,
		PerPage: pageSize,
		HasMore: hasMore,
	})
}

// UnreadCount returns the number of unread notifications.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead flips a batch of notifications to read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		IDs []string `json:"ids" validate:"required,min=1"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	updated, err := h.service.MarkRead(c.Request.Context(), userID, payload.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// MarkAllRead marks every unread notification as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkAllRead(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// Delete removes a notification. Deleting an unknown id yields 404, which
// clients treat as an already-deleted success.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Create allows back-office tooling to push an arbitrary notification.
func (h *NotificationHandler) Create(c *gin.Context) {
	var payload struct {
		UserID   string         `json:"user_id" validate:"required"`
		Type     string         `json:"type" validate:"required"`
		Title    string         `json:"title" validate:"required"`
		Message  string         `json:"message"`
		Priority string         `json:"priority"`
		Payload  map[string]any `json:"payload"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	dto, err := h.service.Create(c.Request.Context(), services.CreateNotificationInput{
		UserID:   payload.UserID,
		Type:     payload.Type,
		Title:    payload.Title,
		Message:  payload.Message,
		Priority: payload.Priority,
		Payload:  payload.Payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}
