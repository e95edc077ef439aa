package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/middleware"
	"github.com/savorahq/savora/internal/realtime"
	"github.com/savorahq/savora/internal/services"
	"github.com/savorahq/savora/pkg/errors"
	"github.com/savorahq/savora/pkg/response"
)

// OrderHandler exposes the order/payment event pipeline endpoints. Storefront
// concerns (pricing, menus, refund money movement) are out of scope; the
// handlers here record outcomes and fan them out.
type OrderHandler struct {
	service *services.OrderService
}

// NewOrderHandler constructs an order handler.
func NewOrderHandler(db *gorm.DB, hub *realtime.Hub, notifications *services.NotificationService) (*OrderHandler, error) {
	service, err := services.NewOrderService(db, hub, notifications)
	if err != nil {
		return nil, err
	}
	return &OrderHandler{service: service}, nil
}

// Record registers an already-priced order snapshot and announces it.
func (h *OrderHandler) Record(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		TotalCents int64          `json:"total_cents" validate:"required,gt=0"`
		Fulfilment string         `json:"fulfilment"`
		Items      map[string]any `json:"items"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	order, err := h.service.Record(c.Request.Context(), services.RecordOrderInput{
		UserID:     userID,
		TotalCents: payload.TotalCents,
		Fulfilment: payload.Fulfilment,
		Items:      payload.Items,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, order)
}

// UpdateStatus advances an order through the kitchen workflow (admin only).
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var payload struct {
		Status string `json:"status" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	order, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, order)
}

// RecordPaymentResult mirrors a charge outcome reported by the payment provider.
func (h *OrderHandler) RecordPaymentResult(c *gin.Context) {
	var payload struct {
		Succeeded bool   `json:"succeeded"`
		Reference string `json:"reference"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	payment, err := h.service.RecordPaymentResult(c.Request.Context(), c.Param("id"), payload.Succeeded, payload.Reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, payment)
}

// RecordRefundStage relays a refund lifecycle event for an order (admin only).
func (h *OrderHandler) RecordRefundStage(c *gin.Context) {
	stage := strings.TrimSpace(c.Param("stage"))
	if err := h.service.RecordRefundStage(c.Request.Context(), c.Param("id"), stage); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"relayed": true})
}
