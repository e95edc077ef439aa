package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/models"
	"github.com/savorahq/savora/internal/realtime"
	apperrors "github.com/savorahq/savora/pkg/errors"
	"github.com/savorahq/savora/pkg/logger"
)

// statusTransitions defines the kitchen workflow. Cancellation is handled
// separately and is allowed from any non-terminal status.
var statusTransitions = map[string]string{
	models.OrderStatusPlaced:    models.OrderStatusPreparing,
	models.OrderStatusPreparing: models.OrderStatusReady,
	models.OrderStatusReady:     models.OrderStatusDelivered,
}

// OrderService drives order-status and payment events through the realtime
// pipeline: room broadcasts plus per-user notification records. Order
// creation, pricing, and refund money movement live in the storefront API;
// this service only records outcomes and fans them out.
type OrderService struct {
	db            *gorm.DB
	hub           *realtime.Hub
	notifications *NotificationService
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, hub *realtime.Hub, notifications *NotificationService) (*OrderService, error) {
	if db == nil {
		return nil, errors.New("order service: db is required")
	}
	return &OrderService{db: db, hub: hub, notifications: notifications}, nil
}

// RecordOrderInput captures the already-priced order snapshot handed over by
// the storefront.
type RecordOrderInput struct {
	UserID     string
	TotalCents int64
	Fulfilment string
	Items      map[string]any
}

// Record inserts the order row, announces it to the admin room, and creates
// the customer's order-placed notification.
func (s *OrderService) Record(ctx context.Context, input RecordOrderInput) (*models.Order, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("order service: user id is required")
	}

	fulfilment := strings.TrimSpace(input.Fulfilment)
	if fulfilment != "pickup" {
		fulfilment = "delivery"
	}

	order := models.Order{
		UserID:     userID,
		Number:     newOrderNumber(),
		Status:     models.OrderStatusPlaced,
		TotalCents: input.TotalCents,
		Fulfilment: fulfilment,
	}
	if input.Items != nil {
		data, err := json.Marshal(input.Items)
		if err != nil {
			return nil, fmt.Errorf("order service: marshal items: %w", err)
		}
		order.Items = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("order service: record order: %w", err)
	}

	s.broadcastAdmin(realtime.EventNewOrder, orderEventData(&order))
	s.notify(ctx, &order, models.NotificationOrderPlaced)

	return &order, nil
}

// UpdateStatus advances an order along the kitchen workflow. Skipping steps or
// moving backwards yields ErrOrderTransition.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, newStatus string) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	newStatus = strings.ToLower(strings.TrimSpace(newStatus))
	if newStatus == models.OrderStatusCancelled {
		return s.cancel(ctx, order)
	}

	if statusTransitions[order.Status] != newStatus {
		return nil, apperrors.ErrOrderTransition
	}

	updates := map[string]any{"status": newStatus}
	if newStatus == models.OrderStatusDelivered {
		now := time.Now().UTC()
		updates["delivered_at"] = now
		order.DeliveredAt = &now
	}
	if err := s.db.WithContext(ctx).Model(order).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("order service: update status: %w", err)
	}
	order.Status = newStatus

	s.broadcastOrder(order, realtime.EventOrderStatusUpdated)
	s.notify(ctx, order, notificationTypeForStatus(order))

	return order, nil
}

func (s *OrderService) cancel(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Status == models.OrderStatusDelivered || order.Status == models.OrderStatusCancelled {
		return nil, apperrors.ErrOrderTransition
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(order).Updates(map[string]any{
		"status":       models.OrderStatusCancelled,
		"cancelled_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("order service: cancel order: %w", err)
	}
	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now

	s.broadcastOrder(order, realtime.EventOrderStatusUpdated)
	s.notify(ctx, order, models.NotificationCancelled)

	return order, nil
}

// RecordPaymentResult mirrors a charge outcome from the payment provider and
// relays it to the payment room and the customer's notification feed.
func (s *OrderService) RecordPaymentResult(ctx context.Context, paymentID string, succeeded bool, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Take(&payment, "id = ?", strings.TrimSpace(paymentID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("order service: load payment: %w", err)
	}

	status := models.PaymentStatusFailed
	event := realtime.EventPaymentFailed
	notificationType := models.NotificationPaymentFailed
	if succeeded {
		status = models.PaymentStatusSucceeded
		event = realtime.EventPaymentSuccess
		notificationType = models.NotificationPaymentSuccess
	}

	if err := s.db.WithContext(ctx).Model(&payment).Updates(map[string]any{
		"status":    status,
		"reference": strings.TrimSpace(reference),
	}).Error; err != nil {
		return nil, fmt.Errorf("order service: record payment: %w", err)
	}
	payment.Status = status
	payment.Reference = strings.TrimSpace(reference)

	if s.hub != nil {
		s.hub.BroadcastRoom(realtime.PaymentRoom(payment.ID), realtime.Message{
			Event: event,
			Data: map[string]any{
				"payment_id": payment.ID,
				"order_id":   payment.OrderID,
				"status":     payment.Status,
			},
		})
	}

	if order, err := s.load(ctx, payment.OrderID); err == nil {
		s.notify(ctx, order, notificationType)
	}

	return &payment, nil
}

// Refund stages relayed from the back office.
const (
	RefundStageRequested = "requested"
	RefundStageProcessed = "processed"
	RefundStageIssued    = "issued"
)

var refundNotificationTypes = map[string]string{
	RefundStageRequested: models.NotificationRefundRequested,
	RefundStageProcessed: models.NotificationRefundProcessed,
	RefundStageIssued:    models.NotificationRefundIssued,
}

// RecordRefundStage relays a refund lifecycle event for an order. The refund
// itself is processed elsewhere; this only informs the customer.
func (s *OrderService) RecordRefundStage(ctx context.Context, orderID, stage string) error {
	notificationType, ok := refundNotificationTypes[strings.ToLower(strings.TrimSpace(stage))]
	if !ok {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown refund stage %q", stage))
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}

	s.broadcastOrder(order, realtime.EventOrderStatusUpdated)
	s.notify(ctx, order, notificationType)
	return nil
}

func (s *OrderService) load(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Take(&order, "id = ?", strings.TrimSpace(orderID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order service: load order: %w", err)
	}
	return &order, nil
}

// orderEventData is the payload broadcast with new-order and
// order-status-updated events. It mirrors the notification payload so both
// consumers see the same identifiers.
func orderEventData(order *models.Order) map[string]any {
	return map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
		"status":       order.Status,
		"total_cents":  order.TotalCents,
		"fulfilment":   order.Fulfilment,
	}
}

func (s *OrderService) broadcastOrder(order *models.Order, event string) {
	if s.hub == nil {
		return
	}
	data := orderEventData(order)
	s.hub.BroadcastRoom(realtime.OrderRoom(order.ID), realtime.Message{Event: event, Data: data})
	s.hub.BroadcastRoom(realtime.RoomAdmin, realtime.Message{Event: event, Data: data})
}

func (s *OrderService) broadcastAdmin(event string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastRoom(realtime.RoomAdmin, realtime.Message{Event: event, Data: data})
}

func (s *OrderService) notify(ctx context.Context, order *models.Order, notificationType string) {
	if s.notifications == nil || notificationType == "" {
		return
	}

	title, message := notificationText(notificationType, order)
	_, err := s.notifications.Create(ctx, CreateNotificationInput{
		UserID:   order.UserID,
		Type:     notificationType,
		Title:    title,
		Message:  message,
		Priority: notificationPriority(notificationType),
		Payload: map[string]any{
			"order_id":     order.ID,
			"order_number": order.Number,
			"status":       order.Status,
		},
	})
	if err != nil {
		// Losing a notification must not fail the order mutation.
		logger.WithModule("orders").Warn("notification create failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func notificationTypeForStatus(order *models.Order) string {
	switch order.Status {
	case models.OrderStatusPreparing:
		return models.NotificationKitchenStarted
	case models.OrderStatusReady:
		if order.Fulfilment == "pickup" {
			return models.NotificationReadyPickup
		}
		return models.NotificationReadyDelivery
	case models.OrderStatusDelivered:
		return models.NotificationDelivered
	case models.OrderStatusCancelled:
		return models.NotificationCancelled
	default:
		return ""
	}
}

func notificationPriority(notificationType string) string {
	switch notificationType {
	case models.NotificationCancelled, models.NotificationPaymentFailed:
		return models.PriorityUrgent
	case models.NotificationOrderPlaced, models.NotificationReadyPickup,
		models.NotificationReadyDelivery, models.NotificationRefundIssued:
		return models.PriorityHigh
	case models.NotificationRefundRequested:
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func notificationText(notificationType string, order *models.Order) (string, string) {
	switch notificationType {
	case models.NotificationOrderPlaced:
		return "Order placed", fmt.Sprintf("Order %s has been received.", order.Number)
	case models.NotificationKitchenStarted:
		return "Kitchen started", fmt.Sprintf("Order %s is being prepared.", order.Number)
	case models.NotificationReadyPickup:
		return "Ready for pickup", fmt.Sprintf("Order %s is ready for pickup.", order.Number)
	case models.NotificationReadyDelivery:
		return "Out for delivery", fmt.Sprintf("Order %s is on its way.", order.Number)
	case models.NotificationDelivered:
		return "Order delivered", fmt.Sprintf("Order %s was delivered. Enjoy!", order.Number)
	case models.NotificationCancelled:
		return "Order cancelled", fmt.Sprintf("Order %s has been cancelled.", order.Number)
	case models.NotificationPaymentSuccess:
		return "Payment received", fmt.Sprintf("Payment for order %s was successful.", order.Number)
	case models.NotificationPaymentFailed:
		return "Payment failed", fmt.Sprintf("Payment for order %s failed. Please retry.", order.Number)
	case models.NotificationRefundRequested:
		return "Refund requested", fmt.Sprintf("A refund for order %s was requested.", order.Number)
	case models.NotificationRefundProcessed:
		return "Refund processed", fmt.Sprintf("The refund for order %s is being processed.", order.Number)
	case models.NotificationRefundIssued:
		return "Refund issued", fmt.Sprintf("The refund for order %s has been issued.", order.Number)
	default:
		return "Order update", fmt.Sprintf("Order %s was updated.", order.Number)
	}
}

func newOrderNumber() string {
	id := uuid.NewString()
	return "SV-" + strings.ToUpper(id[:8])
}
