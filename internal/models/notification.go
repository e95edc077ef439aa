package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types pushed over the live channel.
const (
	NotificationOrderPlaced     = "order-placed"
	NotificationKitchenStarted  = "kitchen-started"
	NotificationReadyPickup     = "ready-pickup"
	NotificationReadyDelivery   = "ready-delivery"
	NotificationDelivered       = "delivered"
	NotificationCancelled       = "cancelled"
	NotificationPaymentSuccess  = "payment-success"
	NotificationPaymentFailed   = "payment-failed"
	NotificationRefundRequested = "refund-requested"
	NotificationRefundProcessed = "refund-processed"
	NotificationRefundIssued    = "refund-issued"
)

// Notification priorities.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Notification represents an in-app notification for a user.
type Notification struct {
	BaseModel

	UserID   string `gorm:"type:uuid;index;not null" json:"user_id"`
	Type     string `gorm:"type:varchar(64);not null;index" json:"type"`
	Title    string `gorm:"type:varchar(255);not null" json:"title"`
	Message  string `gorm:"type:text" json:"message"`
	Priority string `gorm:"type:varchar(16);default:'medium'" json:"priority"`

	// Payload carries opaque context for the UI: order number, order id,
	// status at the time of the event.
	Payload datatypes.JSON `json:"payload"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

// ValidNotificationType reports whether t is one of the fixed enumeration.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationOrderPlaced, NotificationKitchenStarted,
		NotificationReadyPickup, NotificationReadyDelivery,
		NotificationDelivered, NotificationCancelled,
		NotificationPaymentSuccess, NotificationPaymentFailed,
		NotificationRefundRequested, NotificationRefundProcessed,
		NotificationRefundIssued:
		return true
	}
	return false
}
