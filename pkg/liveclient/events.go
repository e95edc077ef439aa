// Package liveclient is an embeddable Go client for the Savora realtime
// channel: it maintains the authenticated WebSocket connection, manages
// room subscriptions, and mirrors the user's notification feed locally
// with de-duplication of redelivered pushes.
package liveclient

import "time"

// Push events delivered by the server.
const (
	EventNotificationCreated = "notification-created"
	EventNotificationUpdated = "notification-updated"
	EventUnreadCountUpdated  = "unread-count-updated"

	EventNewOrder           = "new-order"
	EventOrderStatusUpdated = "order-status-updated"
	EventPaymentSuccess     = "payment-success"
	EventPaymentFailed      = "payment-failed"
	EventDishUpdated        = "dish-updated"
	EventMenuUpdated        = "menu-updated"
)

// Sub-types carried inside notification-updated events.
const (
	UpdateMarkedRead    = "notifications-marked-read"
	UpdateAllMarkedRead = "all-notifications-marked-read"
	UpdateDeleted       = "notification-deleted"
)

// Control actions emitted to the server. The admin room has no join action;
// the server assigns it on connect based on the token's role.
const (
	ActionJoinOrderRoom    = "join-order-room"
	ActionLeaveOrderRoom   = "leave-order-room"
	ActionJoinPaymentRoom  = "join-payment-room"
	ActionLeavePaymentRoom = "leave-payment-room"
	ActionPing             = "ping"
)

// Notification types.
const (
	TypeOrderPlaced     = "order-placed"
	TypeKitchenStarted  = "kitchen-started"
	TypeReadyPickup     = "ready-pickup"
	TypeReadyDelivery   = "ready-delivery"
	TypeDelivered       = "delivered"
	TypeCancelled       = "cancelled"
	TypePaymentSuccess  = "payment-success"
	TypePaymentFailed   = "payment-failed"
	TypeRefundRequested = "refund-requested"
	TypeRefundProcessed = "refund-processed"
	TypeRefundIssued    = "refund-issued"
)

// Notification priorities.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Message is the frame delivered to event handlers.
type Message struct {
	Room  string `json:"room,omitempty"`
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Notification mirrors the server's notification payload.
type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Priority  string         `json:"priority"`
	Payload   map[string]any `json:"payload,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// EventPayload is the data carried by notification push events.
type EventPayload struct {
	Notification    *Notification `json:"notification,omitempty"`
	NotificationID  string        `json:"notification_id,omitempty"`
	NotificationIDs []string      `json:"notification_ids,omitempty"`
	Update          string        `json:"update,omitempty"`
}
