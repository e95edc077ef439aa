package realtime

import "strings"

// Fixed rooms. Every authenticated connection receives its own user-scoped
// notification feed; admin connections are additionally placed in RoomAdmin
// on connect (no explicit join exists for it).
const (
	RoomNotifications = "notifications"
	RoomAdmin         = "admin"
)

// Room name prefixes for per-entity broadcast groups.
const (
	orderRoomPrefix   = "order:"
	paymentRoomPrefix = "payment:"
)

// Push event names delivered to subscribers.
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

// Control actions accepted from clients.
const (
	ActionJoinOrderRoom    = "join-order-room"
	ActionLeaveOrderRoom   = "leave-order-room"
	ActionJoinPaymentRoom  = "join-payment-room"
	ActionLeavePaymentRoom = "leave-payment-room"
	ActionPing             = "ping"
)

// OrderRoom returns the broadcast room for a single order.
func OrderRoom(orderID string) string {
	return orderRoomPrefix + strings.TrimSpace(orderID)
}

// PaymentRoom returns the broadcast room for a single payment flow.
func PaymentRoom(paymentID string) string {
	return paymentRoomPrefix + strings.TrimSpace(paymentID)
}

// joinableRoom reports whether clients may join the room themselves.
// The admin room is assigned server-side only.
func joinableRoom(room string) bool {
	return strings.HasPrefix(room, orderRoomPrefix) || strings.HasPrefix(room, paymentRoomPrefix)
}
