package models

import (
	"time"

	"gorm.io/datatypes"
)

// Order statuses, in kitchen-workflow order. Cancelled is reachable from
// any non-terminal status.
const (
	OrderStatusPlaced    = "placed"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order tracks a customer order through the kitchen workflow. Item lines
// and pricing are captured as an opaque snapshot; order creation itself is
// owned by the storefront API.
type Order struct {
	BaseModel

	UserID      string         `gorm:"type:uuid;index;not null" json:"user_id"`
	Number      string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"number"`
	Status      string         `gorm:"type:varchar(32);default:'placed';index" json:"status"`
	TotalCents  int64          `gorm:"not null" json:"total_cents"`
	Fulfilment  string         `gorm:"type:varchar(16);default:'delivery'" json:"fulfilment"` // delivery | pickup
	Items       datatypes.JSON `json:"items"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
}

// Payment statuses recorded against an order.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Payment records the outcome of a charge attempt for an order. The charge
// itself happens at the payment provider; only the result is mirrored here.
type Payment struct {
	BaseModel

	OrderID     string `gorm:"type:uuid;index;not null" json:"order_id"`
	UserID      string `gorm:"type:uuid;index;not null" json:"user_id"`
	Status      string `gorm:"type:varchar(32);default:'pending';index" json:"status"`
	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Reference   string `gorm:"type:varchar(128)" json:"reference"`
}
