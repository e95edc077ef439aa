package liveclient

import (
	"strings"
	"sync"
)

// RoomSubscription tracks membership in one server-side broadcast room for
// the lifetime of a view. Exactly one join frame is sent on activation and
// exactly one leave frame on release, no matter how often either is called.
type RoomSubscription struct {
	client      *Client
	joinAction  string
	leaveAction string
	scopeID     string

	joinOnce  sync.Once
	leaveOnce sync.Once
	mu        sync.Mutex
	active    bool
}

// SubscribeOrderRoom returns a subscription for a single order's updates.
// The subscription is inert until Activate.
func (c *Client) SubscribeOrderRoom(orderID string) *RoomSubscription {
	return &RoomSubscription{
		client:      c,
		joinAction:  ActionJoinOrderRoom,
		leaveAction: ActionLeaveOrderRoom,
		scopeID:     strings.TrimSpace(orderID),
	}
}

// SubscribePaymentRoom returns a subscription for a single payment flow.
func (c *Client) SubscribePaymentRoom(paymentID string) *RoomSubscription {
	return &RoomSubscription{
		client:      c,
		joinAction:  ActionJoinPaymentRoom,
		leaveAction: ActionLeavePaymentRoom,
		scopeID:     strings.TrimSpace(paymentID),
	}
}

// Activate joins the room. Repeat calls are no-ops. The join frame is
// fire-and-forget; if the connection is down it is queued and flushed once
// the connection is live.
func (s *RoomSubscription) Activate() {
	if s == nil || s.scopeID == "" {
		return
	}

	s.joinOnce.Do(func() {
		s.mu.Lock()
		s.active = true
		s.mu.Unlock()
		s.client.Emit(s.joinAction, s.scopeID)
	})
}

// Release leaves the room. Repeat calls and calls before Activate are no-ops.
func (s *RoomSubscription) Release() {
	if s == nil || s.scopeID == "" {
		return
	}

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return
	}

	s.leaveOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		s.client.Emit(s.leaveAction, s.scopeID)
	})
}

// Active reports whether the subscription has been activated and not released.
func (s *RoomSubscription) Active() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
