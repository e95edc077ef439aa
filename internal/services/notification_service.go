package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/cache"
	"github.com/savorahq/savora/internal/models"
	"github.com/savorahq/savora/internal/realtime"
	apperrors "github.com/savorahq/savora/pkg/errors"
	"github.com/savorahq/savora/pkg/metrics"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	unreadCountTTL   = 5 * time.Minute
	unreadCountKeyFn = "notifications:unread:"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Priority  string         `json:"priority"`
	Payload   map[string]any `json:"payload,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID   string
	Type     string
	Title    string
	Message  string
	Priority string
	Payload  map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID   string
	Page     int
	PageSize int
	Type     string
	Unread   *bool
}

// NotificationEventPayload is the data carried by notification push events.
type NotificationEventPayload struct {
	Notification    *NotificationDTO `json:"notification,omitempty"`
	NotificationID  string           `json:"notification_id,omitempty"`
	NotificationIDs []string         `json:"notification_ids,omitempty"`
	Update          string           `json:"update,omitempty"`
}

// NotificationService manages user in-app notifications and their live delivery.
type NotificationService struct {
	db    *gorm.DB
	hub   *realtime.Hub
	cache cache.Store
}

// NewNotificationService constructs a NotificationService. The hub and cache
// may be nil; live delivery and count caching are then skipped.
func NewNotificationService(db *gorm.DB, hub *realtime.Hub, store cache.Store) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub, cache: store}, nil
}

// ListForUser returns one page of notifications ordered newest first, plus a
// flag indicating whether further pages exist.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, bool, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, false, errors.New("notification service: user id is required")
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	size := input.PageSize
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if t := strings.TrimSpace(input.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if input.Unread != nil {
		query = query.Where("is_read = ?", !*input.Unread)
	}

	// Fetch one extra row to detect whether another page exists.
	var rows []models.Notification
	if err := query.Limit(size + 1).Offset((page - 1) * size).Find(&rows).Error; err != nil {
		return nil, false, fmt.Errorf("notification service: list notifications: %w", err)
	}

	hasMore := len(rows) > size
	if hasMore {
		rows = rows[:size]
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items, hasMore, nil
}

// UnreadCount returns the number of unread notifications for the user. The
// result is cached briefly; mutations invalidate the cached value.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("notification service: user id is required")
	}

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, unreadCountKeyFn+userID); err == nil && ok {
			if count, convErr := strconv.ParseInt(string(raw), 10, 64); convErr == nil {
				return count, nil
			}
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, unreadCountKeyFn+userID, []byte(strconv.FormatInt(count, 10)), unreadCountTTL)
	}
	return count, nil
}

// Create persists a notification and pushes it to the owner's connections.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if !models.ValidNotificationType(notificationType) {
		return nil, fmt.Errorf("notification service: unknown type %q", input.Type)
	}

	notification := models.Notification{
		UserID:   userID,
		Type:     notificationType,
		Title:    strings.TrimSpace(input.Title),
		Message:  strings.TrimSpace(input.Message),
		Priority: defaultIfEmpty(strings.TrimSpace(input.Priority), models.PriorityMedium),
	}

	if input.Payload != nil {
		data, err := json.Marshal(input.Payload)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal payload: %w", err)
		}
		notification.Payload = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	metrics.NotificationsCreated.WithLabelValues(notificationType).Inc()
	s.invalidateCount(ctx, userID)

	dto := mapNotification(notification)
	s.broadcast(userID, realtime.EventNotificationCreated, &NotificationEventPayload{
		Notification: &dto,
	})
	s.pushUnreadCount(ctx, userID)

	return &dto, nil
}

// MarkRead flips the read flag for the given notification ids and returns how
// many records actually transitioned from unread to read.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("notification service: user id is required")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark read: %w", result.Error)
	}

	s.invalidateCount(ctx, userID)
	s.broadcast(userID, realtime.EventNotificationUpdated, &NotificationEventPayload{
		Update:          realtime.UpdateMarkedRead,
		NotificationIDs: ids,
	})
	s.pushUnreadCount(ctx, userID)

	return result.RowsAffected, nil
}

// MarkAllRead marks every unread notification for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("notification service: user id is required")
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.invalidateCount(ctx, userID)
	s.broadcast(userID, realtime.EventNotificationUpdated, &NotificationEventPayload{
		Update: realtime.UpdateAllMarkedRead,
	})
	s.pushUnreadCount(ctx, userID)
	return nil
}

// Delete removes a notification owned by the supplied user. A repeated delete
// for the same id returns ErrNotFound; clients treat that as success.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	s.invalidateCount(ctx, userID)
	s.broadcast(userID, realtime.EventNotificationUpdated, &NotificationEventPayload{
		Update:         realtime.UpdateDeleted,
		NotificationID: notificationID,
	})
	s.pushUnreadCount(ctx, userID)
	return nil
}

func (s *NotificationService) broadcast(userID, event string, payload *NotificationEventPayload) {
	if s.hub == nil {
		return
	}
	message := realtime.Message{Event: event}
	if payload != nil {
		message.Data = payload
	}
	s.hub.BroadcastToUser(realtime.RoomNotifications, userID, message)
}

func (s *NotificationService) pushUnreadCount(ctx context.Context, userID string) {
	if s.hub == nil {
		return
	}
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return
	}
	s.hub.BroadcastToUser(realtime.RoomNotifications, userID, realtime.Message{
		Event: realtime.EventUnreadCountUpdated,
		Data:  map[string]any{"unread_count": count},
	})
}

func (s *NotificationService) invalidateCount(ctx context.Context, userID string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, unreadCountKeyFn+userID)
	}
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Priority:  defaultIfEmpty(row.Priority, models.PriorityMedium),
		Payload:   decodeJSON(row.Payload),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		ReadAt:    row.ReadAt,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func defaultIfEmpty(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
