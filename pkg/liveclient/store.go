package liveclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/savorahq/savora/pkg/logger"
)

// Store mirrors the user's notification feed: a newest-first list plus the
// unread counter, mutated by pushes from the live channel and by explicit
// user actions. Mutations are optimistic; server failures are surfaced via
// the returned error and LastError, not rolled back.
type Store struct {
	rest     *RESTClient
	dedup    *Deduper
	notifier Notifier
	fallback *CountFallback
	log      *zap.Logger

	mu      sync.Mutex
	items   []Notification
	unread  int64
	deleted map[string]struct{}
	lastErr error
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithNotifier injects the toast/sound sink.
func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithCountFallback injects the persisted unread-count fallback.
func WithCountFallback(f *CountFallback) StoreOption {
	return func(s *Store) {
		s.fallback = f
	}
}

// NewStore constructs a Store. The REST client may be nil, in which case
// server calls are skipped and the store operates purely on pushed state.
func NewStore(rest *RESTClient, dedup *Deduper, opts ...StoreOption) (*Store, error) {
	if dedup == nil {
		return nil, errors.New("liveclient: deduper is required")
	}

	s := &Store{
		rest:     rest,
		dedup:    dedup,
		notifier: NoopNotifier{},
		log:      logger.WithModule("liveclient"),
		deleted:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FetchOptions control a page fetch.
type FetchOptions struct {
	Page     int
	PageSize int
	Type     string
	Unread   *bool
	// Replace forces the fetched page to replace the current list even
	// when Page > 1. Page 1 always replaces.
	Replace bool
}

// FetchPage loads one page from the server. Page 1 (or Replace) swaps the
// list wholesale in server order; later pages append. The unread counter is
// never touched by fetching.
func (s *Store) FetchPage(ctx context.Context, opts FetchOptions) ([]Notification, bool, error) {
	if s.rest == nil {
		return nil, false, errors.New("liveclient: no rest client configured")
	}

	records, hasMore, err := s.rest.List(ctx, ListOptions{
		Page:     opts.Page,
		PageSize: opts.PageSize,
		Type:     opts.Type,
		Unread:   opts.Unread,
	})
	if err != nil {
		s.setError(err)
		return nil, false, err
	}

	s.mu.Lock()
	if opts.Page <= 1 || opts.Replace {
		s.items = append([]Notification(nil), records...)
	} else {
		existing := make(map[string]struct{}, len(s.items))
		for _, item := range s.items {
			existing[item.ID] = struct{}{}
		}
		for _, record := range records {
			if _, dup := existing[record.ID]; dup {
				continue
			}
			if _, gone := s.deleted[record.ID]; gone {
				continue
			}
			s.items = append(s.items, record)
		}
	}
	s.mu.Unlock()

	return records, hasMore, nil
}

// RefreshUnreadCount asks the server for the authoritative unread count.
// When the request fails the persisted fallback value is returned alongside
// the error so callers can still render a badge.
func (s *Store) RefreshUnreadCount(ctx context.Context) (int64, error) {
	if s.rest == nil {
		return s.UnreadCount(), nil
	}

	count, err := s.rest.UnreadCount(ctx)
	if err != nil {
		s.setError(err)
		fallback := s.fallback.Load()
		s.mu.Lock()
		s.unread = fallback
		s.mu.Unlock()
		return fallback, err
	}

	s.mu.Lock()
	s.unread = count
	s.mu.Unlock()
	s.fallback.Store(count)
	return count, nil
}

// ApplyPush applies a pushed notification. The de-duplication check-and-mark
// happens synchronously before any other work, so a redelivered id within
// the window produces no second insertion, counter increment, toast, or
// sound. Returns whether the push was applied.
func (s *Store) ApplyPush(n Notification) bool {
	if n.ID == "" {
		return false
	}
	if !s.dedup.CheckAndMark(n.ID) {
		return false
	}

	s.mu.Lock()
	if _, gone := s.deleted[n.ID]; gone {
		s.mu.Unlock()
		return false
	}
	s.items = append([]Notification{n}, s.items...)
	if !n.IsRead {
		s.unread++
	}
	unread := s.unread
	s.mu.Unlock()

	s.fallback.Store(unread)

	s.notifier.PlaySound(SoundPattern(n.Priority))
	if !ToastSuppressed(n.Type) {
		s.notifier.Toast(n)
	}
	return true
}

// MarkRead optimistically flips the given notifications to read, decrements
// the counter by the number that were actually unread, then informs the
// server. Local state is kept on server failure.
func (s *Store) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.markReadLocal(ids)

	if s.rest == nil {
		return nil
	}
	if err := s.rest.MarkRead(ctx, ids); err != nil {
		s.setError(err)
		s.log.Warn("mark read not acknowledged", zap.Error(err))
		return err
	}
	return nil
}

// MarkAllRead optimistically marks everything read and zeroes the counter,
// then informs the server.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.markAllReadLocal()

	if s.rest == nil {
		return nil
	}
	if err := s.rest.MarkAllRead(ctx); err != nil {
		s.setError(err)
		s.log.Warn("mark all read not acknowledged", zap.Error(err))
		return err
	}
	return nil
}

// Delete removes the notification locally and on the server. Repeat calls
// for the same id are successful no-ops, and a server 404 counts as success.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	s.mu.Lock()
	if _, gone := s.deleted[id]; gone {
		s.mu.Unlock()
		return nil
	}
	s.deleted[id] = struct{}{}
	s.removeLocked(id)
	unread := s.unread
	s.mu.Unlock()

	s.fallback.Store(unread)

	if s.rest == nil {
		return nil
	}
	err := s.rest.Delete(ctx, id)
	if err == nil || errors.Is(err, ErrAlreadyDeleted) {
		return nil
	}
	s.setError(err)
	s.log.Warn("delete not acknowledged", zap.String("id", id), zap.Error(err))
	return err
}

// Notifications returns a copy of the current list, newest first.
func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.items...)
}

// UnreadCount returns the current unread counter.
func (s *Store) UnreadCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// LastError returns the most recent server-call failure, or nil.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Attach registers the store's live listeners on the client. The deduper
// allows exactly one attachment per session; a second call fails until the
// returned detach function runs.
func (s *Store) Attach(client *Client) (func(), error) {
	if client == nil {
		return nil, errors.New("liveclient: client is required")
	}
	if !s.dedup.TryAttachListener() {
		return nil, errors.New("liveclient: live listener already attached")
	}

	createdID := client.On(EventNotificationCreated, func(msg Message) {
		payload := decodeEventPayload(msg.Data)
		if payload == nil || payload.Notification == nil {
			return
		}
		s.ApplyPush(*payload.Notification)
	})

	updatedID := client.On(EventNotificationUpdated, func(msg Message) {
		payload := decodeEventPayload(msg.Data)
		if payload == nil {
			return
		}
		s.applyRemoteUpdate(payload)
	})

	countID := client.On(EventUnreadCountUpdated, func(msg Message) {
		count, ok := decodeUnreadCount(msg.Data)
		if !ok {
			return
		}
		s.mu.Lock()
		s.unread = count
		s.mu.Unlock()
		s.fallback.Store(count)
	})

	detach := func() {
		client.Off(EventNotificationCreated, createdID)
		client.Off(EventNotificationUpdated, updatedID)
		client.Off(EventUnreadCountUpdated, countID)
		s.dedup.DetachListener()
	}
	return detach, nil
}

// applyRemoteUpdate reconciles a notification-updated push from another
// session or device. No server call is made; the event is already the
// server's truth.
func (s *Store) applyRemoteUpdate(payload *EventPayload) {
	switch payload.Update {
	case UpdateMarkedRead:
		s.markReadLocal(payload.NotificationIDs)
	case UpdateAllMarkedRead:
		s.markAllReadLocal()
	case UpdateDeleted:
		if payload.NotificationID == "" {
			return
		}
		s.mu.Lock()
		if _, gone := s.deleted[payload.NotificationID]; !gone {
			s.deleted[payload.NotificationID] = struct{}{}
			s.removeLocked(payload.NotificationID)
		}
		unread := s.unread
		s.mu.Unlock()
		s.fallback.Store(unread)
	}
}

func (s *Store) markReadLocal(ids []string) {
	if len(ids) == 0 {
		return
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	now := time.Now().UTC()

	s.mu.Lock()
	for i := range s.items {
		if _, ok := wanted[s.items[i].ID]; !ok {
			continue
		}
		if s.items[i].IsRead {
			continue
		}
		s.items[i].IsRead = true
		readAt := now
		s.items[i].ReadAt = &readAt
		if s.unread > 0 {
			s.unread--
		}
	}
	unread := s.unread
	s.mu.Unlock()

	s.fallback.Store(unread)
}

func (s *Store) markAllReadLocal() {
	now := time.Now().UTC()

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].IsRead {
			continue
		}
		s.items[i].IsRead = true
		readAt := now
		s.items[i].ReadAt = &readAt
	}
	s.unread = 0
	s.mu.Unlock()

	s.fallback.Store(0)
}

// removeLocked drops the record from the list and decrements the counter if
// the record was unread. Caller holds s.mu.
func (s *Store) removeLocked(id string) {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if !s.items[i].IsRead && s.unread > 0 {
			s.unread--
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		return
	}
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func decodeEventPayload(data any) *EventPayload {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var payload EventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return &payload
}

func decodeUnreadCount(data any) (int64, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, false
	}
	var payload struct {
		UnreadCount int64 `json:"unread_count"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, false
	}
	return payload.UnreadCount, true
}
