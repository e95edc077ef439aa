package liveclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []Notification
	sounds []string
}

func (n *recordingNotifier) Toast(record Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, record)
}

func (n *recordingNotifier) PlaySound(pattern string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sounds = append(n.sounds, pattern)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.toasts), len(n.sounds)
}

func newTestStore(t *testing.T, rest *RESTClient, opts ...StoreOption) *Store {
	t.Helper()
	store, err := NewStore(rest, NewDeduper(), opts...)
	require.NoError(t, err)
	return store
}

func TestApplyPushDeduplicates(t *testing.T) {
	notifier := &recordingNotifier{}
	store := newTestStore(t, nil, WithNotifier(notifier))

	record := Notification{ID: "n1", Type: TypeOrderPlaced, Priority: PriorityHigh}

	require.True(t, store.ApplyPush(record))
	require.False(t, store.ApplyPush(record))

	items := store.Notifications()
	require.Len(t, items, 1)
	require.Equal(t, "n1", items[0].ID)
	require.EqualValues(t, 1, store.UnreadCount())

	toasts, sounds := notifier.counts()
	require.Equal(t, 1, toasts)
	require.Equal(t, 1, sounds)
	require.Equal(t, SoundSuccess, notifier.sounds[0])
}

func TestApplyPushPrependsNewestFirst(t *testing.T) {
	store := newTestStore(t, nil)

	require.True(t, store.ApplyPush(Notification{ID: "n1", Type: TypeOrderPlaced}))
	require.True(t, store.ApplyPush(Notification{ID: "n2", Type: TypeKitchenStarted}))

	items := store.Notifications()
	require.Equal(t, "n2", items[0].ID)
	require.Equal(t, "n1", items[1].ID)
	require.EqualValues(t, 2, store.UnreadCount())
}

func TestApplyPushSuppressesPaymentSuccessToast(t *testing.T) {
	notifier := &recordingNotifier{}
	store := newTestStore(t, nil, WithNotifier(notifier))

	require.True(t, store.ApplyPush(Notification{
		ID: "p1", Type: TypePaymentSuccess, Priority: PriorityHigh,
	}))

	toasts, sounds := notifier.counts()
	require.Equal(t, 0, toasts)
	require.Equal(t, 1, sounds)
}

func TestMarkReadDecrementsOnlyUnread(t *testing.T) {
	store := newTestStore(t, nil)

	readAt := time.Now().UTC()
	require.True(t, store.ApplyPush(Notification{ID: "a", Type: TypeOrderPlaced}))
	require.True(t, store.ApplyPush(Notification{ID: "b", Type: TypeDelivered, IsRead: true, ReadAt: &readAt}))
	require.EqualValues(t, 1, store.UnreadCount())

	require.NoError(t, store.MarkRead(context.Background(), []string{"a", "b"}))
	require.EqualValues(t, 0, store.UnreadCount())

	for _, item := range store.Notifications() {
		require.True(t, item.IsRead)
		require.NotNil(t, item.ReadAt)
	}

	// Marking again must not drive the counter negative.
	require.NoError(t, store.MarkRead(context.Background(), []string{"a", "b"}))
	require.EqualValues(t, 0, store.UnreadCount())
}

func TestMarkAllRead(t *testing.T) {
	store := newTestStore(t, nil)

	require.True(t, store.ApplyPush(Notification{ID: "a", Type: TypeOrderPlaced}))
	require.True(t, store.ApplyPush(Notification{ID: "b", Type: TypeCancelled}))
	require.EqualValues(t, 2, store.UnreadCount())

	require.NoError(t, store.MarkAllRead(context.Background()))
	require.EqualValues(t, 0, store.UnreadCount())
	for _, item := range store.Notifications() {
		require.True(t, item.IsRead)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t, nil)

	require.True(t, store.ApplyPush(Notification{ID: "a", Type: TypeOrderPlaced}))
	require.EqualValues(t, 1, store.UnreadCount())

	require.NoError(t, store.Delete(context.Background(), "a"))
	require.EqualValues(t, 0, store.UnreadCount())
	require.Empty(t, store.Notifications())

	// Retried delete is a successful no-op and never double-decrements.
	require.NoError(t, store.Delete(context.Background(), "a"))
	require.EqualValues(t, 0, store.UnreadCount())

	// A push redelivered after deletion must not resurrect the record.
	d := NewDeduper()
	store2, err := NewStore(nil, d)
	require.NoError(t, err)
	require.True(t, store2.ApplyPush(Notification{ID: "x", Type: TypeOrderPlaced}))
	require.NoError(t, store2.Delete(context.Background(), "x"))
	d.mu.Lock()
	delete(d.seen, "x") // simulate eviction
	d.mu.Unlock()
	require.False(t, store2.ApplyPush(Notification{ID: "x", Type: TypeOrderPlaced}))
	require.Empty(t, store2.Notifications())
}

func TestDeleteTreatsServer404AsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   map[string]any{"code": "NOT_FOUND", "message": "Resource not found"},
		})
	}))
	defer server.Close()

	rest, err := NewRESTClient(server.URL+"/api", "token")
	require.NoError(t, err)

	store := newTestStore(t, rest)
	require.True(t, store.ApplyPush(Notification{ID: "gone", Type: TypeOrderPlaced}))

	require.NoError(t, store.Delete(context.Background(), "gone"))
	require.EqualValues(t, 0, store.UnreadCount())
}

func TestFetchPageReplaceAndAppend(t *testing.T) {
	pageOne := make([]Notification, 0, 2)
	for _, id := range []string{"s1", "s2"} {
		pageOne = append(pageOne, Notification{ID: id, Type: TypeOrderPlaced, CreatedAt: time.Now()})
	}
	pageTwo := []Notification{{ID: "s3", Type: TypeDelivered}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		records := pageOne
		hasMore := true
		if page == 2 {
			records = pageTwo
			hasMore = false
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    records,
			"meta":    map[string]any{"page": page, "per_page": 20, "has_more": hasMore},
		})
	}))
	defer server.Close()

	rest, err := NewRESTClient(server.URL+"/api", "token")
	require.NoError(t, err)

	store := newTestStore(t, rest)

	// Pre-existing content is discarded by a page-1 fetch.
	require.True(t, store.ApplyPush(Notification{ID: "stale", Type: TypeCancelled}))
	require.EqualValues(t, 1, store.UnreadCount())

	records, hasMore, err := store.FetchPage(context.Background(), FetchOptions{Page: 1, PageSize: 20})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.True(t, hasMore)

	items := store.Notifications()
	require.Len(t, items, 2)
	require.Equal(t, "s1", items[0].ID)
	require.Equal(t, "s2", items[1].ID)

	// Fetching never mutates the counter.
	require.EqualValues(t, 1, store.UnreadCount())

	_, hasMore, err = store.FetchPage(context.Background(), FetchOptions{Page: 2, PageSize: 20})
	require.NoError(t, err)
	require.False(t, hasMore)
	require.Len(t, store.Notifications(), 3)
}

func TestRefreshUnreadCountFallsBack(t *testing.T) {
	fallback, err := NewCountFallback(filepath.Join(t.TempDir(), "unread_count"))
	require.NoError(t, err)
	fallback.Store(7)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // force connection failures

	rest, err := NewRESTClient(server.URL+"/api", "token")
	require.NoError(t, err)

	store, err := NewStore(rest, NewDeduper(), WithCountFallback(fallback))
	require.NoError(t, err)

	count, err := store.RefreshUnreadCount(context.Background())
	require.Error(t, err)
	require.EqualValues(t, 7, count)
	require.EqualValues(t, 7, store.UnreadCount())
	require.Error(t, store.LastError())
}

func TestRefreshUnreadCountFromServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"unread_count": 3},
		})
	}))
	defer server.Close()

	fallback, err := NewCountFallback(filepath.Join(t.TempDir(), "unread_count"))
	require.NoError(t, err)

	rest, err := NewRESTClient(server.URL+"/api", "token")
	require.NoError(t, err)

	store, err := NewStore(rest, NewDeduper(), WithCountFallback(fallback))
	require.NoError(t, err)

	count, err := store.RefreshUnreadCount(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
	require.EqualValues(t, 3, fallback.Load())
}
