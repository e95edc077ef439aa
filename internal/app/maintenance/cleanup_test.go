package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/savorahq/savora/internal/database/testutil"
	"github.com/savorahq/savora/internal/models"
)

func TestCleanupNotificationsKeepsUnread(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	old := time.Now().AddDate(0, 0, -40)
	rows := []models.Notification{
		{UserID: "u1", Type: models.NotificationOrderPlaced, Title: "old read", IsRead: true},
		{UserID: "u1", Type: models.NotificationOrderPlaced, Title: "old unread", IsRead: false},
		{UserID: "u1", Type: models.NotificationOrderPlaced, Title: "fresh read", IsRead: true},
	}
	require.NoError(t, db.Create(&rows).Error)

	// Backdate the first two rows past the cutoff.
	for _, id := range []string{rows[0].ID, rows[1].ID} {
		require.NoError(t, db.Model(&models.Notification{}).
			Where("id = ?", id).
			Update("created_at", old).Error)
	}

	removed, err := CleanupNotifications(context.Background(), db, time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining []models.Notification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	for _, row := range remaining {
		require.NotEqual(t, "old read", row.Title)
	}
}

func TestCleanupOrdersRemovesFinishedOrdersAndPayments(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	old := time.Now().AddDate(0, 0, -120)
	delivered := models.Order{UserID: "u1", Number: "SV-OLD00001", Status: models.OrderStatusDelivered, TotalCents: 100}
	active := models.Order{UserID: "u1", Number: "SV-ACTIVE01", Status: models.OrderStatusPreparing, TotalCents: 200}
	require.NoError(t, db.Create(&delivered).Error)
	require.NoError(t, db.Create(&active).Error)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", delivered.ID).
		Update("created_at", old).Error)

	payment := models.Payment{OrderID: delivered.ID, UserID: "u1", AmountCents: 100, Status: models.PaymentStatusSucceeded}
	require.NoError(t, db.Create(&payment).Error)

	removed, err := CleanupOrders(context.Background(), db, time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var orders []models.Order
	require.NoError(t, db.Find(&orders).Error)
	require.Len(t, orders, 1)
	require.Equal(t, active.ID, orders[0].ID)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	require.EqualValues(t, 0, payments)
}

func TestCleanupCacheEntriesRespectsZeroExpiry(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	entries := []models.CacheEntry{
		{Key: "expired", Value: []byte("1"), ExpiresAt: time.Now().Add(-time.Hour)},
		{Key: "live", Value: []byte("2"), ExpiresAt: time.Now().Add(time.Hour)},
		{Key: "forever", Value: []byte("3")},
	}
	require.NoError(t, db.Create(&entries).Error)

	removed, err := CleanupCacheEntries(context.Background(), db, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	var remaining []models.CacheEntry
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	notification := models.Notification{UserID: "u1", Type: models.NotificationOrderPlaced, Title: "old", IsRead: true}
	require.NoError(t, db.Create(&notification).Error)
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", notification.ID).
		Update("created_at", time.Now().AddDate(0, 0, -10)).Error)

	cleaner := NewCleaner(db, WithNotificationRetentionDays(7))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cleaner := NewCleaner(db, WithRetentionSchedule("@every 1h"))
	require.NoError(t, cleaner.Start())

	ctx := cleaner.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
