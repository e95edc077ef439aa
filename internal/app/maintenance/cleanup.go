package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/models"
	"github.com/savorahq/savora/pkg/logger"
)

const (
	defaultNotificationRetentionDays = 30
	defaultOrderRetentionDays        = 90
	defaultRetentionSpec             = "@daily"
	defaultCacheSpec                 = "@hourly"
)

// Cleaner coordinates background maintenance tasks: purging read notifications
// past their retention window, removing finished orders, and expiring stale
// cache entries.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	notificationDays int
	orderDays        int

	retentionSchedule string
	cacheSchedule     string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithNotificationRetentionDays adjusts how long read notifications are kept.
func WithNotificationRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.notificationDays = days
		}
	}
}

// WithOrderRetentionDays adjusts how long delivered and cancelled orders are kept.
func WithOrderRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.orderDays = days
		}
	}
}

// WithRetentionSchedule overrides the cron specification for retention enforcement.
func WithRetentionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache entry expiry.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                db,
		now:               time.Now,
		notificationDays:  defaultNotificationRetentionDays,
		orderDays:         defaultOrderRetentionDays,
		retentionSchedule: defaultRetentionSpec,
		cacheSchedule:     defaultCacheSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.retentionSchedule, func() {
		ctx := context.Background()
		if _, err := CleanupNotifications(ctx, c.db, c.now().AddDate(0, 0, -c.notificationDays)); err != nil {
			c.log.Warn("notification cleanup failed", zap.Error(err))
		}
		if _, err := CleanupOrders(ctx, c.db, c.now().AddDate(0, 0, -c.orderDays)); err != nil {
			c.log.Warn("order cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
		ctx := context.Background()
		if _, err := CleanupCacheEntries(ctx, c.db, c.now()); err != nil {
			c.log.Warn("cache cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Used in tests and during
// graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.db == nil {
		return nil
	}

	var errs error

	if _, err := CleanupNotifications(ctx, c.db, c.now().AddDate(0, 0, -c.notificationDays)); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := CleanupOrders(ctx, c.db, c.now().AddDate(0, 0, -c.orderDays)); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := CleanupCacheEntries(ctx, c.db, c.now()); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// CleanupNotifications removes read notifications created before the cutoff.
// Unread notifications are never purged.
func CleanupNotifications(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup notifications: db is required")
	}

	result := db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CleanupOrders removes delivered and cancelled orders older than the cutoff,
// together with their payment records.
func CleanupOrders(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup orders: db is required")
	}

	var removed int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&models.Order{}).
			Select("id").
			Where("status IN ? AND created_at < ?", []string{models.OrderStatusDelivered, models.OrderStatusCancelled}, cutoff)

		if result := tx.Where("order_id IN (?)", stale).Delete(&models.Payment{}); result.Error != nil {
			return fmt.Errorf("payments: %w", result.Error)
		}

		result := tx.
			Where("status IN ? AND created_at < ?", []string{models.OrderStatusDelivered, models.OrderStatusCancelled}, cutoff).
			Delete(&models.Order{})
		if result.Error != nil {
			return fmt.Errorf("orders: %w", result.Error)
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup orders: %w", err)
	}
	return removed, nil
}

// CleanupCacheEntries removes expired rows from the database cache fallback.
// Entries with a zero expiry never expire.
func CleanupCacheEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup cache entries: db is required")
	}

	result := db.WithContext(ctx).
		Where("expires_at > ? AND expires_at < ?", time.Time{}, now).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup cache entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}
