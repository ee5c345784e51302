package datastore

import (
	"context"
	"time"

	"github.com/mhews/mhews/internal/errors"
)

// SaveNotification stores a dispatched notification. A zero SentAt is set to now.
func (ds *DataStore) SaveNotification(ctx context.Context, n *NotificationRecord) error {
	if n == nil {
		return validationError("notification is nil", "notification", nil)
	}
	if n.HazardType == "" {
		return validationError("hazard type is required", "hazard_type", n.HazardType)
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	n.SentAt = n.SentAt.UTC()

	if err := ds.DB.WithContext(ctx).Create(n).Error; err != nil {
		return dbError(err, "save_notification", errors.PriorityHigh, "hazard_type", n.HazardType)
	}
	return nil
}

// LatestNotificationTime returns when hazardType was last sent. The bool is
// false when it never was.
func (ds *DataStore) LatestNotificationTime(ctx context.Context, hazardType string) (time.Time, bool, error) {
	var records []NotificationRecord
	err := ds.DB.WithContext(ctx).
		Select("sent_at").
		Where("hazard_type = ?", hazardType).
		Order("sent_at DESC").
		Limit(1).
		Find(&records).Error
	if err != nil {
		return time.Time{}, false, dbError(err, "latest_notification_time", errors.PriorityMedium,
			"hazard_type", hazardType)
	}
	if len(records) == 0 {
		return time.Time{}, false, nil
	}
	return records[0].SentAt.UTC(), true, nil
}

// RecentNotifications returns up to limit records, newest first.
func (ds *DataStore) RecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	if limit <= 0 {
		return nil, validationError("limit must be positive", "limit", limit)
	}

	var records []NotificationRecord
	err := ds.DB.WithContext(ctx).
		Order("sent_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, dbError(err, "recent_notifications", errors.PriorityMedium)
	}
	return records, nil
}
