package datastore

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mhews/mhews/internal/errors"
)

// NextAlertSequence atomically increments and returns the alert sequence for
// year. The first call for a year returns 1.
func (ds *DataStore) NextAlertSequence(ctx context.Context, year int) (int, error) {
	var seq AlertSequence
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year"}},
			DoUpdates: clause.Assignments(map[string]any{"last_seq": gorm.Expr("last_seq + 1")}),
		}).Create(&AlertSequence{Year: year, LastSeq: 1})
		if upsert.Error != nil {
			return upsert.Error
		}
		return tx.Where("year = ?", year).Take(&seq).Error
	})
	if err != nil {
		return 0, dbError(err, "next_alert_sequence", errors.PriorityHigh, "year", year)
	}
	return seq.LastSeq, nil
}

// SaveAlert inserts a new alert.
func (ds *DataStore) SaveAlert(ctx context.Context, a *AlertRecord) error {
	if a == nil {
		return validationError("alert is nil", "alert", nil)
	}
	if a.AlertID == "" {
		return validationError("alert id is required", "alert_id", a.AlertID)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	a.Timestamp = a.Timestamp.UTC()

	if err := ds.DB.WithContext(ctx).Create(a).Error; err != nil {
		return dbError(err, "save_alert", errors.PriorityHigh, "alert_id", a.AlertID)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (ds *DataStore) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		return nil, validationError("limit must be positive", "limit", limit)
	}

	var alerts []AlertRecord
	err := ds.DB.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, dbError(err, "recent_alerts", errors.PriorityMedium)
	}
	return alerts, nil
}

// GetAlert returns the alert with the given public id.
func (ds *DataStore) GetAlert(ctx context.Context, alertID string) (*AlertRecord, error) {
	var a AlertRecord
	err := ds.DB.WithContext(ctx).Where("alert_id = ?", alertID).Take(&a).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("alert", alertID)
		}
		return nil, dbError(err, "get_alert", errors.PriorityMedium, "alert_id", alertID)
	}
	return &a, nil
}

// ResolveAlert marks an active alert resolved at the given time. An alert
// that is already resolved is returned unchanged.
func (ds *DataStore) ResolveAlert(ctx context.Context, alertID string, at time.Time) (*AlertRecord, error) {
	a, err := ds.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if a.Status == AlertStatusResolved {
		return a, nil
	}

	resolvedAt := at.UTC()
	err = ds.DB.WithContext(ctx).
		Model(&AlertRecord{}).
		Where("alert_id = ? AND status <> ?", alertID, AlertStatusResolved).
		Updates(map[string]any{"status": AlertStatusResolved, "resolved_at": resolvedAt}).Error
	if err != nil {
		return nil, dbError(err, "resolve_alert", errors.PriorityHigh, "alert_id", alertID)
	}

	return ds.GetAlert(ctx, alertID)
}

// SetAlertSMSResult stores the delivery outcome of an alert's SMS channel.
func (ds *DataStore) SetAlertSMSResult(ctx context.Context, alertID string, result datatypes.JSON) error {
	res := ds.DB.WithContext(ctx).
		Model(&AlertRecord{}).
		Where("alert_id = ?", alertID).
		Update("sms_result", result)
	if res.Error != nil {
		return dbError(res.Error, "set_alert_sms_result", errors.PriorityLow, "alert_id", alertID)
	}
	return nil
}

// DeleteAlert removes the alert with the given public id.
func (ds *DataStore) DeleteAlert(ctx context.Context, alertID string) error {
	res := ds.DB.WithContext(ctx).Where("alert_id = ?", alertID).Delete(&AlertRecord{})
	if res.Error != nil {
		return dbError(res.Error, "delete_alert", errors.PriorityHigh, "alert_id", alertID)
	}
	if res.RowsAffected == 0 {
		return notFoundError("alert", alertID)
	}
	return nil
}

// CountActiveAlerts returns the number of alerts still Active.
func (ds *DataStore) CountActiveAlerts(ctx context.Context) (int64, error) {
	var n int64
	err := ds.DB.WithContext(ctx).Model(&AlertRecord{}).Where("status = ?", AlertStatusActive).Count(&n).Error
	if err != nil {
		return 0, dbError(err, "count_active_alerts", errors.PriorityLow)
	}
	return n, nil
}
