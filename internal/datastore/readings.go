package datastore

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/mhews/mhews/internal/errors"
)

// SaveReading stores a sensor reading. A zero Timestamp is set to now.
func (ds *DataStore) SaveReading(ctx context.Context, r *SensorReading) error {
	if r == nil {
		return validationError("reading is nil", "reading", nil)
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.Timestamp = r.Timestamp.UTC()

	if err := ds.DB.WithContext(ctx).Create(r).Error; err != nil {
		return dbError(err, "save_reading", errors.PriorityHigh, "risk", r.Risk)
	}
	return nil
}

// LatestReading returns the most recently stored reading, or a not found
// error when the table is empty.
func (ds *DataStore) LatestReading(ctx context.Context) (*SensorReading, error) {
	var r SensorReading
	err := ds.DB.WithContext(ctx).Order("timestamp DESC, id DESC").Take(&r).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("sensor reading", "latest")
		}
		return nil, dbError(err, "latest_reading", errors.PriorityMedium)
	}
	return &r, nil
}

// ReadingsBetween returns readings with from <= timestamp < to, oldest first.
func (ds *DataStore) ReadingsBetween(ctx context.Context, from, to time.Time) ([]SensorReading, error) {
	if to.Before(from) {
		return nil, validationError("end of range is before start", "to", to)
	}

	var readings []SensorReading
	err := ds.DB.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC()).
		Order("timestamp ASC").
		Find(&readings).Error
	if err != nil {
		return nil, dbError(err, "readings_between", errors.PriorityMedium,
			"from", from, "to", to)
	}
	return readings, nil
}
