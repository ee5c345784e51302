// Package datastore persists sensor readings, notification history and alerts
// through gorm on SQLite or MySQL.
package datastore

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	SaveReading(ctx context.Context, r *SensorReading) error
	LatestReading(ctx context.Context) (*SensorReading, error)
	ReadingsBetween(ctx context.Context, from, to time.Time) ([]SensorReading, error)

	SaveNotification(ctx context.Context, n *NotificationRecord) error
	LatestNotificationTime(ctx context.Context, hazardType string) (time.Time, bool, error)
	RecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)

	NextAlertSequence(ctx context.Context, year int) (int, error)
	SaveAlert(ctx context.Context, a *AlertRecord) error
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	GetAlert(ctx context.Context, alertID string) (*AlertRecord, error)
	ResolveAlert(ctx context.Context, alertID string, at time.Time) (*AlertRecord, error)
	SetAlertSMSResult(ctx context.Context, alertID string, result datatypes.JSON) error
	DeleteAlert(ctx context.Context, alertID string) error
	CountActiveAlerts(ctx context.Context) (int64, error)
}

// DataStore implements Interface on top of a gorm connection.
type DataStore struct {
	DB  *gorm.DB
	log logger.Logger
}

// New returns the store selected by settings.Database.Type. Open must be
// called before use.
func New(settings *conf.Settings) (Interface, error) {
	switch settings.Database.Type {
	case "", "sqlite":
		return &SQLiteStore{Settings: settings}, nil
	case "mysql":
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("database_type", settings.Database.Type).
			Build()
	}
}

// NewWithDB wraps an already opened gorm connection and migrates it.
func NewWithDB(db *gorm.DB) (*DataStore, error) {
	ds := &DataStore{DB: db, log: getLogger()}
	if err := performAutoMigration(db, db.Dialector.Name()); err != nil {
		return nil, err
	}
	return ds, nil
}

func getLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

func gormConfig(settings *conf.Settings) *gorm.Config {
	return &gorm.Config{
		Logger:  logger.NewGormLoggerAdapter(getLogger(), settings.Database.SlowThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// performAutoMigration brings the schema up to date for all models.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	if err := db.AutoMigrate(allModels()...); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityCritical).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Timing("auto_migrate", time.Since(start)).
			Build()
	}
	getLogger().Debug("schema migrated",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// Open is a no-op for a DataStore built around an existing connection.
func (ds *DataStore) Open() error {
	if ds.DB == nil {
		return errors.Newf("datastore has no connection").
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return nil
}

// Close closes the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "get_sql_db", errors.PriorityMedium)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityMedium)
	}
	return nil
}
