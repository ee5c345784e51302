package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func mysqlDSN(s *conf.MySQLSettings) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// Open connects to MySQL and migrates the schema.
func (store *MySQLStore) Open() error {
	s := &store.Settings.Database.MySQL

	db, err := gorm.Open(mysql.Open(mysqlDSN(s)), gormConfig(store.Settings))
	if err != nil {
		return dbError(err, "mysql_open", errors.PriorityCritical,
			"host", s.Host,
			"database", s.Database)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", errors.PriorityCritical)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := performAutoMigration(db, "mysql"); err != nil {
		_ = sqlDB.Close()
		return err
	}

	store.DB = db
	store.log = getLogger()
	store.log.Info("database opened",
		logger.String("type", "mysql"),
		logger.String("host", s.Host),
		logger.String("database", s.Database))
	return nil
}
