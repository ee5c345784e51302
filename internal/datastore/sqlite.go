package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mhews/mhews/internal/conf"
	"github.com/mhews/mhews/internal/errors"
	"github.com/mhews/mhews/internal/logger"
)

// SQLiteStore implements DataStore for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
}

// Open creates the database file if needed, connects and migrates.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Database.SQLite.Path
	if path == "" {
		return validationError("sqlite path is empty", "database.sqlite.path", path)
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("operation", "create_db_directory").
					Context("path", dir).
					Build()
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), gormConfig(store.Settings))
	if err != nil {
		return dbError(err, "sqlite_open", errors.PriorityCritical, "path", path)
	}

	// SQLite allows a single writer; serialising on one connection avoids
	// SQLITE_BUSY under concurrent dispatches.
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db", errors.PriorityCritical)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := performAutoMigration(db, "sqlite"); err != nil {
		_ = sqlDB.Close()
		return err
	}

	store.DB = db
	store.log = getLogger()
	store.log.Info("database opened",
		logger.String("type", "sqlite"),
		logger.String("path", path))
	return nil
}
