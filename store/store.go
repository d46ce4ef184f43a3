// Package store persists the contract kv and the sealed audit chain in a SQL
// database through gorm. SQLite is used for single-node setups and tests,
// MySQL for shared deployments.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Open connects to the database and creates the tables when they are missing.
// Example payload: store.Open("sqlite", "file:treasury.db")
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	log.Info("opening store", zap.String("driver", driver))
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", driver, err)
	}
	if strings.EqualFold(driver, DriverSQLite) {
		// one writer, and an in-memory database only lives as long as its connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&KVEntry{}, &AuditEntry{}); err != nil {
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormLogger() logger.Interface {
	level := logger.Warn
	if log.Core().Enabled(zapcore.DebugLevel) {
		level = logger.Info
	}
	std := zap.NewStdLog(log.Named("gorm"))
	return logger.New(std, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
