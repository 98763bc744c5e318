package database

import (
	"fmt"
	"time"

	"codentor-backend/pkg/config"
	applog "codentor-backend/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the database selected by DB_DRIVER.
func NewConnection(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		dialector = postgres.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := Open(dialector)
	if err != nil {
		return nil, err
	}

	if cfg.DBDriver == "postgres" || cfg.DBDriver == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// Open wraps gorm.Open with the shared gorm settings. Tests call it with an
// in-memory sqlite dialector.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	dbLogger := logger.New(
		applog.L(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

// OpenMemory opens a private in-memory sqlite database. A single connection
// keeps every query on the same memory database.
func OpenMemory() (*gorm.DB, error) {
	db, err := Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
