package database

import (
	"fmt"

	"projectron-api/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the SQLite file at path and runs migrations.
// Using glebarez/sqlite which is a pure Go implementation (no CGO required)
func Open(path string, log *zap.Logger) (*gorm.DB, error) {
	// foreign keys are managed in code; busy_timeout keeps background
	// progress writes from failing while a request holds the write lock
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database connected and migrated", zap.String("path", path))
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// InitDB opens the database and installs it as the package connection.
func InitDB(path string, log *zap.Logger) error {
	db, err := Open(path, log)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
