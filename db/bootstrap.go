package db

import (
	"fmt"
	"log"
	"meditrackctl/model"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BootstrapSQLite opens (or creates) the local audit database at dbPath and
// migrates its schema. The audit trail lives next to the tools, not on the
// remote backend, so a run leaves a usable record even when the backend is
// the thing being debugged.
func BootstrapSQLite(dbPath string) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migration failed: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates the audit schema on an already-open handle.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.AuditLog{},
	)
}
