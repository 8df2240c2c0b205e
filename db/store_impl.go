package db

import (
	"context"
	"fmt"
	"meditrackctl/model"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Ping verifies the underlying database connection is healthy.
func (s *SQLStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// LogAuditEvent records one step outcome. Failures are logged, never
// propagated: the audit trail must not gate the provisioning run itself.
func (s *SQLStore) LogAuditEvent(logger *zap.SugaredLogger, event model.AuditLog) {
	if s == nil || s.db == nil {
		return
	}
	if event.Message == "" {
		event.Message = event.Action
	}

	err := s.db.WithContext(context.Background()).Create(&event).Error
	if err != nil {
		logger.Errorf("failed to write %v audit log: %v", event, err)
	}
}

// ListAuditEvents returns the most recent events for a tool, newest first.
// A limit of 0 means no limit.
func (s *SQLStore) ListAuditEvents(tool string, limit int) ([]model.AuditLog, error) {
	var events []model.AuditLog
	q := s.db.Where("tool = ?", tool).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
