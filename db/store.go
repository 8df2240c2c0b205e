package db

import (
	"meditrackctl/model"

	"go.uber.org/zap"
)

// Store is the local audit-trail surface used by the admin tools. Writes are
// best-effort: a broken local database must never abort a provisioning run.
type Store interface {
	LogAuditEvent(logger *zap.SugaredLogger, event model.AuditLog)
	ListAuditEvents(tool string, limit int) ([]model.AuditLog, error)
}
