package out

import (
	"context"

	"bizops_server/core/domain"
)

// AuditRepository is the outbound port for the automation audit log.
type AuditRepository interface {
	// Write appends one audit row. Append-only; rows are never updated.
	Write(ctx context.Context, entry *domain.AuditEntry) error

	// ListRecent returns the latest entries for a handler, newest first.
	ListRecent(ctx context.Context, handler string, limit int) ([]*domain.AuditEntry, error)
}
