package out

import (
	"context"

	"bizops_server/core/domain"
)

// MessageRepository is the outbound port for the email monitoring queue.
type MessageRepository interface {
	// GetByID retrieves a message by queue id.
	GetByID(ctx context.Context, id int64) (*domain.Message, error)

	// ListNew fetches up to limit messages with status `new`, oldest first.
	// Re-runs are no-ops because this filter excludes classified rows.
	ListNew(ctx context.Context, limit int) ([]*domain.Message, error)

	// LatestClassifiedInThread returns the most recently received terminally
	// classified message sharing conversationID, excluding excludeID.
	// Returns nil when no prior classification exists.
	LatestClassifiedInThread(ctx context.Context, conversationID string, excludeID int64) (*domain.Message, error)

	// ListProcessedSince returns messages classified within the lookback
	// window, used by override detection.
	ListProcessedSince(ctx context.Context, hours int) ([]*domain.Message, error)

	// UpdateClassification persists the pipeline outcome and flips status.
	UpdateClassification(ctx context.Context, m *domain.Message) error

	// MarkError records a per-record failure without changing status.
	MarkError(ctx context.Context, id int64, msg string) error
}
