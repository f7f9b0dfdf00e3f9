package out

import (
	"context"

	"bizops_server/core/domain"
)

// WorkItemRepository is the outbound port for local work items.
type WorkItemRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.WorkItem, error)

	// ListOrphans returns work items without client linkage.
	ListOrphans(ctx context.Context, limit int) ([]*domain.WorkItem, error)

	Create(ctx context.Context, item *domain.WorkItem) error

	// SetClient fills in the resolved client and company linkage.
	SetClient(ctx context.Context, id int64, clientID int64, companyID string) error
}

// RetainerRepository is the outbound port for retainer configuration.
type RetainerRepository interface {
	// ListActive returns active retainer configs joined with their clients.
	ListActive(ctx context.Context) ([]*domain.RetainerConfig, error)

	// MarkActivated stamps the last activation time.
	MarkActivated(ctx context.Context, id int64) error
}
