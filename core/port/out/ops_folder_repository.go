package out

import (
	"context"

	"bizops_server/core/domain"
)

// FolderMapRepository is the outbound port for the type-to-folder table.
type FolderMapRepository interface {
	// ListActive returns every active mapping.
	ListActive(ctx context.Context) ([]*domain.FolderMapping, error)

	// GetByFolderID resolves a mapping from a destination folder id, used by
	// override detection to infer a corrected type from a manual move.
	GetByFolderID(ctx context.Context, folderID string) (*domain.FolderMapping, error)
}
