package out

import (
	"context"

	"bizops_server/core/domain"
)

// AssociationGraph mirrors CRM association edges into a graph store for
// orphan lookup and remediation previews.
type AssociationGraph interface {
	// MergeObject upserts a node for a CRM object.
	MergeObject(ctx context.Context, objectType, objectID, name string) error

	// MergeAssociation upserts an ASSOCIATED_WITH edge.
	MergeAssociation(ctx context.Context, assoc *domain.Association) error

	// OrphanObjects returns ids of objectType nodes with no edge to any
	// company node.
	OrphanObjects(ctx context.Context, objectType string, limit int) ([]string, error)

	// CompanyFor returns the company id associated with an object, or ""
	// when the graph has no edge.
	CompanyFor(ctx context.Context, objectType, objectID string) (string, error)
}
