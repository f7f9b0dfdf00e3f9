package graph

import (
	"context"
	"fmt"
	"strings"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// =============================================================================
// Association Graph Adapter
// =============================================================================

// AssociationAdapter implements out.AssociationGraph. CRM objects become
// nodes labeled by object type; association edges are ASSOCIATED_WITH.
type AssociationAdapter struct {
	driver neo4j.DriverWithContext
	dbName string
}

var _ out.AssociationGraph = (*AssociationAdapter)(nil)

// NewAssociationAdapter creates a new AssociationAdapter.
func NewAssociationAdapter(driver neo4j.DriverWithContext, dbName string) *AssociationAdapter {
	return &AssociationAdapter{driver: driver, dbName: dbName}
}

// labelFor maps a CRM object type to a node label. Labels cannot be
// parameterized in Cypher, so the closed mapping doubles as input
// validation.
func labelFor(objectType string) (string, error) {
	switch strings.ToLower(objectType) {
	case domain.ObjectCompanies:
		return "Company", nil
	case domain.ObjectContacts:
		return "Contact", nil
	case domain.ObjectDeals:
		return "Deal", nil
	case domain.ObjectTickets:
		return "Ticket", nil
	default:
		return "", fmt.Errorf("unknown object type %q", objectType)
	}
}

// EnsureConstraints creates uniqueness constraints per label.
func (a *AssociationAdapter) EnsureConstraints(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	for _, label := range []string{"Company", "Contact", "Deal", "Ticket"} {
		query := fmt.Sprintf(
			`CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.crm_id IS UNIQUE`,
			label)
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create %s constraint: %w", label, err)
		}
	}

	return nil
}

// MergeObject upserts a node for a CRM object.
func (a *AssociationAdapter) MergeObject(ctx context.Context, objectType, objectID, name string) error {
	label, err := labelFor(objectType)
	if err != nil {
		return err
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	query := fmt.Sprintf(`MERGE (n:%s {crm_id: $id})
		SET n.name = $name, n.updated_at = datetime()`, label)

	if _, err := session.Run(ctx, query, map[string]interface{}{
		"id":   objectID,
		"name": name,
	}); err != nil {
		return fmt.Errorf("failed to merge %s node: %w", label, err)
	}

	return nil
}

// MergeAssociation upserts an ASSOCIATED_WITH edge.
func (a *AssociationAdapter) MergeAssociation(ctx context.Context, assoc *domain.Association) error {
	fromLabel, err := labelFor(assoc.FromType)
	if err != nil {
		return err
	}
	toLabel, err := labelFor(assoc.ToType)
	if err != nil {
		return err
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	query := fmt.Sprintf(`MERGE (from:%s {crm_id: $from_id})
		MERGE (to:%s {crm_id: $to_id})
		MERGE (from)-[r:ASSOCIATED_WITH]->(to)
		SET r.updated_at = datetime()`, fromLabel, toLabel)

	if _, err := session.Run(ctx, query, map[string]interface{}{
		"from_id": assoc.FromID,
		"to_id":   assoc.ToID,
	}); err != nil {
		return fmt.Errorf("failed to merge association: %w", err)
	}

	return nil
}

// OrphanObjects returns ids of objectType nodes with no edge to any company.
func (a *AssociationAdapter) OrphanObjects(ctx context.Context, objectType string, limit int) ([]string, error) {
	label, err := labelFor(objectType)
	if err != nil {
		return nil, err
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s)
		WHERE NOT (n)-[:ASSOCIATED_WITH]->(:Company)
		RETURN n.crm_id AS id
		LIMIT $limit`, label)

	result, err := session.Run(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to query orphan nodes: %w", err)
	}

	var ids []string
	for result.Next(ctx) {
		if id, ok := result.Record().Get("id"); ok {
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
	}

	return ids, result.Err()
}

// CompanyFor returns the company id associated with an object.
func (a *AssociationAdapter) CompanyFor(ctx context.Context, objectType, objectID string) (string, error) {
	label, err := labelFor(objectType)
	if err != nil {
		return "", err
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s {crm_id: $id})-[:ASSOCIATED_WITH]->(c:Company)
		RETURN c.crm_id AS company_id
		LIMIT 1`, label)

	result, err := session.Run(ctx, query, map[string]interface{}{"id": objectID})
	if err != nil {
		return "", fmt.Errorf("failed to query company edge: %w", err)
	}

	if result.Next(ctx) {
		if v, ok := result.Record().Get("company_id"); ok {
			if s, ok := v.(string); ok {
				return s, nil
			}
		}
	}

	return "", result.Err()
}
