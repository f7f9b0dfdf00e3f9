// Package workitem links orphaned work items to clients via CRM ticket
// associations.
package workitem

import (
	"context"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/snowflake"
)

const defaultScanLimit = 200

// RunSummary is the JSON result of one enrichment run.
type RunSummary struct {
	RunID      int64    `json:"run_id"`
	Scanned    int      `json:"scanned"`
	Enriched   int      `json:"enriched"`
	Unresolved int      `json:"unresolved"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// Service resolves client linkage for orphaned work items.
type Service struct {
	items   out.WorkItemRepository
	crm     out.CRM
	cache   out.CRMCacheRepository
	graph   out.AssociationGraph
	clients out.ClientRepository
	audits  out.AuditRepository
}

// NewService wires enrichment. graph may be nil; without it the CRM v4
// association read is the only linkage source.
func NewService(
	items out.WorkItemRepository,
	crm out.CRM,
	cache out.CRMCacheRepository,
	graph out.AssociationGraph,
	clients out.ClientRepository,
	audits out.AuditRepository,
) *Service {
	return &Service{items: items, crm: crm, cache: cache, graph: graph, clients: clients, audits: audits}
}

// EnrichOrphans resolves each orphaned work item: ticket to company
// association, then client registry lookup, upserting a registry entry when
// the company is known to the CRM but not yet registered.
func (s *Service) EnrichOrphans(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{RunID: snowflake.ID()}

	orphans, err := s.items.ListOrphans(ctx, defaultScanLimit)
	if err != nil {
		return nil, err
	}
	summary.Scanned = len(orphans)

	for _, item := range orphans {
		ok, err := s.enrichOne(ctx, item)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("work item %d: %v", item.ID, err))
			continue
		}
		if ok {
			summary.Enriched++
		} else {
			summary.Unresolved++
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	s.writeAudit(ctx, summary)

	return summary, nil
}

func (s *Service) enrichOne(ctx context.Context, item *domain.WorkItem) (bool, error) {
	if item.TicketID == "" {
		return false, nil
	}

	companyID, err := s.companyForTicket(ctx, item.TicketID)
	if err != nil {
		return false, err
	}
	if companyID == "" {
		return false, nil
	}

	clientID, err := s.resolveClient(ctx, companyID)
	if err != nil {
		return false, err
	}

	if err := s.items.SetClient(ctx, item.ID, clientID, companyID); err != nil {
		return false, err
	}

	return true, nil
}

// companyForTicket prefers the mirrored graph edge, falling back to a live
// v4 association read.
func (s *Service) companyForTicket(ctx context.Context, ticketID string) (string, error) {
	if s.graph != nil {
		companyID, err := s.graph.CompanyFor(ctx, domain.ObjectTickets, ticketID)
		if err != nil {
			logger.WithError(err).WithField("ticket_id", ticketID).
				Warn("graph lookup failed, falling back to CRM")
		} else if companyID != "" {
			return companyID, nil
		}
	}

	assocs, err := s.crm.BatchReadAssociations(ctx,
		domain.ObjectTickets, domain.ObjectCompanies, []string{ticketID})
	if err != nil {
		return "", err
	}
	if len(assocs) == 0 {
		return "", nil
	}
	return assocs[0].ToID, nil
}

// resolveClient finds the registry entry for a CRM company, creating one
// from the cached company record when missing.
func (s *Service) resolveClient(ctx context.Context, companyID string) (int64, error) {
	client, err := s.clients.GetByHubSpotID(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if client != nil {
		return client.ID, nil
	}

	entry := &domain.Client{HubSpotID: companyID, Active: true}
	company, err := s.cache.GetCompany(ctx, companyID)
	if err != nil {
		logger.WithError(err).WithField("company_id", companyID).
			Warn("company cache lookup failed")
	} else if company != nil {
		entry.Name = company.Name
		entry.Domain = company.Domain
	}
	if entry.Name == "" {
		entry.Name = companyID
	}

	return s.clients.Upsert(ctx, entry)
}

func (s *Service) writeAudit(ctx context.Context, summary *RunSummary) {
	entry := &domain.AuditEntry{
		ID:        snowflake.ID(),
		RunID:     summary.RunID,
		Handler:   "enrich-work-item-client",
		Action:    "enrich_orphans",
		Processed: summary.Enriched,
		Failed:    len(summary.Errors),
		Errors:    summary.Errors,
		Detail: map[string]any{
			"scanned":    summary.Scanned,
			"unresolved": summary.Unresolved,
		},
	}
	if err := s.audits.Write(ctx, entry); err != nil {
		logger.WithError(err).Warn("audit write failed")
	}
}
