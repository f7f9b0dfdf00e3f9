// Package remediation repairs missing company linkage on cached CRM objects
// using v4 association reads.
package remediation

import (
	"context"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/snowflake"
)

// associationBatchSize is the CRM v4 batch-read limit per call.
const associationBatchSize = 100

// defaultScanLimit bounds how many orphaned rows one run inspects.
const defaultScanLimit = 500

// Repair is one resolved linkage.
type Repair struct {
	ObjectType string `json:"object_type"`
	ObjectID   string `json:"object_id"`
	CompanyID  string `json:"company_id"`
}

// RunSummary is the JSON result of one remediation run.
type RunSummary struct {
	RunID      int64     `json:"run_id"`
	Scanned    int       `json:"scanned"`
	Repaired   int       `json:"repaired"`
	Unresolved int       `json:"unresolved"`
	Repairs    []*Repair `json:"repairs,omitempty"`
	Preview    bool      `json:"preview"`
	Errors     []string  `json:"errors,omitempty"`
	DurationMS int64     `json:"duration_ms"`
}

// Status aggregates the remediation log by action.
type Status struct {
	ByAction map[string]int `json:"by_action"`
}

// Service finds and repairs orphaned cache rows.
type Service struct {
	crm    out.CRM
	cache  out.CRMCacheRepository
	graph  out.AssociationGraph
	log    out.RemediationLogRepository
	audits out.AuditRepository
}

// NewService wires remediation. graph may be nil.
func NewService(
	crm out.CRM,
	cache out.CRMCacheRepository,
	graph out.AssociationGraph,
	log out.RemediationLogRepository,
	audits out.AuditRepository,
) *Service {
	return &Service{crm: crm, cache: cache, graph: graph, log: log, audits: audits}
}

// RemediateTickets repairs company linkage on cached tickets.
func (s *Service) RemediateTickets(ctx context.Context, preview bool) (*RunSummary, error) {
	tickets, err := s.cache.ListTicketsWithoutCompany(ctx, defaultScanLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(tickets))
	for i, tk := range tickets {
		ids[i] = tk.ID
	}

	return s.remediate(ctx, domain.ObjectTickets, ids, preview, s.cache.SetTicketCompany)
}

// RemediateContacts repairs company linkage on cached contacts.
func (s *Service) RemediateContacts(ctx context.Context, preview bool) (*RunSummary, error) {
	contacts, err := s.cache.ListContactsWithoutCompany(ctx, defaultScanLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}

	return s.remediate(ctx, domain.ObjectContacts, ids, preview, s.cache.SetContactCompany)
}

// remediate reads associations in batches and applies resolved linkage.
// In preview mode repairs are computed and logged but never written back.
func (s *Service) remediate(
	ctx context.Context,
	objectType string,
	ids []string,
	preview bool,
	setCompany func(ctx context.Context, objectID, companyID string) error,
) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{
		RunID:   snowflake.ID(),
		Scanned: len(ids),
		Preview: preview,
	}

	resolved := make(map[string]string, len(ids))

	for i := 0; i < len(ids); i += associationBatchSize {
		end := i + associationBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		assocs, err := s.crm.BatchReadAssociations(ctx, objectType, domain.ObjectCompanies, ids[i:end])
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("batch %d: %v", i/associationBatchSize, err))
			continue
		}

		for _, assoc := range assocs {
			resolved[assoc.FromID] = assoc.ToID
			s.mirrorEdge(ctx, assoc)
		}
	}

	action := "repaired"
	if preview {
		action = "preview"
	}

	for _, id := range ids {
		companyID, ok := resolved[id]
		if !ok {
			summary.Unresolved++
			continue
		}

		if !preview {
			if err := setCompany(ctx, id, companyID); err != nil {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("%s %s: %v", objectType, id, err))
				continue
			}
		}

		summary.Repaired++
		summary.Repairs = append(summary.Repairs, &Repair{
			ObjectType: objectType,
			ObjectID:   id,
			CompanyID:  companyID,
		})

		record := &domain.RemediationRecord{
			ID:         snowflake.ID(),
			RunID:      summary.RunID,
			ObjectType: objectType,
			ObjectID:   id,
			CompanyID:  companyID,
			Action:     action,
		}
		if err := s.log.Write(ctx, record); err != nil {
			logger.WithError(err).WithField("object_id", id).
				Warn("remediation log write failed")
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	s.writeAudit(ctx, summary, objectType)

	return summary, nil
}

func (s *Service) mirrorEdge(ctx context.Context, assoc *domain.Association) {
	if s.graph == nil {
		return
	}
	if err := s.graph.MergeAssociation(ctx, assoc); err != nil {
		logger.WithError(err).Warn("graph edge merge failed")
	}
}

// RemediationStatus aggregates the log by action.
func (s *Service) RemediationStatus(ctx context.Context) (*Status, error) {
	byAction, err := s.log.CountByAction(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{ByAction: byAction}, nil
}

func (s *Service) writeAudit(ctx context.Context, summary *RunSummary, objectType string) {
	action := "remediate_" + objectType + "_companies"
	if summary.Preview {
		action = "preview_remediations"
	}

	entry := &domain.AuditEntry{
		ID:        snowflake.ID(),
		RunID:     summary.RunID,
		Handler:   "dq-remediate-associations",
		Action:    action,
		Processed: summary.Repaired,
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
