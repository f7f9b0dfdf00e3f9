// Package crmsync keeps the local CRM cache tables current via incremental
// cursor-based sync.
package crmsync

import (
	"context"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/ratelimit"
	"bizops_server/pkg/snowflake"
)

// Config holds sync tunables.
type Config struct {
	PageLimit int // objects per CRM page
}

// ObjectSummary is the result of syncing one object type.
type ObjectSummary struct {
	ObjectType string `json:"object_type"`
	Synced     int    `json:"synced"`
	Pages      int    `json:"pages"`
	Cursor     string `json:"cursor,omitempty"` // empty when fully caught up
}

// RunSummary is the JSON result of one sync invocation.
type RunSummary struct {
	RunID      int64            `json:"run_id"`
	Objects    []*ObjectSummary `json:"objects"`
	Errors     []string         `json:"errors,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// Status reports cursor positions and cached row counts.
type Status struct {
	States []*domain.SyncState `json:"states"`
	Counts map[string]int      `json:"counts"`
}

// Service syncs CRM objects into the local cache.
type Service struct {
	cfg     Config
	crm     out.CRM
	cache   out.CRMCacheRepository
	cursors out.SyncStateRepository
	graph   out.AssociationGraph
	audits  out.AuditRepository
	limiter *ratelimit.Limiter
}

// NewService wires the sync service. graph and limiter may be nil.
func NewService(
	cfg Config,
	crm out.CRM,
	cache out.CRMCacheRepository,
	cursors out.SyncStateRepository,
	graph out.AssociationGraph,
	audits out.AuditRepository,
	limiter *ratelimit.Limiter,
) *Service {
	return &Service{
		cfg:     cfg,
		crm:     crm,
		cache:   cache,
		cursors: cursors,
		graph:   graph,
		audits:  audits,
		limiter: limiter,
	}
}

// SyncObject runs one object type to completion from its saved cursor.
func (s *Service) SyncObject(ctx context.Context, objectType string) (*RunSummary, error) {
	return s.run(ctx, "sync_"+objectType, []string{objectType})
}

// SyncAll runs every object type in dependency order.
func (s *Service) SyncAll(ctx context.Context) (*RunSummary, error) {
	return s.run(ctx, "sync_all", domain.SyncObjectTypes)
}

func (s *Service) run(ctx context.Context, action string, objectTypes []string) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{RunID: snowflake.ID()}

	for _, objectType := range objectTypes {
		obj, err := s.syncOne(ctx, objectType)
		if obj != nil {
			summary.Objects = append(summary.Objects, obj)
		}
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: %v", objectType, err))
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	s.writeAudit(ctx, summary, action)

	return summary, nil
}

// syncOne pages through one object type from its cursor. The cursor is saved
// after every page so an interrupted run resumes where it stopped.
func (s *Service) syncOne(ctx context.Context, objectType string) (*ObjectSummary, error) {
	obj := &ObjectSummary{ObjectType: objectType}

	state, err := s.cursors.Get(ctx, objectType)
	if err != nil {
		return obj, err
	}
	cursor := ""
	if state != nil {
		cursor = state.Cursor
	}

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return obj, err
			}
		}

		next, count, err := s.syncPage(ctx, objectType, cursor)
		if err != nil {
			return obj, err
		}

		obj.Pages++
		obj.Synced += count
		cursor = next

		if err := s.saveCursor(ctx, objectType, cursor, obj.Synced); err != nil {
			logger.WithError(err).WithField("object_type", objectType).
				Warn("cursor save failed")
		}

		if cursor == "" {
			return obj, nil
		}
	}
}

// syncPage fetches and upserts one page, returning the next cursor.
func (s *Service) syncPage(ctx context.Context, objectType, cursor string) (string, int, error) {
	switch objectType {
	case domain.ObjectCompanies:
		page, err := s.crm.ListCompanies(ctx, cursor, s.cfg.PageLimit)
		if err != nil {
			return "", 0, err
		}
		if err := s.cache.UpsertCompanies(ctx, page.Results); err != nil {
			return "", 0, err
		}
		for _, c := range page.Results {
			s.mirrorObject(ctx, domain.ObjectCompanies, c.ID, c.Name)
		}
		return page.After, len(page.Results), nil

	case domain.ObjectContacts:
		page, err := s.crm.ListContacts(ctx, cursor, s.cfg.PageLimit)
		if err != nil {
			return "", 0, err
		}
		if err := s.cache.UpsertContacts(ctx, page.Results); err != nil {
			return "", 0, err
		}
		for _, c := range page.Results {
			s.mirrorObject(ctx, domain.ObjectContacts, c.ID, c.Email)
			if c.CompanyID != "" {
				s.mirrorAssociation(ctx, domain.ObjectContacts, c.ID, c.CompanyID)
			}
		}
		return page.After, len(page.Results), nil

	case domain.ObjectDeals:
		page, err := s.crm.ListDeals(ctx, cursor, s.cfg.PageLimit)
		if err != nil {
			return "", 0, err
		}
		if err := s.cache.UpsertDeals(ctx, page.Results); err != nil {
			return "", 0, err
		}
		for _, d := range page.Results {
			s.mirrorObject(ctx, domain.ObjectDeals, d.ID, d.Name)
			if d.CompanyID != "" {
				s.mirrorAssociation(ctx, domain.ObjectDeals, d.ID, d.CompanyID)
			}
		}
		return page.After, len(page.Results), nil

	case domain.ObjectTickets:
		page, err := s.crm.ListTickets(ctx, cursor, s.cfg.PageLimit)
		if err != nil {
			return "", 0, err
		}
		if err := s.cache.UpsertTickets(ctx, page.Results); err != nil {
			return "", 0, err
		}
		for _, tk := range page.Results {
			s.mirrorObject(ctx, domain.ObjectTickets, tk.ID, tk.Subject)
			if tk.CompanyID != "" {
				s.mirrorAssociation(ctx, domain.ObjectTickets, tk.ID, tk.CompanyID)
			}
		}
		return page.After, len(page.Results), nil

	default:
		return "", 0, fmt.Errorf("unknown object type %q", objectType)
	}
}

// Graph mirroring is best effort; the Postgres cache is the record.
func (s *Service) mirrorObject(ctx context.Context, objectType, id, name string) {
	if s.graph == nil {
		return
	}
	if err := s.graph.MergeObject(ctx, objectType, id, name); err != nil {
		logger.WithError(err).WithField("object_type", objectType).
			Warn("graph node merge failed")
	}
}

func (s *Service) mirrorAssociation(ctx context.Context, fromType, fromID, companyID string) {
	if s.graph == nil {
		return
	}
	assoc := &domain.Association{
		FromType: fromType,
		FromID:   fromID,
		ToType:   domain.ObjectCompanies,
		ToID:     companyID,
	}
	if err := s.graph.MergeAssociation(ctx, assoc); err != nil {
		logger.WithError(err).WithField("from_type", fromType).
			Warn("graph edge merge failed")
	}
}

func (s *Service) saveCursor(ctx context.Context, objectType, cursor string, count int) error {
	now := time.Now().UTC()
	return s.cursors.Save(ctx, &domain.SyncState{
		ObjectType: objectType,
		Cursor:     cursor,
		LastCount:  count,
		LastSyncAt: &now,
	})
}

// SyncStatus returns cursor positions and cache counts.
func (s *Service) SyncStatus(ctx context.Context) (*Status, error) {
	states, err := s.cursors.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.cache.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{States: states, Counts: counts}, nil
}

// ResetCursor clears one object type's cursor.
func (s *Service) ResetCursor(ctx context.Context, objectType string) error {
	valid := false
	for _, t := range domain.SyncObjectTypes {
		if t == objectType {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown object type %q", objectType)
	}
	return s.cursors.Reset(ctx, objectType)
}

func (s *Service) writeAudit(ctx context.Context, summary *RunSummary, action string) {
	total := 0
	detail := make(map[string]any, len(summary.Objects))
	for _, obj := range summary.Objects {
		total += obj.Synced
		detail[obj.ObjectType] = obj.Synced
	}

	entry := &domain.AuditEntry{
		ID:        snowflake.ID(),
		RunID:     summary.RunID,
		Handler:   "hubspot-cache-sync",
		Action:    action,
		Processed: total,
		Failed:    len(summary.Errors),
		Errors:    summary.Errors,
		Detail:    detail,
	}
	if err := s.audits.Write(ctx, entry); err != nil {
		logger.WithError(err).Warn("audit write failed")
	}
}
