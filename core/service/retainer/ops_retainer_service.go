// Package retainer creates monthly CRM deals and work items for retainer
// clients.
package retainer

import (
	"context"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/snowflake"
)

// Activation is one retainer processed in a run.
type Activation struct {
	ConfigID   int64   `json:"config_id"`
	ClientID   int64   `json:"client_id"`
	ClientName string  `json:"client_name"`
	DealName   string  `json:"deal_name"`
	Amount     float64 `json:"amount"`
	DealID     string  `json:"deal_id,omitempty"`
	Skipped    bool    `json:"skipped"`
	SkipReason string  `json:"skip_reason,omitempty"`
}

// RunSummary is the JSON result of one activation run.
type RunSummary struct {
	RunID       int64         `json:"run_id"`
	Month       string        `json:"month"`
	Activated   int           `json:"activated"`
	Skipped     int           `json:"skipped"`
	Activations []*Activation `json:"activations"`
	Preview     bool          `json:"preview"`
	Errors      []string      `json:"errors,omitempty"`
	DurationMS  int64         `json:"duration_ms"`
}

// Service runs monthly retainer activation.
type Service struct {
	retainers out.RetainerRepository
	clients   out.ClientRepository
	crm       out.CRM
	items     out.WorkItemRepository
	audits    out.AuditRepository
	now       func() time.Time
}

func NewService(
	retainers out.RetainerRepository,
	clients out.ClientRepository,
	crm out.CRM,
	items out.WorkItemRepository,
	audits out.AuditRepository,
) *Service {
	return &Service{
		retainers: retainers,
		clients:   clients,
		crm:       crm,
		items:     items,
		audits:    audits,
		now:       time.Now,
	}
}

// ActivateMonthly creates one CRM deal and one work item per active retainer
// for the current month. A retainer already activated this month is skipped,
// making the handler safe to re-run.
func (s *Service) ActivateMonthly(ctx context.Context) (*RunSummary, error) {
	return s.run(ctx, false)
}

// PreviewActivation computes the month's activations without writing.
func (s *Service) PreviewActivation(ctx context.Context) (*RunSummary, error) {
	return s.run(ctx, true)
}

func (s *Service) run(ctx context.Context, preview bool) (*RunSummary, error) {
	start := s.now()
	month := start.UTC().Format("2006-01")

	summary := &RunSummary{
		RunID:   snowflake.ID(),
		Month:   month,
		Preview: preview,
	}

	configs, err := s.retainers.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, cfg := range configs {
		activation, err := s.activateOne(ctx, cfg, month, preview)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("retainer %d: %v", cfg.ID, err))
			continue
		}

		summary.Activations = append(summary.Activations, activation)
		if activation.Skipped {
			summary.Skipped++
		} else {
			summary.Activated++
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	if !preview {
		s.writeAudit(ctx, summary)
	}

	return summary, nil
}

func (s *Service) activateOne(
	ctx context.Context,
	cfg *domain.RetainerConfig,
	month string,
	preview bool,
) (*Activation, error) {
	client, err := s.clients.GetByID(ctx, cfg.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("client %d not in registry", cfg.ClientID)
	}

	activation := &Activation{
		ConfigID:   cfg.ID,
		ClientID:   client.ID,
		ClientName: client.Name,
		DealName:   fmt.Sprintf("%s - %s retainer", client.Name, month),
		Amount:     cfg.MonthlyAmount,
	}

	if cfg.LastActivated != nil && cfg.LastActivated.UTC().Format("2006-01") == month {
		activation.Skipped = true
		activation.SkipReason = "already activated this month"
		return activation, nil
	}

	if preview {
		return activation, nil
	}

	deal, err := s.crm.CreateDeal(ctx, &out.DealCreate{
		Name:      activation.DealName,
		Stage:     cfg.DealStage,
		Amount:    cfg.MonthlyAmount,
		CompanyID: client.HubSpotID,
	})
	if err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}
	activation.DealID = deal.ID

	item := &domain.WorkItem{
		ClientID:  client.ID,
		CompanyID: client.HubSpotID,
		Title:     activation.DealName,
		Status:    domain.WorkItemOpen,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create work item: %w", err)
	}

	if err := s.retainers.MarkActivated(ctx, cfg.ID); err != nil {
		logger.WithError(err).WithField("config_id", cfg.ID).
			Warn("activation stamp failed")
	}

	return activation, nil
}

// Configs returns the active retainer configuration.
func (s *Service) Configs(ctx context.Context) ([]*domain.RetainerConfig, error) {
	return s.retainers.ListActive(ctx)
}

func (s *Service) writeAudit(ctx context.Context, summary *RunSummary) {
	entry := &domain.AuditEntry{
		ID:        snowflake.ID(),
		RunID:     summary.RunID,
		Handler:   "retainer-activation",
		Action:    "activate_monthly",
		Processed: summary.Activated,
		Failed:    len(summary.Errors),
		Errors:    summary.Errors,
		Detail: map[string]any{
			"month":   summary.Month,
			"skipped": summary.Skipped,
		},
	}
	if err := s.audits.Write(ctx, entry); err != nil {
		logger.WithError(err).Warn("audit write failed")
	}
}
