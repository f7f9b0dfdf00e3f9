package classify

import (
	"context"
	"fmt"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/metrics"
	"bizops_server/pkg/snowflake"
)

// Config holds pipeline tunables.
type Config struct {
	BatchSize            int
	LearnThresholdBatch  float64
	LearnThresholdSingle float64
	ThreadConfidence     float64
}

// RunSummary is the JSON result of one handler run.
type RunSummary struct {
	RunID        int64          `json:"run_id"`
	Processed    int            `json:"processed"`
	Failed       int            `json:"failed"`
	RulesLearned int            `json:"rules_learned"`
	ByStatus     map[string]int `json:"by_status"`
	Errors       []string       `json:"errors,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
}

// Service runs the classification pipeline.
type Service struct {
	cfg      Config
	loader   *SnapshotLoader
	messages out.MessageRepository
	rules    out.RuleRepository
	crm      out.CRM
	ai       out.AIClassifier
	mailbox  out.Mailbox
	notifier out.Notifier
	audits   out.AuditRepository
	latency  *metrics.LatencyTracker
}

// NewService wires the pipeline.
func NewService(
	cfg Config,
	loader *SnapshotLoader,
	messages out.MessageRepository,
	rules out.RuleRepository,
	crm out.CRM,
	ai out.AIClassifier,
	mailbox out.Mailbox,
	notifier out.Notifier,
	audits out.AuditRepository,
	latencyReg *metrics.Registry,
) *Service {
	var tracker *metrics.LatencyTracker
	if latencyReg != nil {
		tracker = latencyReg.Tracker("classify")
	}
	return &Service{
		cfg:      cfg,
		loader:   loader,
		messages: messages,
		rules:    rules,
		crm:      crm,
		ai:       ai,
		mailbox:  mailbox,
		notifier: notifier,
		audits:   audits,
		latency:  tracker,
	}
}

// resolvers builds the ordered stage list for one run.
func (s *Service) resolvers() []Resolver {
	return []Resolver{
		threadResolver(s.messages, s.cfg.ThreadConfidence),
		ruleResolver(s.rules),
		enrichResolver(s.crm),
		aiResolver(s.ai),
	}
}

// ClassifyBatch fetches up to limit `new` messages and runs the pipeline on
// each sequentially. Per-record failures are collected; the run keeps going.
func (s *Service) ClassifyBatch(ctx context.Context, limit int) (*RunSummary, error) {
	start := time.Now()

	if limit <= 0 {
		limit = s.cfg.BatchSize
	}

	summary := &RunSummary{
		RunID:    snowflake.ID(),
		ByStatus: make(map[string]int),
	}

	snap, err := s.loader.Load(ctx)
	if err != nil {
		// Configuration failure aborts before any record is touched.
		s.writeAudit(ctx, summary, "classify_batch", err)
		return nil, err
	}

	msgs, err := s.messages.ListNew(ctx, limit)
	if err != nil {
		s.writeAudit(ctx, summary, "classify_batch", err)
		return nil, err
	}

	for _, msg := range msgs {
		if err := s.classifyOne(ctx, msg, snap, s.cfg.LearnThresholdBatch, summary); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("message %d: %v", msg.ID, err))
			if markErr := s.messages.MarkError(ctx, msg.ID, err.Error()); markErr != nil {
				logger.WithError(markErr).WithField("message_id", msg.ID).
					Warn("failed to record message error")
			}
			continue
		}
		summary.Processed++
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	if s.latency != nil {
		s.latency.Record(time.Since(start))
	}
	s.writeAudit(ctx, summary, "classify_batch", nil)

	return summary, nil
}

// ClassifyMessage runs the pipeline for a single queue id with the stricter
// single-message learn threshold. Re-running on an already classified
// message is a no-op.
func (s *Service) ClassifyMessage(ctx context.Context, id int64) (*RunSummary, error) {
	start := time.Now()

	summary := &RunSummary{
		RunID:    snowflake.ID(),
		ByStatus: make(map[string]int),
	}

	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d not found", id)
	}
	if msg.Status.IsTerminal() {
		summary.DurationMS = time.Since(start).Milliseconds()
		return summary, nil
	}

	snap, err := s.loader.Load(ctx)
	if err != nil {
		s.writeAudit(ctx, summary, "classify_email", err)
		return nil, err
	}

	if err := s.classifyOne(ctx, msg, snap, s.cfg.LearnThresholdSingle, summary); err != nil {
		summary.Failed++
		summary.Errors = append(summary.Errors, err.Error())
	} else {
		summary.Processed++
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	s.writeAudit(ctx, summary, "classify_email", nil)

	return summary, nil
}

// classifyOne runs the resolver fold, routes the result, persists the
// transition and fires learning and notification side effects.
func (s *Service) classifyOne(
	ctx context.Context,
	msg *domain.Message,
	snap *Snapshot,
	learnThreshold float64,
	summary *RunSummary,
) error {
	rc := &RunContext{Msg: msg, Snapshot: snap}

	result, stageErrs := Fold(ctx, rc, s.resolvers())
	for _, stageErr := range stageErrs {
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("message %d: %v", msg.ID, stageErr))
	}

	result.EmailType = domain.CoerceEmailType(result.EmailType)
	route := routeClassification(result, snap)

	// Mailbox move is non-fatal, including 404: the message may have been
	// deleted or moved by hand since ingestion. The DB update proceeds.
	if route.FolderID != "" {
		if err := s.mailbox.MoveMessage(ctx, msg.MessageID, route.FolderID); err != nil {
			logger.WithError(err).WithFields(map[string]any{
				"message_id": msg.MessageID,
				"folder_id":  route.FolderID,
			}).Warn("folder move failed")
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("message %d: folder move: %v", msg.ID, err))
		}
	}

	applyResult(msg, result, rc.CRM, route)

	if err := s.messages.UpdateClassification(ctx, msg); err != nil {
		return fmt.Errorf("persist classification: %w", err)
	}
	summary.ByStatus[string(msg.Status)]++

	learned, err := maybeLearnRule(ctx, s.rules, msg, result, learnThreshold)
	if err != nil {
		logger.WithError(err).WithField("message_id", msg.ID).Warn("rule learning failed")
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("message %d: learn: %v", msg.ID, err))
	}
	if learned {
		summary.RulesLearned++
		s.loader.Invalidate(ctx)
	}

	s.maybeNotify(ctx, msg, result, rc.CRM, summary)

	return nil
}

// applyResult copies the pipeline outcome onto the message row.
func applyResult(msg *domain.Message, c *domain.Classification, crm *domain.CRMIdentity, route *Route) {
	now := time.Now().UTC()

	msg.EmailType = c.EmailType
	msg.Priority = c.Priority
	msg.ActionBucket = c.ActionBucket
	msg.Confidence = c.Confidence
	msg.Source = string(c.Source)
	msg.EscalationPath = c.EscalationPath
	msg.BMSArea = c.BMSArea
	msg.RequiresAction = route.RequiresAction
	msg.FolderID = route.FolderID
	msg.FolderName = route.FolderName
	msg.Status = route.Status
	msg.ProcessedAt = &now

	if crm != nil {
		msg.CompanyID = crm.CompanyID
		msg.ContactID = crm.ContactID
	}
}

// maybeNotify posts a chat alert when the escalation path is slack or the
// bucket requires ticket creation. Failures join the error list, never
// re-raised.
func (s *Service) maybeNotify(
	ctx context.Context,
	msg *domain.Message,
	c *domain.Classification,
	crm *domain.CRMIdentity,
	summary *RunSummary,
) {
	if c.EscalationPath != domain.EscalationSlack && c.ActionBucket != domain.BucketCreateTicket {
		return
	}

	n := &out.Notification{
		Subject:      msg.Subject,
		SenderEmail:  msg.SenderEmail,
		EmailType:    c.EmailType,
		Priority:     c.Priority,
		ActionBucket: c.ActionBucket,
		Confidence:   c.Confidence,
		Reasoning:    c.Reasoning,
	}
	if crm != nil {
		n.CompanyName = crm.CompanyName
	}

	if err := s.notifier.Post(ctx, n); err != nil {
		logger.WithError(err).WithField("message_id", msg.ID).Warn("notification failed")
		summary.Errors = append(summary.Errors,
			fmt.Sprintf("message %d: notify: %v", msg.ID, err))
	}
}

// Rules returns the active rule list for the get_classification_rules action.
func (s *Service) Rules(ctx context.Context) ([]*domain.ClassificationRule, error) {
	return s.rules.ListActive(ctx)
}

// writeAudit records one audit row per run. Audit failures only log.
func (s *Service) writeAudit(ctx context.Context, summary *RunSummary, action string, fatal error) {
	entry := &domain.AuditEntry{
		ID:        snowflake.ID(),
		RunID:     summary.RunID,
		Handler:   "email-processor",
		Action:    action,
		Processed: summary.Processed,
		Failed:    summary.Failed,
		Errors:    summary.Errors,
		Detail: map[string]any{
			"by_status":     summary.ByStatus,
			"rules_learned": summary.RulesLearned,
		},
	}
	if fatal != nil {
		entry.Errors = append(entry.Errors, fatal.Error())
	}

	if err := s.audits.Write(ctx, entry); err != nil {
		logger.WithError(err).Warn("audit write failed")
	}
}
