// Package overrides detects human folder corrections and turns them into
// classification rules.
package overrides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/logger"
	"bizops_server/pkg/snowflake"
)

// Policy controls how a detected override is applied. Folders in
// NoLearnFolders never produce rules; messages moved there by hand are noted
// in the run summary but the sender keeps its automated classification.
// DeactivateExisting chooses between retiring a contradicted rule and
// redirecting it to the corrected type.
type Policy struct {
	LookbackHours      int
	NoLearnFolders     []string
	DeactivateExisting bool
}

func (p Policy) noLearn(folderName string) bool {
	for _, f := range p.NoLearnFolders {
		if strings.EqualFold(f, folderName) {
			return true
		}
	}
	return false
}

// Override is one detected human correction.
type Override struct {
	MessageID     int64  `json:"message_id"`
	SenderEmail   string `json:"sender_email"`
	RoutedFolder  string `json:"routed_folder"`
	CurrentFolder string `json:"current_folder"`
	InferredType  string `json:"inferred_type,omitempty"`
	RuleAction    string `json:"rule_action"` // created, redirected, deactivated, skipped
}

// RunSummary is the JSON result of one detection run.
type RunSummary struct {
	RunID      int64       `json:"run_id"`
	Scanned    int         `json:"scanned"`
	Detected   int         `json:"detected"`
	Overrides  []*Override `json:"overrides,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// Service scans recently processed messages for human folder moves.
type Service struct {
	policy   Policy
	messages out.MessageRepository
	rules    out.RuleRepository
	folders  out.FolderMapRepository
	mailbox  out.Mailbox
	audits   out.AuditRepository
}

func NewService(
	policy Policy,
	messages out.MessageRepository,
	rules out.RuleRepository,
	folders out.FolderMapRepository,
	mailbox out.Mailbox,
	audits out.AuditRepository,
) *Service {
	return &Service{
		policy:   policy,
		messages: messages,
		rules:    rules,
		folders:  folders,
		mailbox:  mailbox,
		audits:   audits,
	}
}

// DetectOverrides compares the routed folder of each recently processed
// message to its current folder on the provider side. A mismatch is a human
// correction; the corrected type is inferred from the destination folder's
// mapping and written back as a sender rule per policy.
func (s *Service) DetectOverrides(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{RunID: snowflake.ID()}

	msgs, err := s.messages.ListProcessedSince(ctx, s.policy.LookbackHours)
	if err != nil {
		return nil, err
	}

	for _, msg := range msgs {
		summary.Scanned++

		ov, err := s.checkMessage(ctx, msg)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("message %d: %v", msg.ID, err))
			continue
		}
		if ov == nil {
			continue
		}

		summary.Detected++
		summary.Overrides = append(summary.Overrides, ov)
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	s.writeAudit(ctx, summary)

	return summary, nil
}

// checkMessage returns nil when the message sits where the pipeline put it.
func (s *Service) checkMessage(ctx context.Context, msg *domain.Message) (*Override, error) {
	if msg.FolderID == "" {
		return nil, nil
	}

	current, err := s.mailbox.GetMessage(ctx, msg.MessageID)
	if err != nil {
		if errors.Is(err, out.ErrMessageGone) {
			// Deleted by hand; nothing to learn from.
			return nil, nil
		}
		return nil, err
	}

	if current.FolderID == msg.FolderID {
		return nil, nil
	}

	ov := &Override{
		MessageID:    msg.ID,
		SenderEmail:  msg.SenderEmail,
		RoutedFolder: msg.FolderName,
	}

	mapping, err := s.folders.GetByFolderID(ctx, current.FolderID)
	if err != nil {
		return nil, err
	}
	if mapping == nil {
		// Moved to an unmapped folder; record the move but learn nothing.
		ov.CurrentFolder = current.FolderID
		ov.RuleAction = "skipped"
		return ov, nil
	}

	ov.CurrentFolder = mapping.FolderName
	ov.InferredType = mapping.EmailType

	if s.policy.noLearn(mapping.FolderName) {
		ov.RuleAction = "skipped"
		return ov, nil
	}

	action, err := s.applyCorrection(ctx, msg, mapping)
	if err != nil {
		return nil, err
	}
	ov.RuleAction = action

	return ov, nil
}

// applyCorrection creates a sender rule for the corrected type, or resolves
// the conflict with an existing rule per policy.
func (s *Service) applyCorrection(
	ctx context.Context,
	msg *domain.Message,
	mapping *domain.FolderMapping,
) (string, error) {
	sender := strings.ToLower(msg.SenderEmail)

	existing, err := s.rules.GetActiveSenderRule(ctx, sender)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if existing.EmailType == mapping.EmailType {
			return "skipped", nil
		}
		if s.policy.DeactivateExisting {
			if err := s.rules.Deactivate(ctx, existing.ID, domain.RuleSourceOverride); err != nil {
				return "", err
			}
			return "deactivated", nil
		}
		existing.EmailType = mapping.EmailType
		existing.Priority = mapping.DefaultPriority
		existing.ActionBucket = mapping.DefaultBucket
		existing.Source = domain.RuleSourceOverride
		if err := s.rules.Update(ctx, existing); err != nil {
			return "", err
		}
		return "redirected", nil
	}

	rule := &domain.ClassificationRule{
		MatchField:   domain.FieldSenderEmail,
		Operator:     domain.OpEquals,
		MatchValue:   sender,
		EmailType:    mapping.EmailType,
		Priority:     mapping.DefaultPriority,
		ActionBucket: mapping.DefaultBucket,
		Active:       true,
		Source:       domain.RuleSourceOverride,
		Confidence:   1.0,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return "", err
	}

	logger.WithFields(map[string]any{
		"sender":     sender,
		"email_type": mapping.EmailType,
	}).Info("override rule created")

	return "created", nil
}

func (s *Service) writeAudit(ctx context.Context, summary *RunSummary) {
	entry := &domain.AuditEntry{
		ID:        snowflake.ID(),
		RunID:     summary.RunID,
		Handler:   "detect-overrides",
		Action:    "detect_overrides",
		Processed: summary.Detected,
		Errors:    summary.Errors,
		Detail:    map[string]any{"scanned": summary.Scanned},
	}
	if err := s.audits.Write(ctx, entry); err != nil {
		logger.WithError(err).Warn("audit write failed")
	}
}
