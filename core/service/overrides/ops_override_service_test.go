package overrides

import (
	"context"
	"testing"
	"time"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

type fakeMessages struct {
	processed []*domain.Message
}

func (f *fakeMessages) GetByID(_ context.Context, _ int64) (*domain.Message, error) {
	return nil, nil
}
func (f *fakeMessages) ListNew(_ context.Context, _ int) ([]*domain.Message, error) {
	return nil, nil
}
func (f *fakeMessages) LatestClassifiedInThread(_ context.Context, _ string, _ int64) (*domain.Message, error) {
	return nil, nil
}
func (f *fakeMessages) ListProcessedSince(_ context.Context, _ int) ([]*domain.Message, error) {
	return f.processed, nil
}
func (f *fakeMessages) UpdateClassification(_ context.Context, _ *domain.Message) error {
	return nil
}
func (f *fakeMessages) MarkError(_ context.Context, _ int64, _ string) error { return nil }

type fakeRules struct {
	senderRules map[string]*domain.ClassificationRule
	created     []*domain.ClassificationRule
	updated     []*domain.ClassificationRule
	deactivated []int64
}

func newFakeRules() *fakeRules {
	return &fakeRules{senderRules: make(map[string]*domain.ClassificationRule)}
}

func (f *fakeRules) ListActive(_ context.Context) ([]*domain.ClassificationRule, error) {
	return nil, nil
}
func (f *fakeRules) GetActiveSenderRule(_ context.Context, sender string) (*domain.ClassificationRule, error) {
	return f.senderRules[sender], nil
}
func (f *fakeRules) Create(_ context.Context, rule *domain.ClassificationRule) error {
	f.created = append(f.created, rule)
	return nil
}
func (f *fakeRules) Update(_ context.Context, rule *domain.ClassificationRule) error {
	f.updated = append(f.updated, rule)
	return nil
}
func (f *fakeRules) Deactivate(_ context.Context, id int64, _ domain.RuleSource) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}
func (f *fakeRules) IncrementMatch(_ context.Context, _ int64) error { return nil }

type fakeFolders struct {
	byFolderID map[string]*domain.FolderMapping
}

func (f *fakeFolders) ListActive(_ context.Context) ([]*domain.FolderMapping, error) {
	return nil, nil
}
func (f *fakeFolders) GetByFolderID(_ context.Context, id string) (*domain.FolderMapping, error) {
	return f.byFolderID[id], nil
}

type fakeMailbox struct {
	locations map[string]string // provider message id -> current folder id
}

func (f *fakeMailbox) GetMessage(_ context.Context, messageID string) (*out.MailboxMessage, error) {
	folder, ok := f.locations[messageID]
	if !ok {
		return nil, out.ErrMessageGone
	}
	return &out.MailboxMessage{ID: messageID, FolderID: folder}, nil
}
func (f *fakeMailbox) MoveMessage(_ context.Context, _, _ string) error { return nil }
func (f *fakeMailbox) ListFolders(_ context.Context) ([]*out.MailFolder, error) {
	return nil, nil
}
func (f *fakeMailbox) Search(_ context.Context, _ string, _ int) ([]*out.MailboxMessage, error) {
	return nil, nil
}

type fakeAudits struct {
	entries []*domain.AuditEntry
}

func (f *fakeAudits) Write(_ context.Context, entry *domain.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeAudits) ListRecent(_ context.Context, _ string, _ int) ([]*domain.AuditEntry, error) {
	return f.entries, nil
}

func processedMessage(id int64, sender, providerID, folderID, folderName string) *domain.Message {
	now := time.Now()
	return &domain.Message{
		ID:          id,
		MessageID:   providerID,
		SenderEmail: sender,
		Status:      domain.StatusFiled,
		EmailType:   domain.EmailTypeNewsletter,
		FolderID:    folderID,
		FolderName:  folderName,
		ProcessedAt: &now,
	}
}

func defaultPolicy() Policy {
	return Policy{
		LookbackHours:  48,
		NoLearnFolders: []string{"Action Required"},
	}
}

func TestDetectOverrides(t *testing.T) {
	invoiceMapping := &domain.FolderMapping{
		EmailType:       domain.EmailTypeVendorInvoice,
		FolderID:        "f-inv",
		FolderName:      "Invoices",
		DefaultPriority: domain.PriorityHigh,
		DefaultBucket:   domain.BucketCreateTicket,
	}
	actionMapping := &domain.FolderMapping{
		EmailType:  domain.EmailTypeClientWorkRequest,
		FolderID:   "f-action",
		FolderName: "Action Required",
	}

	tests := []struct {
		name           string
		policy         Policy
		msg            *domain.Message
		currentFolder  string // empty = message gone
		existingRule   *domain.ClassificationRule
		wantDetected   int
		wantRuleAction string
		wantCreated    int
		wantUpdated    int
		wantDeactive   int
	}{
		{
			name:          "message still in routed folder",
			policy:        defaultPolicy(),
			msg:           processedMessage(1, "news@letters.io", "m-1", "f-news", "Newsletters"),
			currentFolder: "f-news",
			wantDetected:  0,
		},
		{
			name:           "move to mapped folder creates rule",
			policy:         defaultPolicy(),
			msg:            processedMessage(1, "ap@vendor.com", "m-1", "f-news", "Newsletters"),
			currentFolder:  "f-inv",
			wantDetected:   1,
			wantRuleAction: "created",
			wantCreated:    1,
		},
		{
			name:           "no-learn folder is skipped",
			policy:         defaultPolicy(),
			msg:            processedMessage(1, "ap@vendor.com", "m-1", "f-news", "Newsletters"),
			currentFolder:  "f-action",
			wantDetected:   1,
			wantRuleAction: "skipped",
		},
		{
			name:           "unmapped destination learns nothing",
			policy:         defaultPolicy(),
			msg:            processedMessage(1, "ap@vendor.com", "m-1", "f-news", "Newsletters"),
			currentFolder:  "f-mystery",
			wantDetected:   1,
			wantRuleAction: "skipped",
		},
		{
			name:   "contradicted rule redirects by default",
			policy: defaultPolicy(),
			msg:    processedMessage(1, "ap@vendor.com", "m-1", "f-news", "Newsletters"),
			existingRule: &domain.ClassificationRule{
				ID: 5, EmailType: domain.EmailTypeNewsletter, Active: true,
			},
			currentFolder:  "f-inv",
			wantDetected:   1,
			wantRuleAction: "redirected",
			wantUpdated:    1,
		},
		{
			name: "contradicted rule deactivates when policy says so",
			policy: Policy{
				LookbackHours:      48,
				DeactivateExisting: true,
			},
			msg: processedMessage(1, "ap@vendor.com", "m-1", "f-news", "Newsletters"),
			existingRule: &domain.ClassificationRule{
				ID: 5, EmailType: domain.EmailTypeNewsletter, Active: true,
			},
			currentFolder:  "f-inv",
			wantDetected:   1,
			wantRuleAction: "deactivated",
			wantDeactive:   1,
		},
		{
			name:   "agreeing rule is left alone",
			policy: defaultPolicy(),
			msg:    processedMessage(1, "ap@vendor.com", "m-1", "f-news", "Newsletters"),
			existingRule: &domain.ClassificationRule{
				ID: 5, EmailType: domain.EmailTypeVendorInvoice, Active: true,
			},
			currentFolder:  "f-inv",
			wantDetected:   1,
			wantRuleAction: "skipped",
		},
		{
			name:         "deleted message is ignored",
			policy:       defaultPolicy(),
			msg:          processedMessage(1, "ap@vendor.com", "m-1", "f-news", "Newsletters"),
			wantDetected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := &fakeMessages{processed: []*domain.Message{tt.msg}}
			rules := newFakeRules()
			if tt.existingRule != nil {
				rules.senderRules["ap@vendor.com"] = tt.existingRule
			}
			folders := &fakeFolders{byFolderID: map[string]*domain.FolderMapping{
				"f-inv":    invoiceMapping,
				"f-action": actionMapping,
			}}
			mailbox := &fakeMailbox{locations: map[string]string{}}
			if tt.currentFolder != "" {
				mailbox.locations["m-1"] = tt.currentFolder
			}
			audits := &fakeAudits{}

			svc := NewService(tt.policy, messages, rules, folders, mailbox, audits)

			summary, err := svc.DetectOverrides(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if summary.Detected != tt.wantDetected {
				t.Fatalf("Detected = %d, want %d", summary.Detected, tt.wantDetected)
			}
			if tt.wantDetected > 0 {
				got := summary.Overrides[0].RuleAction
				if got != tt.wantRuleAction {
					t.Errorf("RuleAction = %q, want %q", got, tt.wantRuleAction)
				}
			}
			if len(rules.created) != tt.wantCreated {
				t.Errorf("created = %d, want %d", len(rules.created), tt.wantCreated)
			}
			if len(rules.updated) != tt.wantUpdated {
				t.Errorf("updated = %d, want %d", len(rules.updated), tt.wantUpdated)
			}
			if len(rules.deactivated) != tt.wantDeactive {
				t.Errorf("deactivated = %d, want %d", len(rules.deactivated), tt.wantDeactive)
			}
			if len(audits.entries) != 1 {
				t.Errorf("audit entries = %d, want 1", len(audits.entries))
			}
		})
	}
}

func TestDetectOverrides_CreatedRuleShape(t *testing.T) {
	messages := &fakeMessages{processed: []*domain.Message{
		processedMessage(1, "AP@Vendor.com", "m-1", "f-news", "Newsletters"),
	}}
	rules := newFakeRules()
	folders := &fakeFolders{byFolderID: map[string]*domain.FolderMapping{
		"f-inv": {
			EmailType:       domain.EmailTypeVendorInvoice,
			FolderID:        "f-inv",
			FolderName:      "Invoices",
			DefaultPriority: domain.PriorityHigh,
			DefaultBucket:   domain.BucketCreateTicket,
		},
	}}
	mailbox := &fakeMailbox{locations: map[string]string{"m-1": "f-inv"}}

	svc := NewService(defaultPolicy(), messages, rules, folders, mailbox, &fakeAudits{})

	if _, err := svc.DetectOverrides(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rules.created) != 1 {
		t.Fatalf("created = %d rules, want 1", len(rules.created))
	}
	rule := rules.created[0]
	if rule.MatchValue != "ap@vendor.com" {
		t.Errorf("MatchValue = %q, want lowercased sender", rule.MatchValue)
	}
	if rule.Source != domain.RuleSourceOverride {
		t.Errorf("Source = %q, want %q", rule.Source, domain.RuleSourceOverride)
	}
	if rule.Priority != domain.PriorityHigh || rule.ActionBucket != domain.BucketCreateTicket {
		t.Errorf("rule outcome = %s/%s, want mapping defaults", rule.Priority, rule.ActionBucket)
	}
	if rule.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", rule.Confidence)
	}
}
