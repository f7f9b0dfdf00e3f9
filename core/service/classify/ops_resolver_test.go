package classify

import (
	"context"
	"errors"
	"testing"

	"bizops_server/core/domain"
)

func TestFold(t *testing.T) {
	produce := func(emailType string) Resolver {
		return Resolver{
			Name: "produce",
			Fn: func(_ context.Context, _ *RunContext) (*domain.Classification, error) {
				return &domain.Classification{EmailType: emailType}, nil
			},
		}
	}
	decline := Resolver{
		Name: "decline",
		Fn: func(_ context.Context, _ *RunContext) (*domain.Classification, error) {
			return nil, nil
		},
	}
	fail := Resolver{
		Name: "fail",
		Fn: func(_ context.Context, _ *RunContext) (*domain.Classification, error) {
			return nil, errors.New("stage broke")
		},
	}

	tests := []struct {
		name      string
		resolvers []Resolver
		wantType  string
		wantErrs  int
	}{
		{
			name:      "first producer wins",
			resolvers: []Resolver{produce(domain.EmailTypeNewsletter), produce(domain.EmailTypeSpam)},
			wantType:  domain.EmailTypeNewsletter,
		},
		{
			name:      "declining stage falls through",
			resolvers: []Resolver{decline, produce(domain.EmailTypeInternal)},
			wantType:  domain.EmailTypeInternal,
		},
		{
			name:      "erroring stage counts as decline",
			resolvers: []Resolver{fail, produce(domain.EmailTypeSpam)},
			wantType:  domain.EmailTypeSpam,
			wantErrs:  1,
		},
		{
			name:      "all decline lands on unknown fallback",
			resolvers: []Resolver{decline, fail},
			wantType:  domain.EmailTypeUnknown,
			wantErrs:  1,
		},
		{
			name:      "empty chain lands on unknown fallback",
			resolvers: nil,
			wantType:  domain.EmailTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &RunContext{Msg: testMessage(1, "a@b.com", "x"), Snapshot: testSnapshot(nil, nil)}

			result, errs := Fold(context.Background(), rc, tt.resolvers)

			if result.EmailType != tt.wantType {
				t.Errorf("EmailType = %q, want %q", result.EmailType, tt.wantType)
			}
			if len(errs) != tt.wantErrs {
				t.Errorf("errors = %d, want %d", len(errs), tt.wantErrs)
			}
		})
	}
}

func TestFold_FallbackFields(t *testing.T) {
	rc := &RunContext{Msg: testMessage(1, "a@b.com", "x"), Snapshot: testSnapshot(nil, nil)}

	result, _ := Fold(context.Background(), rc, nil)

	if result.Priority != domain.PriorityNormal {
		t.Errorf("Priority = %q, want %q", result.Priority, domain.PriorityNormal)
	}
	if result.ActionBucket != domain.BucketReview {
		t.Errorf("ActionBucket = %q, want %q", result.ActionBucket, domain.BucketReview)
	}
	if result.Source != domain.SourceFallback {
		t.Errorf("Source = %q, want %q", result.Source, domain.SourceFallback)
	}
}

func TestThreadResolver(t *testing.T) {
	terminalPrior := &domain.Message{
		ID:           10,
		Status:       domain.StatusFiled,
		EmailType:    domain.EmailTypeVendorInvoice,
		Priority:     domain.PriorityHigh,
		ActionBucket: domain.BucketFileOnly,
		Confidence:   0.88,
	}

	tests := []struct {
		name           string
		conversationID string
		prior          *domain.Message
		wantHit        bool
		wantConfidence float64
	}{
		{
			name:           "no conversation id declines",
			conversationID: "",
			prior:          terminalPrior,
			wantHit:        false,
		},
		{
			name:           "no prior declines",
			conversationID: "conv-1",
			prior:          nil,
			wantHit:        false,
		},
		{
			name:           "non-terminal prior declines",
			conversationID: "conv-1",
			prior:          &domain.Message{ID: 10, Status: domain.StatusNew},
			wantHit:        false,
		},
		{
			name:           "terminal prior inherits",
			conversationID: "conv-1",
			prior:          terminalPrior,
			wantHit:        true,
			wantConfidence: 0.88,
		},
		{
			name:           "zero prior confidence uses default",
			conversationID: "conv-1",
			prior: &domain.Message{
				ID:        10,
				Status:    domain.StatusFiled,
				EmailType: domain.EmailTypeInternal,
			},
			wantHit:        true,
			wantConfidence: 0.95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := newFakeMessages()
			if tt.prior != nil {
				messages.threadPriors["conv-1"] = tt.prior
			}

			msg := testMessage(1, "a@b.com", "re: invoice")
			msg.ConversationID = tt.conversationID
			rc := &RunContext{Msg: msg, Snapshot: testSnapshot(nil, nil)}

			result, err := threadResolver(messages, 0.95).Fn(context.Background(), rc)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !tt.wantHit {
				if result != nil {
					t.Fatalf("expected decline, got %+v", result)
				}
				return
			}

			if result == nil {
				t.Fatal("expected a classification, got decline")
			}
			if result.Source != domain.SourceThreadMatch {
				t.Errorf("Source = %q, want %q", result.Source, domain.SourceThreadMatch)
			}
			if result.EmailType != tt.prior.EmailType {
				t.Errorf("EmailType = %q, want %q", result.EmailType, tt.prior.EmailType)
			}
			if result.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestEnrichResolver(t *testing.T) {
	crm := newFakeCRM()
	crm.contactsByEmail["jane@acme.com"] = &domain.Contact{ID: "c-1", Email: "jane@acme.com"}
	crm.companyByContact["c-1"] = &domain.Company{ID: "co-1", Name: "Acme", Type: "CUSTOMER"}

	msg := testMessage(1, "jane@acme.com", "update")
	rc := &RunContext{Msg: msg, Snapshot: testSnapshot(nil, nil)}

	result, err := enrichResolver(crm).Fn(context.Background(), rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("enrichment must always decline, got %+v", result)
	}

	if rc.CRM == nil {
		t.Fatal("expected CRM identity on the run context")
	}
	if rc.CRM.ContactID != "c-1" || rc.CRM.CompanyID != "co-1" {
		t.Errorf("identity = %+v, want contact c-1 company co-1", rc.CRM)
	}
	if !rc.CRM.IsExistingClient {
		t.Error("CUSTOMER company type should mark an existing client")
	}
}

func TestEnrichResolver_DomainFallback(t *testing.T) {
	crm := newFakeCRM()
	crm.companyByDomain["acme.com"] = &domain.Company{ID: "co-2", Name: "Acme", Type: "PROSPECT"}

	msg := testMessage(1, "new.hire@acme.com", "hello")
	rc := &RunContext{Msg: msg, Snapshot: testSnapshot(nil, nil)}

	if _, err := enrichResolver(crm).Fn(context.Background(), rc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rc.CRM.CompanyID != "co-2" {
		t.Errorf("CompanyID = %q, want co-2", rc.CRM.CompanyID)
	}
	if rc.CRM.IsExistingClient {
		t.Error("PROSPECT company with unknown domain should not be an existing client")
	}
}

func TestEnrichResolver_LookupFailureIsNonFatal(t *testing.T) {
	crm := newFakeCRM()
	crm.contactErr = errors.New("crm down")

	rc := &RunContext{Msg: testMessage(1, "a@b.com", "x"), Snapshot: testSnapshot(nil, nil)}

	result, err := enrichResolver(crm).Fn(context.Background(), rc)
	if err != nil {
		t.Fatalf("lookup failure must not fail the stage: %v", err)
	}
	if result != nil {
		t.Fatal("enrichment must decline")
	}
	if rc.CRM == nil {
		t.Fatal("expected an empty identity even on lookup failure")
	}
}
