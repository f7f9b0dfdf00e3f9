package llm

import (
	"testing"

	"bizops_server/core/domain"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{
			name:  "bare object",
			reply: `{"email_type":"spam"}`,
			want:  `{"email_type":"spam"}`,
		},
		{
			name:  "fenced object",
			reply: "```json\n{\"email_type\":\"spam\"}\n```",
			want:  `{"email_type":"spam"}`,
		},
		{
			name:  "prose around object",
			reply: "Here is my answer:\n{\"email_type\":\"spam\"}\nHope it helps.",
			want:  `{"email_type":"spam"}`,
		},
		{
			name:  "nested braces",
			reply: `{"a":{"b":1},"c":2}`,
			want:  `{"a":{"b":1},"c":2}`,
		},
		{
			name:  "braces inside strings",
			reply: `{"reasoning":"subject was {Invoice}"}`,
			want:  `{"reasoning":"subject was {Invoice}"}`,
		},
		{
			name:  "no json",
			reply: "I cannot classify this email.",
			want:  "",
		},
		{
			name:  "unbalanced",
			reply: `{"email_type":"spam"`,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractJSON(tt.reply)
			if got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseReply_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty", ""},
		{"prose only", "Sorry, I can't help with that."},
		{"broken json", `{"email_type": }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseReply(tt.reply); err == nil {
				t.Error("parseReply() expected error, got nil")
			}
		})
	}
}

func TestToClassification_Fallbacks(t *testing.T) {
	tests := []struct {
		name           string
		reply          classifyReply
		wantType       string
		wantPriority   string
		wantBucket     string
		wantEscalation string
	}{
		{
			name: "valid fields pass through",
			reply: classifyReply{
				EmailType:      "vendor_invoice",
				Priority:       "high",
				ActionBucket:   "create_ticket",
				EscalationPath: "slack",
			},
			wantType:       domain.EmailTypeVendorInvoice,
			wantPriority:   domain.PriorityHigh,
			wantBucket:     domain.BucketCreateTicket,
			wantEscalation: domain.EscalationSlack,
		},
		{
			name: "unknown type coerced",
			reply: classifyReply{
				EmailType: "pizza_order",
				Priority:  "normal",
			},
			wantType:       domain.EmailTypeUnknown,
			wantPriority:   domain.PriorityNormal,
			wantBucket:     domain.BucketReview,
			wantEscalation: domain.EscalationNone,
		},
		{
			name:           "empty fields get fallbacks",
			reply:          classifyReply{EmailType: "newsletter"},
			wantType:       domain.EmailTypeNewsletter,
			wantPriority:   domain.PriorityNormal,
			wantBucket:     domain.BucketReview,
			wantEscalation: domain.EscalationNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toClassification(&tt.reply)
			if got.EmailType != tt.wantType {
				t.Errorf("EmailType = %q, want %q", got.EmailType, tt.wantType)
			}
			if got.Priority != tt.wantPriority {
				t.Errorf("Priority = %q, want %q", got.Priority, tt.wantPriority)
			}
			if got.ActionBucket != tt.wantBucket {
				t.Errorf("ActionBucket = %q, want %q", got.ActionBucket, tt.wantBucket)
			}
			if got.EscalationPath != tt.wantEscalation {
				t.Errorf("EscalationPath = %q, want %q", got.EscalationPath, tt.wantEscalation)
			}
			if got.Source != domain.SourceAI {
				t.Errorf("Source = %q, want %q", got.Source, domain.SourceAI)
			}
		})
	}
}

func TestToClassification_ConfidenceClamped(t *testing.T) {
	low := toClassification(&classifyReply{EmailType: "spam", ConfidenceScore: -0.5})
	if low.Confidence != 0 {
		t.Errorf("Confidence = %f, want 0", low.Confidence)
	}
	high := toClassification(&classifyReply{EmailType: "spam", ConfidenceScore: 1.5})
	if high.Confidence != 1 {
		t.Errorf("Confidence = %f, want 1", high.Confidence)
	}
}
