package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

const systemPrompt = `You are an email triage assistant for a small business consultancy. Analyze the email and respond with JSON only.

Email types (pick exactly ONE):
- client_work_request: An existing client asking for work, changes, or support
- vendor_invoice: A bill or invoice from a supplier
- lead_inquiry: A prospective client asking about services
- meeting_request: A request to schedule or change a meeting
- newsletter: Subscribed newsletters and digests
- system_alert: Automated system or monitoring notifications
- internal: Mail between consultancy staff
- spam: Unwanted or suspicious mail
- unknown: Cannot be determined

Business rules:
- Newsletters are never actionable.
- Mail from an existing client asking for anything is client_work_request.
- Invoices are actionable with bucket create_ticket.
- Leads from companies already in the CRM are qualified.
- Only urgent client work or qualified leads escalate to slack.

Respond with this exact JSON format:
{
  "email_type": "one of the types above",
  "priority": "urgent|high|normal|low",
  "action_bucket": "create_ticket|review|file_only|ignore",
  "actionable": true,
  "due_hint": "free text or empty",
  "suggested_actions": ["step1", "step2"],
  "bms_area": "free text or empty",
  "lead_qualified": false,
  "confidence_score": 0.0,
  "escalation_path": "slack|human_review|none",
  "reasoning": "one sentence"
}`

// classifyReply mirrors the completion API's JSON schema. Every optional
// field gets an explicit fallback during validation.
type classifyReply struct {
	EmailType        string   `json:"email_type"`
	Priority         string   `json:"priority"`
	ActionBucket     string   `json:"action_bucket"`
	Actionable       bool     `json:"actionable"`
	DueHint          string   `json:"due_hint"`
	SuggestedActions []string `json:"suggested_actions"`
	BMSArea          string   `json:"bms_area"`
	LeadQualified    bool     `json:"lead_qualified"`
	ConfidenceScore  float64  `json:"confidence_score"`
	EscalationPath   string   `json:"escalation_path"`
	Reasoning        string   `json:"reasoning"`
}

// EmailClassifier implements out.AIClassifier on top of the completion client.
type EmailClassifier struct {
	client *Client
}

var _ out.AIClassifier = (*EmailClassifier)(nil)

// NewEmailClassifier creates a classifier using the given client.
func NewEmailClassifier(client *Client) *EmailClassifier {
	return &EmailClassifier{client: client}
}

// ClassifyEmail sends the fixed prompt and parses the JSON reply.
func (e *EmailClassifier) ClassifyEmail(ctx context.Context, req *out.ClassifyRequest) (*domain.Classification, error) {
	reply, err := e.client.CompleteWithSystem(ctx, systemPrompt, buildUserPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}

	parsed, err := parseReply(reply)
	if err != nil {
		return nil, err
	}

	return toClassification(parsed), nil
}

func buildUserPrompt(req *out.ClassifyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\n", req.SenderEmail)
	fmt.Fprintf(&b, "Domain: %s\n", req.SenderDomain)
	fmt.Fprintf(&b, "Subject: %s\n", req.Subject)

	if req.CRM != nil {
		if req.CRM.CompanyName != "" {
			fmt.Fprintf(&b, "CRM company: %s (type: %s)\n", req.CRM.CompanyName, req.CRM.CompanyType)
		}
		fmt.Fprintf(&b, "Existing client: %t\n", req.CRM.IsExistingClient)
	}

	fmt.Fprintf(&b, "\nBody preview:\n%s", truncate(req.BodyPreview, 2000))
	return b.String()
}

// parseReply strips code fences, extracts the first balanced JSON object and
// unmarshals it. A reply without parseable JSON is a classification failure.
func parseReply(reply string) (*classifyReply, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return nil, fmt.Errorf("reply contains no JSON object")
	}

	var parsed classifyReply
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse classification reply: %w", err)
	}

	return &parsed, nil
}

// extractJSON returns the first balanced {...} block in s, ignoring markdown
// fences. Returns "" when no balanced object exists.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// toClassification validates the reply and substitutes fallbacks for every
// optional field. Unknown email types are coerced, not rejected.
func toClassification(r *classifyReply) *domain.Classification {
	c := &domain.Classification{
		EmailType:      domain.CoerceEmailType(r.EmailType),
		Priority:       r.Priority,
		ActionBucket:   r.ActionBucket,
		Actionable:     r.Actionable,
		DueHint:        r.DueHint,
		SuggestedSteps: r.SuggestedActions,
		BMSArea:        r.BMSArea,
		LeadQualified:  r.LeadQualified,
		Confidence:     r.ConfidenceScore,
		EscalationPath: r.EscalationPath,
		Reasoning:      r.Reasoning,
		Source:         domain.SourceAI,
	}

	switch c.Priority {
	case domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityNormal, domain.PriorityLow:
	default:
		c.Priority = domain.PriorityNormal
	}

	switch c.ActionBucket {
	case domain.BucketCreateTicket, domain.BucketReview, domain.BucketFileOnly, domain.BucketIgnore:
	default:
		c.ActionBucket = domain.BucketReview
	}

	switch c.EscalationPath {
	case domain.EscalationSlack, domain.EscalationHuman, domain.EscalationNone:
	default:
		c.EscalationPath = domain.EscalationNone
	}

	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	return c
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
