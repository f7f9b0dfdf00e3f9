package domain

// =============================================================================
// Email Types
// =============================================================================

// Email types form a closed set. Anything outside it is coerced to
// EmailTypeUnknown before routing.
const (
	EmailTypeClientWorkRequest = "client_work_request"
	EmailTypeVendorInvoice     = "vendor_invoice"
	EmailTypeLeadInquiry       = "lead_inquiry"
	EmailTypeMeetingRequest    = "meeting_request"
	EmailTypeNewsletter        = "newsletter"
	EmailTypeSystemAlert       = "system_alert"
	EmailTypeInternal          = "internal"
	EmailTypeSpam              = "spam"
	EmailTypeUnknown           = "unknown"
)

// ValidEmailTypes is the closed set of classification types.
var ValidEmailTypes = map[string]bool{
	EmailTypeClientWorkRequest: true,
	EmailTypeVendorInvoice:     true,
	EmailTypeLeadInquiry:       true,
	EmailTypeMeetingRequest:    true,
	EmailTypeNewsletter:        true,
	EmailTypeSystemAlert:       true,
	EmailTypeInternal:          true,
	EmailTypeSpam:              true,
	EmailTypeUnknown:           true,
}

// CoerceEmailType maps any string outside the valid set to unknown.
func CoerceEmailType(t string) string {
	if ValidEmailTypes[t] {
		return t
	}
	return EmailTypeUnknown
}

// Priorities
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// Action buckets
const (
	BucketCreateTicket = "create_ticket"
	BucketReview       = "review"
	BucketFileOnly     = "file_only"
	BucketIgnore       = "ignore"
)

// Escalation paths
const (
	EscalationSlack = "slack"
	EscalationHuman = "human_review"
	EscalationNone  = "none"
)

// =============================================================================
// Classification Sources
// =============================================================================

// ClassificationSource records which pipeline stage produced a result.
type ClassificationSource string

const (
	SourceThreadMatch ClassificationSource = "thread_match"
	SourceRule        ClassificationSource = "rule"
	SourceAI          ClassificationSource = "ai"
	SourceFallback    ClassificationSource = "fallback"
)

// =============================================================================
// Classification Result
// =============================================================================

// Classification is the resolved outcome of one pipeline run for a message.
type Classification struct {
	EmailType      string               `json:"email_type"`
	Priority       string               `json:"priority"`
	ActionBucket   string               `json:"action_bucket"`
	Actionable     bool                 `json:"actionable"`
	DueHint        string               `json:"due_hint,omitempty"`
	SuggestedSteps []string             `json:"suggested_actions,omitempty"`
	BMSArea        string               `json:"bms_area,omitempty"`
	LeadQualified  bool                 `json:"lead_qualified"`
	Confidence     float64              `json:"confidence_score"`
	EscalationPath string               `json:"escalation_path,omitempty"`
	Reasoning      string               `json:"reasoning,omitempty"`
	Source         ClassificationSource `json:"source"`
	RuleID         int64                `json:"rule_id,omitempty"`
}

// FallbackClassification is the result applied when every resolver declines.
func FallbackClassification() *Classification {
	return &Classification{
		EmailType:      EmailTypeUnknown,
		Priority:       PriorityNormal,
		ActionBucket:   BucketReview,
		EscalationPath: EscalationNone,
		Source:         SourceFallback,
	}
}

// =============================================================================
// CRM Identity (enrichment result)
// =============================================================================

// CRMIdentity is the partial sender identity resolved from the CRM.
// Any field may be empty; enrichment is best-effort.
type CRMIdentity struct {
	ContactID        string `json:"contact_id,omitempty"`
	CompanyID        string `json:"company_id,omitempty"`
	CompanyName      string `json:"company_name,omitempty"`
	CompanyType      string `json:"company_type,omitempty"`
	IsExistingClient bool   `json:"is_existing_client"`
}
