package domain

import (
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// Rule Match Fields and Operators
// =============================================================================

// MatchField names the message attribute a rule inspects.
type MatchField string

const (
	FieldSenderEmail  MatchField = "sender_email"
	FieldSenderDomain MatchField = "sender_domain"
	FieldSubject      MatchField = "subject"
	FieldBody         MatchField = "body"
)

// Operator is the closed set of rule comparison strategies.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpRegex      Operator = "regex"
)

// matchFns dispatches operators via a lookup table. Both operands arrive
// case-folded except for regex, which matches against the folded field with
// the pattern as written. A pattern that fails to compile is a non-match.
var matchFns = map[Operator]func(field, value string) bool{
	OpEquals:     func(field, value string) bool { return field == value },
	OpContains:   func(field, value string) bool { return strings.Contains(field, value) },
	OpStartsWith: func(field, value string) bool { return strings.HasPrefix(field, value) },
	OpEndsWith:   func(field, value string) bool { return strings.HasSuffix(field, value) },
	OpRegex: func(field, value string) bool {
		re, err := regexp.Compile(value)
		if err != nil {
			return false
		}
		return re.MatchString(field)
	},
}

// ValidOperator reports whether op is a known operator.
func ValidOperator(op Operator) bool {
	_, ok := matchFns[op]
	return ok
}

// =============================================================================
// Classification Rule
// =============================================================================

// RuleSource records how a rule came to exist.
type RuleSource string

const (
	RuleSourceManual      RuleSource = "manual"
	RuleSourceAutoLearned RuleSource = "auto_learned"
	RuleSourceOverride    RuleSource = "human_override"
)

// ClassificationRule maps a field match to a classification outcome.
// Rules are evaluated in ascending Priority order; first match wins.
type ClassificationRule struct {
	ID         int64      `json:"id"`
	MatchField MatchField `json:"match_field"`
	Operator   Operator   `json:"operator"`
	MatchValue string     `json:"match_value"`

	EmailType    string `json:"email_type"`
	Priority     string `json:"priority"`      // resulting message priority
	ActionBucket string `json:"action_bucket"` // resulting action bucket

	RulePriority int        `json:"rule_priority"` // evaluation order, ascending
	Active       bool       `json:"active"`
	Source       RuleSource `json:"source"`
	Confidence   float64    `json:"confidence"`

	MatchCount    int        `json:"match_count"`
	LastMatchedAt *time.Time `json:"last_matched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// fieldOf extracts the configured attribute from a message, case-folded.
func fieldOf(m *Message, field MatchField) string {
	switch field {
	case FieldSenderEmail:
		return strings.ToLower(m.SenderEmail)
	case FieldSenderDomain:
		return strings.ToLower(m.SenderDomain)
	case FieldSubject:
		return strings.ToLower(m.Subject)
	case FieldBody:
		return strings.ToLower(m.BodyPreview)
	default:
		return ""
	}
}

// Matches reports whether the rule matches the message.
// Unknown operators and regex compile failures are non-matches.
func (r *ClassificationRule) Matches(m *Message) bool {
	fn, ok := matchFns[r.Operator]
	if !ok {
		return false
	}

	field := fieldOf(m, r.MatchField)
	if field == "" {
		return false
	}

	value := r.MatchValue
	if r.Operator != OpRegex {
		value = strings.ToLower(value)
	}

	return fn(field, value)
}
