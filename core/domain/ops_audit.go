package domain

import "time"

// AuditEntry is one append-only automation audit row. Every handler run
// writes exactly one entry summarizing counts and errors.
type AuditEntry struct {
	ID        int64          `json:"id"`
	RunID     int64          `json:"run_id"`
	Handler   string         `json:"handler"`
	Action    string         `json:"action"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Errors    []string       `json:"errors,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
