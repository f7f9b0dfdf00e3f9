package domain

import "time"

// FolderMapping is one row of the static type-to-folder routing table.
// Read-only within a run.
type FolderMapping struct {
	ID         int64  `json:"id"`
	EmailType  string `json:"email_type"`
	FolderID   string `json:"folder_id"`
	FolderName string `json:"folder_name"`

	// Defaults applied when the classifier left a field empty
	DefaultPriority string `json:"default_priority"`
	DefaultBucket   string `json:"default_bucket"`
	DefaultArea     string `json:"default_area"`

	RequiresAction bool `json:"requires_action"`
	AutoAssociate  bool `json:"auto_associate"` // attempt CRM auto-association
	Active         bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
