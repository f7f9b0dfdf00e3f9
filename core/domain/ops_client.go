package domain

import "time"

// Client is one client-registry entry: a known CRM company with billing
// metadata. Upserted opportunistically when new companies are discovered.
type Client struct {
	ID           int64     `json:"id"`
	HubSpotID    string    `json:"hubspot_id"`
	Name         string    `json:"name"`
	Domain       string    `json:"domain"`
	BillingModel string    `json:"billing_model"` // retainer, hourly, project
	Internal     bool      `json:"internal"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Billing models
const (
	BillingRetainer = "retainer"
	BillingHourly   = "hourly"
	BillingProject  = "project"
)
