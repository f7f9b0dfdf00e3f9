package out

import (
	"context"

	"bizops_server/core/domain"
)

// CRMPage is one page of objects returned by an incremental list call.
type CRMPage[T any] struct {
	Results []T
	After   string // empty when no more pages
}

// DealCreate is the request to create a CRM deal.
type DealCreate struct {
	Name      string
	Stage     string
	Amount    float64
	CompanyID string
}

// CRM is the outbound port for the CRM API.
type CRM interface {
	// SearchContactByEmail finds a contact by exact email. Nil when absent.
	SearchContactByEmail(ctx context.Context, email string) (*domain.Contact, error)

	// GetContactCompany returns the company associated to a contact.
	// Nil when the contact has no company association.
	GetContactCompany(ctx context.Context, contactID string) (*domain.Company, error)

	// SearchCompanyByDomain finds a company by website domain. Nil when absent.
	SearchCompanyByDomain(ctx context.Context, domain string) (*domain.Company, error)

	// Incremental list calls used by the cache sync handler.
	ListCompanies(ctx context.Context, after string, limit int) (*CRMPage[*domain.Company], error)
	ListContacts(ctx context.Context, after string, limit int) (*CRMPage[*domain.Contact], error)
	ListDeals(ctx context.Context, after string, limit int) (*CRMPage[*domain.Deal], error)
	ListTickets(ctx context.Context, after string, limit int) (*CRMPage[*domain.Ticket], error)

	// BatchReadAssociations reads v4 association edges for up to 100 ids
	// per call.
	BatchReadAssociations(ctx context.Context, fromType, toType string, ids []string) ([]*domain.Association, error)

	// CreateDeal creates a deal and associates it with a company.
	CreateDeal(ctx context.Context, req *DealCreate) (*domain.Deal, error)
}
