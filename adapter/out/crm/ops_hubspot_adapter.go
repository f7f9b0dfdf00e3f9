// Package crm provides the HubSpot CRM API adapter.
package crm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
	"bizops_server/pkg/httputil"
	"bizops_server/pkg/logger"
)

const hubspotBaseURL = "https://api.hubapi.com"

// Association type ids from the HubSpot defined catalog.
const (
	assocDealToCompany = 5
)

// =============================================================================
// HubSpot Adapter
// =============================================================================

// HubSpotAdapter implements out.CRM against the HubSpot v3/v4 APIs.
type HubSpotAdapter struct {
	client  *http.Client
	baseURL string
	token   string
	cb      *gobreaker.CircuitBreaker
}

var _ out.CRM = (*HubSpotAdapter)(nil)

// Config holds HubSpot adapter configuration.
type Config struct {
	AccessToken string
	BaseURL     string // override for tests; defaults to the public API
}

// NewHubSpotAdapter creates a new HubSpot adapter.
func NewHubSpotAdapter(cfg *Config) *HubSpotAdapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = hubspotBaseURL
	}

	cbSettings := gobreaker.Settings{
		Name:        "hubspot-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &HubSpotAdapter{
		client:  httputil.HubSpotClient(),
		baseURL: baseURL,
		token:   cfg.AccessToken,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// =============================================================================
// Wire Types
// =============================================================================

type hubspotObject struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

type hubspotListResponse struct {
	Results []hubspotObject `json:"results"`
	Paging  *struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging,omitempty"`
}

type hubspotSearchRequest struct {
	FilterGroups []hubspotFilterGroup `json:"filterGroups"`
	Properties   []string             `json:"properties"`
	Limit        int                  `json:"limit"`
}

type hubspotFilterGroup struct {
	Filters []hubspotFilter `json:"filters"`
}

type hubspotFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

// =============================================================================
// Lookups
// =============================================================================

// SearchContactByEmail finds a contact by exact email. Nil when absent.
func (a *HubSpotAdapter) SearchContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	req := hubspotSearchRequest{
		FilterGroups: []hubspotFilterGroup{{
			Filters: []hubspotFilter{{
				PropertyName: "email",
				Operator:     "EQ",
				Value:        email,
			}},
		}},
		Properties: []string{"email", "firstname", "lastname", "associatedcompanyid"},
		Limit:      1,
	}

	var resp hubspotListResponse
	if err := a.post(ctx, "/crm/v3/objects/contacts/search", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to search contact: %w", err)
	}

	if len(resp.Results) == 0 {
		return nil, nil
	}

	return toContact(&resp.Results[0]), nil
}

// GetContactCompany returns the company associated to a contact via the v4
// association edge. Nil when the contact has no company.
func (a *HubSpotAdapter) GetContactCompany(ctx context.Context, contactID string) (*domain.Company, error) {
	var assocResp struct {
		Results []struct {
			ToObjectID int64 `json:"toObjectId"`
		} `json:"results"`
	}

	path := fmt.Sprintf("/crm/v4/objects/contacts/%s/associations/companies", contactID)
	if err := a.get(ctx, path, &assocResp); err != nil {
		return nil, fmt.Errorf("failed to read contact associations: %w", err)
	}

	if len(assocResp.Results) == 0 {
		return nil, nil
	}

	companyID := strconv.FormatInt(assocResp.Results[0].ToObjectID, 10)
	return a.getCompany(ctx, companyID)
}

// SearchCompanyByDomain finds a company by website domain. Nil when absent.
func (a *HubSpotAdapter) SearchCompanyByDomain(ctx context.Context, companyDomain string) (*domain.Company, error) {
	req := hubspotSearchRequest{
		FilterGroups: []hubspotFilterGroup{{
			Filters: []hubspotFilter{{
				PropertyName: "domain",
				Operator:     "EQ",
				Value:        companyDomain,
			}},
		}},
		Properties: []string{"name", "domain", "type", "lifecyclestage"},
		Limit:      1,
	}

	var resp hubspotListResponse
	if err := a.post(ctx, "/crm/v3/objects/companies/search", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to search company: %w", err)
	}

	if len(resp.Results) == 0 {
		return nil, nil
	}

	return toCompany(&resp.Results[0]), nil
}

func (a *HubSpotAdapter) getCompany(ctx context.Context, companyID string) (*domain.Company, error) {
	var obj hubspotObject
	path := fmt.Sprintf("/crm/v3/objects/companies/%s?properties=name,domain,type,lifecyclestage", companyID)
	if err := a.get(ctx, path, &obj); err != nil {
		return nil, fmt.Errorf("failed to get company %s: %w", companyID, err)
	}
	return toCompany(&obj), nil
}

// =============================================================================
// Incremental Lists
// =============================================================================

// ListCompanies returns one page of companies.
func (a *HubSpotAdapter) ListCompanies(ctx context.Context, after string, limit int) (*out.CRMPage[*domain.Company], error) {
	resp, err := a.listObjects(ctx, domain.ObjectCompanies, after, limit,
		[]string{"name", "domain", "type", "lifecyclestage"})
	if err != nil {
		return nil, err
	}

	page := &out.CRMPage[*domain.Company]{After: nextAfter(resp)}
	for i := range resp.Results {
		page.Results = append(page.Results, toCompany(&resp.Results[i]))
	}
	return page, nil
}

// ListContacts returns one page of contacts.
func (a *HubSpotAdapter) ListContacts(ctx context.Context, after string, limit int) (*out.CRMPage[*domain.Contact], error) {
	resp, err := a.listObjects(ctx, domain.ObjectContacts, after, limit,
		[]string{"email", "firstname", "lastname", "associatedcompanyid"})
	if err != nil {
		return nil, err
	}

	page := &out.CRMPage[*domain.Contact]{After: nextAfter(resp)}
	for i := range resp.Results {
		page.Results = append(page.Results, toContact(&resp.Results[i]))
	}
	return page, nil
}

// ListDeals returns one page of deals.
func (a *HubSpotAdapter) ListDeals(ctx context.Context, after string, limit int) (*out.CRMPage[*domain.Deal], error) {
	resp, err := a.listObjects(ctx, domain.ObjectDeals, after, limit,
		[]string{"dealname", "dealstage", "amount"})
	if err != nil {
		return nil, err
	}

	page := &out.CRMPage[*domain.Deal]{After: nextAfter(resp)}
	for i := range resp.Results {
		page.Results = append(page.Results, toDeal(&resp.Results[i]))
	}
	return page, nil
}

// ListTickets returns one page of tickets.
func (a *HubSpotAdapter) ListTickets(ctx context.Context, after string, limit int) (*out.CRMPage[*domain.Ticket], error) {
	resp, err := a.listObjects(ctx, domain.ObjectTickets, after, limit,
		[]string{"subject", "hs_pipeline_stage"})
	if err != nil {
		return nil, err
	}

	page := &out.CRMPage[*domain.Ticket]{After: nextAfter(resp)}
	for i := range resp.Results {
		page.Results = append(page.Results, toTicket(&resp.Results[i]))
	}
	return page, nil
}

func (a *HubSpotAdapter) listObjects(ctx context.Context, objectType, after string, limit int, properties []string) (*hubspotListResponse, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	for _, p := range properties {
		params.Add("properties", p)
	}
	if after != "" {
		params.Set("after", after)
	}

	var resp hubspotListResponse
	path := fmt.Sprintf("/crm/v3/objects/%s?%s", objectType, params.Encode())
	if err := a.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", objectType, err)
	}
	return &resp, nil
}

func nextAfter(resp *hubspotListResponse) string {
	if resp.Paging == nil {
		return ""
	}
	return resp.Paging.Next.After
}

// =============================================================================
// Associations
// =============================================================================

// BatchReadAssociations reads v4 association edges for up to 100 ids.
func (a *HubSpotAdapter) BatchReadAssociations(ctx context.Context, fromType, toType string, ids []string) ([]*domain.Association, error) {
	type input struct {
		ID string `json:"id"`
	}
	req := struct {
		Inputs []input `json:"inputs"`
	}{}
	for _, id := range ids {
		req.Inputs = append(req.Inputs, input{ID: id})
	}

	var resp struct {
		Results []struct {
			From struct {
				ID string `json:"id"`
			} `json:"from"`
			To []struct {
				ToObjectID int64 `json:"toObjectId"`
			} `json:"to"`
		} `json:"results"`
	}

	path := fmt.Sprintf("/crm/v4/associations/%s/%s/batch/read", fromType, toType)
	if err := a.post(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to batch read associations: %w", err)
	}

	var assocs []*domain.Association
	for _, r := range resp.Results {
		for _, to := range r.To {
			assocs = append(assocs, &domain.Association{
				FromType: fromType,
				FromID:   r.From.ID,
				ToType:   toType,
				ToID:     strconv.FormatInt(to.ToObjectID, 10),
			})
		}
	}

	return assocs, nil
}

// =============================================================================
// Deals
// =============================================================================

// CreateDeal creates a deal associated with a company.
func (a *HubSpotAdapter) CreateDeal(ctx context.Context, req *out.DealCreate) (*domain.Deal, error) {
	type assocType struct {
		Category string `json:"associationCategory"`
		TypeID   int    `json:"associationTypeId"`
	}
	type assoc struct {
		To struct {
			ID string `json:"id"`
		} `json:"to"`
		Types []assocType `json:"types"`
	}

	body := struct {
		Properties   map[string]string `json:"properties"`
		Associations []assoc           `json:"associations,omitempty"`
	}{
		Properties: map[string]string{
			"dealname":  req.Name,
			"dealstage": req.Stage,
			"amount":    strconv.FormatFloat(req.Amount, 'f', 2, 64),
		},
	}

	if req.CompanyID != "" {
		var as assoc
		as.To.ID = req.CompanyID
		as.Types = []assocType{{Category: "HUBSPOT_DEFINED", TypeID: assocDealToCompany}}
		body.Associations = append(body.Associations, as)
	}

	var obj hubspotObject
	if err := a.post(ctx, "/crm/v3/objects/deals", body, &obj); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	deal := toDeal(&obj)
	deal.CompanyID = req.CompanyID
	return deal, nil
}

// =============================================================================
// Entity Mapping
// =============================================================================

func toCompany(obj *hubspotObject) *domain.Company {
	return &domain.Company{
		ID:             obj.ID,
		Name:           obj.Properties["name"],
		Domain:         obj.Properties["domain"],
		Type:           obj.Properties["type"],
		LifecycleStage: obj.Properties["lifecyclestage"],
		SyncedAt:       time.Now().UTC(),
	}
}

func toContact(obj *hubspotObject) *domain.Contact {
	return &domain.Contact{
		ID:        obj.ID,
		Email:     obj.Properties["email"],
		FirstName: obj.Properties["firstname"],
		LastName:  obj.Properties["lastname"],
		CompanyID: obj.Properties["associatedcompanyid"],
		SyncedAt:  time.Now().UTC(),
	}
}

func toDeal(obj *hubspotObject) *domain.Deal {
	amount, _ := strconv.ParseFloat(obj.Properties["amount"], 64)
	return &domain.Deal{
		ID:       obj.ID,
		Name:     obj.Properties["dealname"],
		Stage:    obj.Properties["dealstage"],
		Amount:   amount,
		SyncedAt: time.Now().UTC(),
	}
}

func toTicket(obj *hubspotObject) *domain.Ticket {
	return &domain.Ticket{
		ID:       obj.ID,
		Subject:  obj.Properties["subject"],
		Stage:    obj.Properties["hs_pipeline_stage"],
		SyncedAt: time.Now().UTC(),
	}
}

// =============================================================================
// HTTP helpers
// =============================================================================

func (a *HubSpotAdapter) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+path, nil)
	if err != nil {
		return err
	}

	return a.doRequest(req, result)
}

func (a *HubSpotAdapter) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return a.doRequest(req, result)
}

func (a *HubSpotAdapter) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Authorization", "Bearer "+a.token)

	_, err := a.cb.Execute(func() (interface{}, error) {
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("hubspot API error: %d - %s", resp.StatusCode, string(body))
		}

		if result != nil && resp.StatusCode != http.StatusNoContent {
			return nil, json.NewDecoder(resp.Body).Decode(result)
		}

		return nil, nil
	})

	return err
}
