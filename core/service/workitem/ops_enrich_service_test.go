package workitem

import (
	"context"
	"testing"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

type fakeItems struct {
	orphans []*domain.WorkItem
	linked  map[int64]string // item id -> company id
}

func newFakeItems() *fakeItems {
	return &fakeItems{linked: make(map[int64]string)}
}

func (f *fakeItems) GetByID(_ context.Context, _ int64) (*domain.WorkItem, error) {
	return nil, nil
}
func (f *fakeItems) ListOrphans(_ context.Context, _ int) ([]*domain.WorkItem, error) {
	return f.orphans, nil
}
func (f *fakeItems) Create(_ context.Context, _ *domain.WorkItem) error { return nil }
func (f *fakeItems) SetClient(_ context.Context, id int64, _ int64, companyID string) error {
	f.linked[id] = companyID
	return nil
}

type fakeCRM struct {
	associations map[string]string // ticket id -> company id
	batchCalls   int
}

func (f *fakeCRM) SearchContactByEmail(_ context.Context, _ string) (*domain.Contact, error) {
	return nil, nil
}
func (f *fakeCRM) GetContactCompany(_ context.Context, _ string) (*domain.Company, error) {
	return nil, nil
}
func (f *fakeCRM) SearchCompanyByDomain(_ context.Context, _ string) (*domain.Company, error) {
	return nil, nil
}
func (f *fakeCRM) ListCompanies(_ context.Context, _ string, _ int) (*out.CRMPage[*domain.Company], error) {
	return &out.CRMPage[*domain.Company]{}, nil
}
func (f *fakeCRM) ListContacts(_ context.Context, _ string, _ int) (*out.CRMPage[*domain.Contact], error) {
	return &out.CRMPage[*domain.Contact]{}, nil
}
func (f *fakeCRM) ListDeals(_ context.Context, _ string, _ int) (*out.CRMPage[*domain.Deal], error) {
	return &out.CRMPage[*domain.Deal]{}, nil
}
func (f *fakeCRM) ListTickets(_ context.Context, _ string, _ int) (*out.CRMPage[*domain.Ticket], error) {
	return &out.CRMPage[*domain.Ticket]{}, nil
}
func (f *fakeCRM) BatchReadAssociations(_ context.Context, fromType, _ string, ids []string) ([]*domain.Association, error) {
	f.batchCalls++
	var assocs []*domain.Association
	for _, id := range ids {
		if companyID, ok := f.associations[id]; ok {
			assocs = append(assocs, &domain.Association{
				FromType: fromType, FromID: id,
				ToType: domain.ObjectCompanies, ToID: companyID,
			})
		}
	}
	return assocs, nil
}
func (f *fakeCRM) CreateDeal(_ context.Context, _ *out.DealCreate) (*domain.Deal, error) {
	return nil, nil
}

type fakeCache struct {
	companies map[string]*domain.Company
}

func (f *fakeCache) UpsertCompanies(_ context.Context, _ []*domain.Company) error { return nil }
func (f *fakeCache) GetCompany(_ context.Context, id string) (*domain.Company, error) {
	return f.companies[id], nil
}
func (f *fakeCache) UpsertContacts(_ context.Context, _ []*domain.Contact) error { return nil }
func (f *fakeCache) UpsertDeals(_ context.Context, _ []*domain.Deal) error       { return nil }
func (f *fakeCache) UpsertTickets(_ context.Context, _ []*domain.Ticket) error   { return nil }
func (f *fakeCache) ListTicketsWithoutCompany(_ context.Context, _ int) ([]*domain.Ticket, error) {
	return nil, nil
}
func (f *fakeCache) ListContactsWithoutCompany(_ context.Context, _ int) ([]*domain.Contact, error) {
	return nil, nil
}
func (f *fakeCache) SetTicketCompany(_ context.Context, _, _ string) error  { return nil }
func (f *fakeCache) SetContactCompany(_ context.Context, _, _ string) error { return nil }
func (f *fakeCache) Counts(_ context.Context) (map[string]int, error)       { return nil, nil }

type fakeGraph struct {
	companyFor map[string]string // ticket id -> company id
}

func (f *fakeGraph) MergeObject(_ context.Context, _, _, _ string) error         { return nil }
func (f *fakeGraph) MergeAssociation(_ context.Context, _ *domain.Association) error { return nil }
func (f *fakeGraph) OrphanObjects(_ context.Context, _ string, _ int) ([]string, error) {
	return nil, nil
}
func (f *fakeGraph) CompanyFor(_ context.Context, _, objectID string) (string, error) {
	return f.companyFor[objectID], nil
}

type fakeClients struct {
	byHubSpotID map[string]*domain.Client
	upserted    []*domain.Client
	nextID      int64
}

func newFakeClients() *fakeClients {
	return &fakeClients{byHubSpotID: make(map[string]*domain.Client), nextID: 100}
}

func (f *fakeClients) ListActive(_ context.Context) ([]*domain.Client, error) { return nil, nil }
func (f *fakeClients) GetByID(_ context.Context, _ int64) (*domain.Client, error) {
	return nil, nil
}
func (f *fakeClients) GetByHubSpotID(_ context.Context, id string) (*domain.Client, error) {
	return f.byHubSpotID[id], nil
}
func (f *fakeClients) GetByDomain(_ context.Context, _ string) (*domain.Client, error) {
	return nil, nil
}
func (f *fakeClients) Upsert(_ context.Context, c *domain.Client) (int64, error) {
	f.nextID++
	f.upserted = append(f.upserted, c)
	return f.nextID, nil
}

type fakeAudits struct {
	entries []*domain.AuditEntry
}

func (f *fakeAudits) Write(_ context.Context, entry *domain.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}
func (f *fakeAudits) ListRecent(_ context.Context, _ string, _ int) ([]*domain.AuditEntry, error) {
	return f.entries, nil
}

func TestEnrichOrphans(t *testing.T) {
	items := newFakeItems()
	items.orphans = []*domain.WorkItem{
		{ID: 1, TicketID: "t-1", Title: "Fix login"},
		{ID: 2, TicketID: "t-2", Title: "No association"},
		{ID: 3, Title: "No ticket at all"},
	}
	crm := &fakeCRM{associations: map[string]string{"t-1": "co-1"}}
	cache := &fakeCache{companies: map[string]*domain.Company{
		"co-1": {ID: "co-1", Name: "Acme", Domain: "acme.com"},
	}}
	clients := newFakeClients()
	clients.byHubSpotID["co-1"] = &domain.Client{ID: 42, HubSpotID: "co-1"}
	audits := &fakeAudits{}

	svc := NewService(items, crm, cache, nil, clients, audits)

	summary, err := svc.EnrichOrphans(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Scanned != 3 || summary.Enriched != 1 || summary.Unresolved != 2 {
		t.Errorf("scanned/enriched/unresolved = %d/%d/%d, want 3/1/2",
			summary.Scanned, summary.Enriched, summary.Unresolved)
	}
	if items.linked[1] != "co-1" {
		t.Errorf("linked = %v, want item 1 -> co-1", items.linked)
	}
	// The registered client must be reused, not recreated.
	if len(clients.upserted) != 0 {
		t.Errorf("upserted = %d clients, want 0", len(clients.upserted))
	}
	if len(audits.entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(audits.entries))
	}
}

func TestEnrichOrphans_RegistersUnknownClient(t *testing.T) {
	items := newFakeItems()
	items.orphans = []*domain.WorkItem{{ID: 1, TicketID: "t-1"}}
	crm := &fakeCRM{associations: map[string]string{"t-1": "co-9"}}
	cache := &fakeCache{companies: map[string]*domain.Company{
		"co-9": {ID: "co-9", Name: "Globex", Domain: "globex.com"},
	}}
	clients := newFakeClients()

	svc := NewService(items, crm, cache, nil, clients, &fakeAudits{})

	summary, err := svc.EnrichOrphans(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Enriched != 1 {
		t.Fatalf("Enriched = %d, want 1", summary.Enriched)
	}
	if len(clients.upserted) != 1 {
		t.Fatalf("upserted = %d clients, want 1", len(clients.upserted))
	}
	entry := clients.upserted[0]
	if entry.Name != "Globex" || entry.Domain != "globex.com" || !entry.Active {
		t.Errorf("registry entry = %+v", entry)
	}
}

func TestEnrichOrphans_PrefersGraphEdge(t *testing.T) {
	items := newFakeItems()
	items.orphans = []*domain.WorkItem{{ID: 1, TicketID: "t-1"}}
	crm := &fakeCRM{associations: map[string]string{}}
	graph := &fakeGraph{companyFor: map[string]string{"t-1": "co-1"}}
	cache := &fakeCache{companies: map[string]*domain.Company{}}
	clients := newFakeClients()
	clients.byHubSpotID["co-1"] = &domain.Client{ID: 42, HubSpotID: "co-1"}

	svc := NewService(items, crm, cache, graph, clients, &fakeAudits{})

	summary, err := svc.EnrichOrphans(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Enriched != 1 {
		t.Fatalf("Enriched = %d, want 1", summary.Enriched)
	}
	if crm.batchCalls != 0 {
		t.Errorf("CRM batch calls = %d, want 0 when the graph resolves", crm.batchCalls)
	}
}
