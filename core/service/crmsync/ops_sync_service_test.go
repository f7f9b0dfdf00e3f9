package crmsync

import (
	"context"
	"errors"
	"testing"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

type fakeCRM struct {
	companyPages [][]*domain.Company
	ticketPages  [][]*domain.Ticket
	companyCalls int
	ticketCalls  int
	listErr      error
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
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.companyCalls >= len(f.companyPages) {
		return &out.CRMPage[*domain.Company]{}, nil
	}
	page := f.companyPages[f.companyCalls]
	f.companyCalls++
	after := ""
	if f.companyCalls < len(f.companyPages) {
		after = "cursor-" + string(rune('0'+f.companyCalls))
	}
	return &out.CRMPage[*domain.Company]{Results: page, After: after}, nil
}

func (f *fakeCRM) ListContacts(_ context.Context, _ string, _ int) (*out.CRMPage[*domain.Contact], error) {
	return &out.CRMPage[*domain.Contact]{}, nil
}

func (f *fakeCRM) ListDeals(_ context.Context, _ string, _ int) (*out.CRMPage[*domain.Deal], error) {
	return &out.CRMPage[*domain.Deal]{}, nil
}

func (f *fakeCRM) ListTickets(_ context.Context, _ string, _ int) (*out.CRMPage[*domain.Ticket], error) {
	if f.ticketCalls >= len(f.ticketPages) {
		return &out.CRMPage[*domain.Ticket]{}, nil
	}
	page := f.ticketPages[f.ticketCalls]
	f.ticketCalls++
	after := ""
	if f.ticketCalls < len(f.ticketPages) {
		after = "t-cursor"
	}
	return &out.CRMPage[*domain.Ticket]{Results: page, After: after}, nil
}

func (f *fakeCRM) BatchReadAssociations(_ context.Context, _, _ string, _ []string) ([]*domain.Association, error) {
	return nil, nil
}

func (f *fakeCRM) CreateDeal(_ context.Context, _ *out.DealCreate) (*domain.Deal, error) {
	return nil, nil
}

type fakeCache struct {
	companies []*domain.Company
	tickets   []*domain.Ticket
}

func (f *fakeCache) UpsertCompanies(_ context.Context, cs []*domain.Company) error {
	f.companies = append(f.companies, cs...)
	return nil
}
func (f *fakeCache) GetCompany(_ context.Context, id string) (*domain.Company, error) {
	for _, c := range f.companies {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}
func (f *fakeCache) UpsertContacts(_ context.Context, _ []*domain.Contact) error { return nil }
func (f *fakeCache) UpsertDeals(_ context.Context, _ []*domain.Deal) error       { return nil }
func (f *fakeCache) UpsertTickets(_ context.Context, ts []*domain.Ticket) error {
	f.tickets = append(f.tickets, ts...)
	return nil
}
func (f *fakeCache) ListTicketsWithoutCompany(_ context.Context, _ int) ([]*domain.Ticket, error) {
	return nil, nil
}
func (f *fakeCache) ListContactsWithoutCompany(_ context.Context, _ int) ([]*domain.Contact, error) {
	return nil, nil
}
func (f *fakeCache) SetTicketCompany(_ context.Context, _, _ string) error  { return nil }
func (f *fakeCache) SetContactCompany(_ context.Context, _, _ string) error { return nil }
func (f *fakeCache) Counts(_ context.Context) (map[string]int, error) {
	return map[string]int{
		domain.ObjectCompanies: len(f.companies),
		domain.ObjectTickets:   len(f.tickets),
	}, nil
}

type fakeCursors struct {
	states map[string]*domain.SyncState
	resets []string
}

func newFakeCursors() *fakeCursors {
	return &fakeCursors{states: make(map[string]*domain.SyncState)}
}

func (f *fakeCursors) Get(_ context.Context, objectType string) (*domain.SyncState, error) {
	return f.states[objectType], nil
}
func (f *fakeCursors) GetAll(_ context.Context) ([]*domain.SyncState, error) {
	var all []*domain.SyncState
	for _, s := range f.states {
		all = append(all, s)
	}
	return all, nil
}
func (f *fakeCursors) Save(_ context.Context, state *domain.SyncState) error {
	f.states[state.ObjectType] = state
	return nil
}
func (f *fakeCursors) Reset(_ context.Context, objectType string) error {
	f.resets = append(f.resets, objectType)
	delete(f.states, objectType)
	return nil
}

type fakeGraph struct {
	nodes []string
	edges []*domain.Association
}

func (f *fakeGraph) MergeObject(_ context.Context, objectType, id, _ string) error {
	f.nodes = append(f.nodes, objectType+":"+id)
	return nil
}
func (f *fakeGraph) MergeAssociation(_ context.Context, assoc *domain.Association) error {
	f.edges = append(f.edges, assoc)
	return nil
}
func (f *fakeGraph) OrphanObjects(_ context.Context, _ string, _ int) ([]string, error) {
	return nil, nil
}
func (f *fakeGraph) CompanyFor(_ context.Context, _, _ string) (string, error) {
	return "", nil
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

func TestSyncObject_PagesToCompletion(t *testing.T) {
	crm := &fakeCRM{
		companyPages: [][]*domain.Company{
			{{ID: "co-1", Name: "Acme"}, {ID: "co-2", Name: "Globex"}},
			{{ID: "co-3", Name: "Initech"}},
		},
	}
	cache := &fakeCache{}
	cursors := newFakeCursors()
	graph := &fakeGraph{}
	audits := &fakeAudits{}

	svc := NewService(Config{PageLimit: 2}, crm, cache, cursors, graph, audits, nil)

	summary, err := svc.SyncObject(context.Background(), domain.ObjectCompanies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(summary.Objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(summary.Objects))
	}
	obj := summary.Objects[0]
	if obj.Synced != 3 || obj.Pages != 2 {
		t.Errorf("synced/pages = %d/%d, want 3/2", obj.Synced, obj.Pages)
	}
	if len(cache.companies) != 3 {
		t.Errorf("cached = %d companies, want 3", len(cache.companies))
	}
	if len(graph.nodes) != 3 {
		t.Errorf("graph nodes = %d, want 3", len(graph.nodes))
	}

	// Cursor cleared after exhausting the pages.
	state := cursors.states[domain.ObjectCompanies]
	if state == nil || state.Cursor != "" {
		t.Errorf("final cursor = %+v, want empty", state)
	}

	if len(audits.entries) != 1 || audits.entries[0].Action != "sync_companies" {
		t.Errorf("audit = %+v", audits.entries)
	}
}

func TestSyncObject_MirrorsCompanyEdges(t *testing.T) {
	crm := &fakeCRM{
		ticketPages: [][]*domain.Ticket{
			{
				{ID: "t-1", Subject: "Broken build", CompanyID: "co-1"},
				{ID: "t-2", Subject: "No company yet"},
			},
		},
	}
	graph := &fakeGraph{}

	svc := NewService(Config{PageLimit: 100}, crm, &fakeCache{}, newFakeCursors(), graph, &fakeAudits{}, nil)

	if _, err := svc.SyncObject(context.Background(), domain.ObjectTickets); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(graph.edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(graph.edges))
	}
	edge := graph.edges[0]
	if edge.FromID != "t-1" || edge.ToID != "co-1" || edge.ToType != domain.ObjectCompanies {
		t.Errorf("edge = %+v", edge)
	}
}

func TestSyncAll_CollectsPerObjectErrors(t *testing.T) {
	crm := &fakeCRM{listErr: errors.New("hubspot 502")}
	audits := &fakeAudits{}

	svc := NewService(Config{PageLimit: 100}, crm, &fakeCache{}, newFakeCursors(), nil, audits, nil)

	summary, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("per-object failures must not fail the run: %v", err)
	}

	// Companies fail, the remaining object types still run.
	if len(summary.Errors) != 1 {
		t.Errorf("Errors = %v, want one companies failure", summary.Errors)
	}
	if len(summary.Objects) != len(domain.SyncObjectTypes) {
		t.Errorf("objects = %d, want %d", len(summary.Objects), len(domain.SyncObjectTypes))
	}
	if audits.entries[0].Action != "sync_all" {
		t.Errorf("audit action = %q", audits.entries[0].Action)
	}
}

func TestSyncObject_ResumesFromSavedCursor(t *testing.T) {
	crm := &fakeCRM{
		companyPages: [][]*domain.Company{
			{{ID: "co-3", Name: "Initech"}},
		},
	}
	cursors := newFakeCursors()
	cursors.states[domain.ObjectCompanies] = &domain.SyncState{
		ObjectType: domain.ObjectCompanies,
		Cursor:     "saved-cursor",
	}

	svc := NewService(Config{PageLimit: 2}, crm, &fakeCache{}, cursors, nil, &fakeAudits{}, nil)

	summary, err := svc.SyncObject(context.Background(), domain.ObjectCompanies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Objects[0].Synced != 1 {
		t.Errorf("Synced = %d, want 1", summary.Objects[0].Synced)
	}
}

func TestResetCursor(t *testing.T) {
	cursors := newFakeCursors()
	cursors.states[domain.ObjectDeals] = &domain.SyncState{ObjectType: domain.ObjectDeals, Cursor: "x"}

	svc := NewService(Config{}, &fakeCRM{}, &fakeCache{}, cursors, nil, &fakeAudits{}, nil)

	if err := svc.ResetCursor(context.Background(), domain.ObjectDeals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cursors.resets) != 1 || cursors.resets[0] != domain.ObjectDeals {
		t.Errorf("resets = %v", cursors.resets)
	}

	if err := svc.ResetCursor(context.Background(), "widgets"); err == nil {
		t.Error("expected an error for an unknown object type")
	}
}

func TestSyncStatus(t *testing.T) {
	cache := &fakeCache{companies: []*domain.Company{{ID: "co-1"}}}
	cursors := newFakeCursors()
	cursors.states[domain.ObjectCompanies] = &domain.SyncState{ObjectType: domain.ObjectCompanies}

	svc := NewService(Config{}, &fakeCRM{}, cache, cursors, nil, &fakeAudits{}, nil)

	status, err := svc.SyncStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(status.States) != 1 {
		t.Errorf("states = %d, want 1", len(status.States))
	}
	if status.Counts[domain.ObjectCompanies] != 1 {
		t.Errorf("counts = %v", status.Counts)
	}
}
