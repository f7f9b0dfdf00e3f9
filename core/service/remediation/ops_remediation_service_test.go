package remediation

import (
	"context"
	"fmt"
	"testing"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

type fakeCRM struct {
	associations map[string]string // object id -> company id
	batchSizes   []int
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
	f.batchSizes = append(f.batchSizes, len(ids))
	var out []*domain.Association
	for _, id := range ids {
		if companyID, ok := f.associations[id]; ok {
			out = append(out, &domain.Association{
				FromType: fromType,
				FromID:   id,
				ToType:   domain.ObjectCompanies,
				ToID:     companyID,
			})
		}
	}
	return out, nil
}

func (f *fakeCRM) CreateDeal(_ context.Context, _ *out.DealCreate) (*domain.Deal, error) {
	return nil, nil
}

type fakeCache struct {
	orphanTickets  []*domain.Ticket
	orphanContacts []*domain.Contact
	ticketRepairs  map[string]string
	contactRepairs map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		ticketRepairs:  make(map[string]string),
		contactRepairs: make(map[string]string),
	}
}

func (f *fakeCache) GetCompany(_ context.Context, _ string) (*domain.Company, error) {
	return nil, nil
}
func (f *fakeCache) UpsertCompanies(_ context.Context, _ []*domain.Company) error { return nil }
func (f *fakeCache) UpsertContacts(_ context.Context, _ []*domain.Contact) error  { return nil }
func (f *fakeCache) UpsertDeals(_ context.Context, _ []*domain.Deal) error        { return nil }
func (f *fakeCache) UpsertTickets(_ context.Context, _ []*domain.Ticket) error    { return nil }

func (f *fakeCache) ListTicketsWithoutCompany(_ context.Context, _ int) ([]*domain.Ticket, error) {
	return f.orphanTickets, nil
}
func (f *fakeCache) ListContactsWithoutCompany(_ context.Context, _ int) ([]*domain.Contact, error) {
	return f.orphanContacts, nil
}
func (f *fakeCache) SetTicketCompany(_ context.Context, ticketID, companyID string) error {
	f.ticketRepairs[ticketID] = companyID
	return nil
}
func (f *fakeCache) SetContactCompany(_ context.Context, contactID, companyID string) error {
	f.contactRepairs[contactID] = companyID
	return nil
}
func (f *fakeCache) Counts(_ context.Context) (map[string]int, error) { return nil, nil }

type fakeLog struct {
	records []*domain.RemediationRecord
	counts  map[string]int
}

func (f *fakeLog) Write(_ context.Context, record *domain.RemediationRecord) error {
	f.records = append(f.records, record)
	return nil
}
func (f *fakeLog) ListByRun(_ context.Context, _ int64) ([]*domain.RemediationRecord, error) {
	return f.records, nil
}
func (f *fakeLog) CountByAction(_ context.Context) (map[string]int, error) {
	return f.counts, nil
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

func TestRemediateTickets(t *testing.T) {
	crm := &fakeCRM{associations: map[string]string{
		"t-1": "co-1",
		"t-3": "co-2",
	}}
	cache := newFakeCache()
	cache.orphanTickets = []*domain.Ticket{
		{ID: "t-1"}, {ID: "t-2"}, {ID: "t-3"},
	}
	log := &fakeLog{}
	audits := &fakeAudits{}

	svc := NewService(crm, cache, nil, log, audits)

	summary, err := svc.RemediateTickets(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Scanned != 3 || summary.Repaired != 2 || summary.Unresolved != 1 {
		t.Errorf("scanned/repaired/unresolved = %d/%d/%d, want 3/2/1",
			summary.Scanned, summary.Repaired, summary.Unresolved)
	}
	if cache.ticketRepairs["t-1"] != "co-1" || cache.ticketRepairs["t-3"] != "co-2" {
		t.Errorf("repairs = %v", cache.ticketRepairs)
	}
	if len(log.records) != 2 {
		t.Fatalf("log records = %d, want 2", len(log.records))
	}
	if log.records[0].Action != "repaired" {
		t.Errorf("log action = %q, want repaired", log.records[0].Action)
	}
	if audits.entries[0].Action != "remediate_tickets_companies" {
		t.Errorf("audit action = %q", audits.entries[0].Action)
	}
}

func TestRemediateTickets_Preview(t *testing.T) {
	crm := &fakeCRM{associations: map[string]string{"t-1": "co-1"}}
	cache := newFakeCache()
	cache.orphanTickets = []*domain.Ticket{{ID: "t-1"}}
	log := &fakeLog{}
	audits := &fakeAudits{}

	svc := NewService(crm, cache, nil, log, audits)

	summary, err := svc.RemediateTickets(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Repaired != 1 {
		t.Errorf("Repaired = %d, want 1 (computed in preview)", summary.Repaired)
	}
	if len(cache.ticketRepairs) != 0 {
		t.Error("preview must not write repairs back")
	}
	if log.records[0].Action != "preview" {
		t.Errorf("log action = %q, want preview", log.records[0].Action)
	}
	if audits.entries[0].Action != "preview_remediations" {
		t.Errorf("audit action = %q", audits.entries[0].Action)
	}
}

func TestRemediateContacts_BatchesOf100(t *testing.T) {
	crm := &fakeCRM{associations: map[string]string{}}
	cache := newFakeCache()
	for i := 0; i < 250; i++ {
		cache.orphanContacts = append(cache.orphanContacts,
			&domain.Contact{ID: fmt.Sprintf("c-%d", i)})
	}

	svc := NewService(crm, cache, nil, &fakeLog{}, &fakeAudits{})

	if _, err := svc.RemediateContacts(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{100, 100, 50}
	if len(crm.batchSizes) != len(want) {
		t.Fatalf("batches = %v, want %v", crm.batchSizes, want)
	}
	for i, size := range want {
		if crm.batchSizes[i] != size {
			t.Errorf("batch %d = %d, want %d", i, crm.batchSizes[i], size)
		}
	}
}

func TestRemediationStatus(t *testing.T) {
	log := &fakeLog{counts: map[string]int{"repaired": 5, "preview": 2}}

	svc := NewService(&fakeCRM{}, newFakeCache(), nil, log, &fakeAudits{})

	status, err := svc.RemediationStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.ByAction["repaired"] != 5 {
		t.Errorf("ByAction = %v", status.ByAction)
	}
}
