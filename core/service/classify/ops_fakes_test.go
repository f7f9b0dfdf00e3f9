package classify

import (
	"context"
	"errors"

	"bizops_server/core/domain"
	"bizops_server/core/port/out"
)

// =============================================================================
// Port fakes
// =============================================================================

type fakeMessages struct {
	byID         map[int64]*domain.Message
	newMessages  []*domain.Message
	threadPriors map[string]*domain.Message
	updated      []*domain.Message
	errored      map[int64]string
	threadErr    error
	updateErr    error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		byID:         make(map[int64]*domain.Message),
		threadPriors: make(map[string]*domain.Message),
		errored:      make(map[int64]string),
	}
}

func (f *fakeMessages) GetByID(_ context.Context, id int64) (*domain.Message, error) {
	return f.byID[id], nil
}

func (f *fakeMessages) ListNew(_ context.Context, limit int) ([]*domain.Message, error) {
	if limit < len(f.newMessages) {
		return f.newMessages[:limit], nil
	}
	return f.newMessages, nil
}

func (f *fakeMessages) LatestClassifiedInThread(_ context.Context, conversationID string, _ int64) (*domain.Message, error) {
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	return f.threadPriors[conversationID], nil
}

func (f *fakeMessages) ListProcessedSince(_ context.Context, _ int) ([]*domain.Message, error) {
	return nil, nil
}

func (f *fakeMessages) UpdateClassification(_ context.Context, m *domain.Message) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, m)
	return nil
}

func (f *fakeMessages) MarkError(_ context.Context, id int64, msg string) error {
	f.errored[id] = msg
	return nil
}

type fakeRules struct {
	active      []*domain.ClassificationRule
	senderRules map[string]*domain.ClassificationRule
	created     []*domain.ClassificationRule
	incremented []int64
	createErr   error
}

func newFakeRules() *fakeRules {
	return &fakeRules{senderRules: make(map[string]*domain.ClassificationRule)}
}

func (f *fakeRules) ListActive(_ context.Context) ([]*domain.ClassificationRule, error) {
	return f.active, nil
}

func (f *fakeRules) GetActiveSenderRule(_ context.Context, sender string) (*domain.ClassificationRule, error) {
	return f.senderRules[sender], nil
}

func (f *fakeRules) Create(_ context.Context, rule *domain.ClassificationRule) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, rule)
	return nil
}

func (f *fakeRules) Update(_ context.Context, _ *domain.ClassificationRule) error { return nil }

func (f *fakeRules) Deactivate(_ context.Context, _ int64, _ domain.RuleSource) error { return nil }

func (f *fakeRules) IncrementMatch(_ context.Context, id int64) error {
	f.incremented = append(f.incremented, id)
	return nil
}

type fakeCRM struct {
	contactsByEmail  map[string]*domain.Contact
	companyByContact map[string]*domain.Company
	companyByDomain  map[string]*domain.Company
	contactErr       error
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		contactsByEmail:  make(map[string]*domain.Contact),
		companyByContact: make(map[string]*domain.Company),
		companyByDomain:  make(map[string]*domain.Company),
	}
}

func (f *fakeCRM) SearchContactByEmail(_ context.Context, email string) (*domain.Contact, error) {
	if f.contactErr != nil {
		return nil, f.contactErr
	}
	return f.contactsByEmail[email], nil
}

func (f *fakeCRM) GetContactCompany(_ context.Context, contactID string) (*domain.Company, error) {
	return f.companyByContact[contactID], nil
}

func (f *fakeCRM) SearchCompanyByDomain(_ context.Context, d string) (*domain.Company, error) {
	return f.companyByDomain[d], nil
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

func (f *fakeCRM) BatchReadAssociations(_ context.Context, _, _ string, _ []string) ([]*domain.Association, error) {
	return nil, nil
}

func (f *fakeCRM) CreateDeal(_ context.Context, _ *out.DealCreate) (*domain.Deal, error) {
	return nil, errors.New("not implemented")
}

type fakeAI struct {
	result *domain.Classification
	err    error
	calls  int
}

func (f *fakeAI) ClassifyEmail(_ context.Context, _ *out.ClassifyRequest) (*domain.Classification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeMailbox struct {
	moves   map[string]string // message id -> folder id
	moveErr error
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{moves: make(map[string]string)}
}

func (f *fakeMailbox) GetMessage(_ context.Context, _ string) (*out.MailboxMessage, error) {
	return nil, out.ErrMessageGone
}

func (f *fakeMailbox) MoveMessage(_ context.Context, messageID, folderID string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves[messageID] = folderID
	return nil
}

func (f *fakeMailbox) ListFolders(_ context.Context) ([]*out.MailFolder, error) { return nil, nil }

func (f *fakeMailbox) Search(_ context.Context, _ string, _ int) ([]*out.MailboxMessage, error) {
	return nil, nil
}

type fakeNotifier struct {
	posted []*out.Notification
	err    error
}

func (f *fakeNotifier) Post(_ context.Context, n *out.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, n)
	return nil
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

type fakeFolders struct {
	mappings []*domain.FolderMapping
}

func (f *fakeFolders) ListActive(_ context.Context) ([]*domain.FolderMapping, error) {
	return f.mappings, nil
}

func (f *fakeFolders) GetByFolderID(_ context.Context, folderID string) (*domain.FolderMapping, error) {
	for _, m := range f.mappings {
		if m.FolderID == folderID {
			return m, nil
		}
	}
	return nil, nil
}

type fakeClients struct {
	clients []*domain.Client
}

func (f *fakeClients) ListActive(_ context.Context) ([]*domain.Client, error) {
	return f.clients, nil
}

func (f *fakeClients) GetByID(_ context.Context, id int64) (*domain.Client, error) {
	for _, c := range f.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeClients) GetByHubSpotID(_ context.Context, _ string) (*domain.Client, error) {
	return nil, nil
}

func (f *fakeClients) GetByDomain(_ context.Context, d string) (*domain.Client, error) {
	for _, c := range f.clients {
		if c.Domain == d {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeClients) Upsert(_ context.Context, c *domain.Client) (int64, error) {
	return c.ID, nil
}

// =============================================================================
// Test helpers
// =============================================================================

func testSnapshot(rules []*domain.ClassificationRule, mappings []*domain.FolderMapping) *Snapshot {
	folderMap := make(map[string]*domain.FolderMapping)
	for _, m := range mappings {
		folderMap[m.EmailType] = m
	}
	return &Snapshot{
		Rules:          rules,
		FolderMap:      folderMap,
		ClientDomains:  make(map[string]*domain.Client),
		CustomerMarker: "CUSTOMER",
	}
}

type testDeps struct {
	messages *fakeMessages
	rules    *fakeRules
	crm      *fakeCRM
	ai       *fakeAI
	mailbox  *fakeMailbox
	notifier *fakeNotifier
	audits   *fakeAudits
	folders  *fakeFolders
	clients  *fakeClients
}

func newTestService(deps *testDeps) *Service {
	loader := NewSnapshotLoader(deps.rules, deps.folders, deps.clients, nil, 0, "CUSTOMER")
	cfg := Config{
		BatchSize:            20,
		LearnThresholdBatch:  0.90,
		LearnThresholdSingle: 0.95,
		ThreadConfidence:     0.95,
	}
	return NewService(cfg, loader, deps.messages, deps.rules, deps.crm,
		deps.ai, deps.mailbox, deps.notifier, deps.audits, nil)
}

func newTestDeps() *testDeps {
	return &testDeps{
		messages: newFakeMessages(),
		rules:    newFakeRules(),
		crm:      newFakeCRM(),
		ai:       &fakeAI{},
		mailbox:  newFakeMailbox(),
		notifier: &fakeNotifier{},
		audits:   &fakeAudits{},
		folders:  &fakeFolders{},
		clients:  &fakeClients{},
	}
}

func testMessage(id int64, sender, subject string) *domain.Message {
	return &domain.Message{
		ID:           id,
		MessageID:    "msg-" + subject,
		SenderEmail:  sender,
		SenderDomain: domain.DomainOf(sender),
		Subject:      subject,
		Status:       domain.StatusNew,
	}
}
