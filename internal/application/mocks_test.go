package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ericfisherdev/repomover/internal/application"
	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockGitHubClient struct {
	getIdentity    func(ctx context.Context) (model.Identity, error)
	listOwned      func(ctx context.Context, page, pageSize int) ([]model.Repository, error)
	listOrgs       func(ctx context.Context) ([]model.Identity, error)
	listOrgRepos   func(ctx context.Context, org string, page, pageSize int) ([]model.Repository, error)
	lookupAccount  func(ctx context.Context, name string) (model.Identity, error)
	transfer       func(ctx context.Context, owner, repo, newOwner string) (string, error)
	checkRateLimit func(ctx context.Context) error
}

func (m *mockGitHubClient) GetAuthenticatedIdentity(ctx context.Context) (model.Identity, error) {
	if m.getIdentity == nil {
		return model.Identity{}, nil
	}
	return m.getIdentity(ctx)
}

func (m *mockGitHubClient) ListOwnedRepositories(ctx context.Context, page, pageSize int) ([]model.Repository, error) {
	if m.listOwned == nil {
		return nil, nil
	}
	return m.listOwned(ctx, page, pageSize)
}

func (m *mockGitHubClient) ListOrganizationMemberships(ctx context.Context) ([]model.Identity, error) {
	if m.listOrgs == nil {
		return []model.Identity{}, nil
	}
	return m.listOrgs(ctx)
}

func (m *mockGitHubClient) ListOrganizationRepositories(ctx context.Context, org string, page, pageSize int) ([]model.Repository, error) {
	if m.listOrgRepos == nil {
		return nil, nil
	}
	return m.listOrgRepos(ctx, org, page, pageSize)
}

func (m *mockGitHubClient) LookupAccountByName(ctx context.Context, name string) (model.Identity, error) {
	if m.lookupAccount == nil {
		return model.Identity{}, driven.ErrAccountNotFound
	}
	return m.lookupAccount(ctx, name)
}

func (m *mockGitHubClient) TransferRepository(ctx context.Context, owner, repo, newOwner string) (string, error) {
	if m.transfer == nil {
		return "https://github.com/" + newOwner + "/" + repo, nil
	}
	return m.transfer(ctx, owner, repo, newOwner)
}

func (m *mockGitHubClient) CheckRateLimit(ctx context.Context) error {
	if m.checkRateLimit == nil {
		return nil
	}
	return m.checkRateLimit(ctx)
}

// mockCredentialStore is a testify mock for call-level assertions.
type mockCredentialStore struct {
	mock.Mock
}

func (m *mockCredentialStore) Save(ctx context.Context, cred model.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *mockCredentialStore) Load(ctx context.Context) (*model.Credential, error) {
	args := m.Called(ctx)
	cred, _ := args.Get(0).(*model.Credential)
	return cred, args.Error(1)
}

func (m *mockCredentialStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// memCredentialStore keeps the credential in memory.
type memCredentialStore struct {
	mu   sync.Mutex
	cred *model.Credential
}

func (m *memCredentialStore) Save(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &cred
	return nil
}

func (m *memCredentialStore) Load(_ context.Context) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	return &c, nil
}

func (m *memCredentialStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	return nil
}

// memTransferLog keeps transfer records in memory.
type memTransferLog struct {
	mu      sync.Mutex
	records []model.TransferRecord
}

func (m *memTransferLog) Record(_ context.Context, rec model.TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return nil
}

func (m *memTransferLog) ListByBatch(_ context.Context, batchID string) ([]model.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.TransferRecord{}
	for _, r := range m.records {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTransferLog) ListRecent(_ context.Context, limit int) ([]model.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.TransferRecord{}
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// --- Fixtures ---

var octocat = model.Identity{Login: "octocat", ID: 1, Kind: model.AccountKindUser, DisplayName: "The Octocat"}

func staticFactory(client driven.GitHubClient) driven.GitHubClientFactory {
	return func(string) driven.GitHubClient { return client }
}

func ownedRepo(id int64, name string) model.Repository {
	return model.Repository{
		ID:       id,
		Name:     name,
		FullName: "octocat/" + name,
		Owner:    model.RepositoryOwner{Login: "octocat", Kind: model.AccountKindUser},
	}
}

func orgRepo(id int64, org, name string) model.Repository {
	return model.Repository{
		ID:       id,
		Name:     name,
		FullName: org + "/" + name,
		Owner:    model.RepositoryOwner{Login: org, Kind: model.AccountKindOrganization},
	}
}

// testServices wires the application layer around a mock client.
type testServices struct {
	client      *mockGitHubClient
	store       *memCredentialStore
	transferLog *memTransferLog
	provider    *application.GitHubClientProvider
	cache       *application.ValidationCache
	identity    *application.IdentityService
	inventory   *application.InventoryService
	resolver    *application.DestinationResolver
	executor    *application.TransferExecutor
	workflow    *application.WorkflowService
	sleeps      *sleepRecorder
}

// newTestServices builds the full service graph and starts the resolver.
// Pacing waits are recorded instead of slept.
func newTestServices(t *testing.T, client *mockGitHubClient) *testServices {
	t.Helper()

	if client.getIdentity == nil {
		client.getIdentity = func(context.Context) (model.Identity, error) { return octocat, nil }
	}

	s := &testServices{
		client:      client,
		store:       &memCredentialStore{},
		transferLog: &memTransferLog{},
		provider:    application.NewGitHubClientProvider(),
		cache:       application.NewValidationCache(time.Minute),
		sleeps:      &sleepRecorder{},
	}
	s.identity = application.NewIdentityService(staticFactory(client), s.store, s.provider, s.cache)
	s.inventory = application.NewInventoryService(s.provider, 2)
	s.resolver = application.NewDestinationResolver(s.identity, 50*time.Millisecond)
	s.executor = application.NewTransferExecutor(s.provider, time.Second)
	s.executor.SetSleepFunc(s.sleeps.sleep)
	s.workflow = application.NewWorkflowService(s.identity, s.inventory, s.resolver, s.executor, s.transferLog)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.resolver.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return s
}

// sleepRecorder records pacing waits without sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waits)
}
