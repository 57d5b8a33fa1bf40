package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// inventoryClient returns a mock with three owned repositories, one
// organization repository, and an "Acme" organization lookup.
func inventoryClient() *mockGitHubClient {
	owned := pages(
		[]model.Repository{ownedRepo(1, "alpha"), ownedRepo(2, "beta")},
		[]model.Repository{ownedRepo(3, "gamma")},
	)
	return &mockGitHubClient{
		listOwned: func(_ context.Context, page, _ int) ([]model.Repository, error) {
			return owned(page), nil
		},
		listOrgs: func(context.Context) ([]model.Identity, error) {
			return []model.Identity{{Login: "old-org", Kind: model.AccountKindOrganization}}, nil
		},
		listOrgRepos: func(_ context.Context, _ string, page, _ int) ([]model.Repository, error) {
			return pages([]model.Repository{orgRepo(10, "old-org", "legacy")})(page), nil
		},
		lookupAccount: func(_ context.Context, name string) (model.Identity, error) {
			if strings.EqualFold(name, "acme") {
				return model.Identity{Login: "Acme", ID: 99, Kind: model.AccountKindOrganization}, nil
			}
			return model.Identity{}, driven.ErrAccountNotFound
		},
	}
}

// toConfirm drives a workflow from login to the confirm step with refs
// selected and "acme" as destination.
func toConfirm(t *testing.T, s *testServices, refs ...string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)
	require.NoError(t, s.workflow.SetSelection(refs))
	require.NoError(t, s.workflow.MoveTo(ctx, model.StepConfigure))
	require.NoError(t, s.workflow.SetDestination(ctx, "acme", true))

	state, err := s.workflow.WaitDestination(ctx)
	require.NoError(t, err)
	require.Equal(t, model.ValidationValid, state.DestinationStatus)

	require.NoError(t, s.workflow.MoveTo(ctx, model.StepConfirm))
}

func TestWorkflowService_AuthenticateLoadsInventory(t *testing.T) {
	s := newTestServices(t, inventoryClient())

	identity, err := s.workflow.Authenticate(context.Background(), "ghp_test")
	require.NoError(t, err)
	assert.Equal(t, "octocat", identity.Login)

	state := s.workflow.State()
	assert.Equal(t, model.StepSelect, state.Step)
	require.NotNil(t, state.Identity)
	assert.Equal(t, "octocat", state.Identity.Login)
	assert.Equal(t, []string{"octocat/alpha", "octocat/beta", "octocat/gamma", "old-org/legacy"}, repoNames(state.Repositories))
	require.Len(t, state.Organizations, 1)
	assert.Equal(t, "old-org", state.Organizations[0].Login)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)

	cred, err := s.store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "ghp_test", cred.Token)
}

func TestWorkflowService_AuthenticateEmptyInventoryStillAdvances(t *testing.T) {
	s := newTestServices(t, &mockGitHubClient{})

	_, err := s.workflow.Authenticate(context.Background(), "ghp_test")
	require.NoError(t, err)

	state := s.workflow.State()
	assert.Equal(t, model.StepSelect, state.Step)
	assert.Empty(t, state.Repositories)
}

func TestWorkflowService_AuthenticateFailure(t *testing.T) {
	client := &mockGitHubClient{
		getIdentity: func(context.Context) (model.Identity, error) {
			return model.Identity{}, errors.New("401 Bad credentials")
		},
	}
	s := newTestServices(t, client)

	_, err := s.workflow.Authenticate(context.Background(), "ghp_bad")
	require.ErrorIs(t, err, model.ErrAuthenticationFailed)

	state := s.workflow.State()
	assert.Equal(t, model.StepAuth, state.Step)
	assert.Nil(t, state.Identity)
	assert.Contains(t, state.Error, "authentication failed")
	assert.False(t, state.Loading)

	cred, err := s.store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestWorkflowService_InventoryFailureSurfacesError(t *testing.T) {
	client := &mockGitHubClient{
		listOwned: func(context.Context, int, int) ([]model.Repository, error) {
			return nil, errors.New("503 Service Unavailable")
		},
	}
	s := newTestServices(t, client)

	_, err := s.workflow.Authenticate(context.Background(), "ghp_test")
	var transportErr *model.TransportError
	require.ErrorAs(t, err, &transportErr)

	state := s.workflow.State()
	assert.Equal(t, model.StepAuth, state.Step)
	assert.NotNil(t, state.Identity, "the session itself is valid")
	assert.Contains(t, state.Error, "503")
}

func TestWorkflowService_FetchOrganizationsFailureIsEmpty(t *testing.T) {
	client := inventoryClient()
	client.listOrgs = func(context.Context) ([]model.Identity, error) {
		return nil, errors.New("403 Forbidden")
	}
	s := newTestServices(t, client)

	_, err := s.workflow.Authenticate(context.Background(), "ghp_test")
	require.NoError(t, err)

	orgs := s.workflow.FetchOrganizations(context.Background())
	assert.NotNil(t, orgs)
	assert.Empty(t, orgs)
	assert.Equal(t, model.StepSelect, s.workflow.State().Step)
}

func TestWorkflowService_StepGuards(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	assert.ErrorIs(t, s.workflow.MoveTo(ctx, model.StepSelect), model.ErrNotAuthenticated)
	assert.ErrorIs(t, s.workflow.SetSelection([]string{"alpha"}), model.ErrInvalidStep)

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)

	assert.ErrorIs(t, s.workflow.MoveTo(ctx, model.StepConfirm), model.ErrInvalidStep)
	assert.ErrorIs(t, s.workflow.MoveTo(ctx, model.StepTransfer), model.ErrInvalidStep)
	assert.ErrorIs(t, s.workflow.MoveTo(ctx, model.StepConfigure), model.ErrEmptySelection)
	assert.ErrorIs(t, s.workflow.SetDestination(ctx, "acme", true), model.ErrInvalidStep)

	require.NoError(t, s.workflow.SetSelection([]string{"alpha"}))
	require.NoError(t, s.workflow.MoveTo(ctx, model.StepConfigure))

	assert.ErrorIs(t, s.workflow.MoveTo(ctx, model.StepConfirm), model.ErrDestinationUnresolved)
	assert.ErrorIs(t, s.workflow.SetSelection([]string{"beta"}), model.ErrInvalidStep)

	_, err = s.workflow.StartTransfer(ctx)
	assert.ErrorIs(t, err, model.ErrInvalidStep)

	require.NoError(t, s.workflow.MoveTo(ctx, model.StepSelect))
	assert.Equal(t, model.StepSelect, s.workflow.State().Step)
}

func TestWorkflowService_UnknownDestinationCannotConfirm(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)
	require.NoError(t, s.workflow.SetSelection([]string{"alpha"}))
	require.NoError(t, s.workflow.MoveTo(ctx, model.StepConfigure))
	require.NoError(t, s.workflow.SetDestination(ctx, "ghost", false))

	state, err := s.workflow.WaitDestination(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationInvalid, state.DestinationStatus)
	assert.Nil(t, state.Destination.Resolved)

	assert.ErrorIs(t, s.workflow.MoveTo(ctx, model.StepConfirm), model.ErrDestinationUnresolved)
}

func TestWorkflowService_LeavingConfigureAbandonsLookup(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)
	require.NoError(t, s.workflow.SetSelection([]string{"alpha"}))
	require.NoError(t, s.workflow.MoveTo(ctx, model.StepConfigure))
	require.NoError(t, s.workflow.SetDestination(ctx, "acme", true))
	require.NoError(t, s.workflow.MoveTo(ctx, model.StepSelect))

	time.Sleep(30 * time.Millisecond)

	state := s.workflow.State()
	assert.Equal(t, model.ValidationIdle, state.DestinationStatus)
	assert.Nil(t, state.Destination.Resolved)
}

func TestWorkflowService_SelectionOperations(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)

	require.NoError(t, s.workflow.SetSelection([]string{"alpha", "alpha", " ", "beta"}))
	assert.Equal(t, []string{"alpha", "beta"}, s.workflow.State().Selection)

	selected, err := s.workflow.ToggleRepository("alpha")
	require.NoError(t, err)
	assert.False(t, selected)

	selected, err = s.workflow.ToggleRepository("old-org/legacy")
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, []string{"beta", "old-org/legacy"}, s.workflow.State().Selection)

	personal := model.RepositoryFilter{Owner: model.OwnerFilterPersonal}
	n, err := s.workflow.SelectAll(personal)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"beta", "old-org/legacy", "alpha", "gamma"}, s.workflow.State().Selection)

	n, err = s.workflow.SelectAll(personal)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "second select-all over the same filter deselects")
	assert.Equal(t, []string{"old-org/legacy"}, s.workflow.State().Selection)
}

func TestWorkflowService_TransferUsesResolvedLogin(t *testing.T) {
	client := inventoryClient()
	rec := &transferRecorder{fail: map[string]error{"beta": errors.New("Repository has already been taken")}}
	client.transfer = rec.transfer

	s := newTestServices(t, client)
	s.workflow.SetBatchIDFunc(func() string { return "batch-42" })
	ctx := context.Background()

	toConfirm(t, s, "alpha", "beta", "old-org/legacy")

	batchID, outcomes, err := s.workflow.Transfer(ctx)
	require.NoError(t, err)
	assert.Equal(t, "batch-42", batchID)

	assert.Equal(t, []transferCall{
		{owner: "octocat", repo: "alpha", newOwner: "Acme"},
		{owner: "octocat", repo: "beta", newOwner: "Acme"},
		{owner: "old-org", repo: "legacy", newOwner: "Acme"},
	}, rec.calls)
	require.Len(t, outcomes, 3)
	assert.Equal(t, 2, s.sleeps.count())

	state := s.workflow.State()
	assert.Equal(t, model.StepTransfer, state.Step)
	assert.False(t, state.Transferring)
	assert.Equal(t, outcomes, state.Outcomes)
	assert.Equal(t, model.TransferSummary{Total: 3, Succeeded: 2, Failed: 1}, state.Summary)
	for _, item := range state.Items {
		assert.Equal(t, model.TransferItemDone, item.State)
	}

	records, err := s.workflow.TransferHistory(ctx, "batch-42")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Acme", records[0].NewOwner)
	assert.False(t, records[1].Success)
	assert.Equal(t, "old-org/legacy", records[2].Repository)

	_, err = s.workflow.StartTransfer(ctx)
	assert.ErrorIs(t, err, model.ErrInvalidStep, "transfer step is terminal until reset")
}

func TestWorkflowService_StartTransferRunsInBackground(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx, cancel := context.WithCancel(context.Background())

	toConfirm(t, s, "alpha", "beta")

	batchID, err := s.workflow.StartTransfer(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)

	cancel() // the batch must outlive the request context

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, s.workflow.Wait(waitCtx))

	state := s.workflow.State()
	assert.Equal(t, batchID, state.BatchID)
	assert.False(t, state.Transferring)
	assert.Equal(t, model.TransferSummary{Total: 2, Succeeded: 2}, state.Summary)
}

func TestWorkflowService_StartTransferTwice(t *testing.T) {
	release := make(chan struct{})
	client := inventoryClient()
	client.transfer = func(_ context.Context, _, repo, newOwner string) (string, error) {
		<-release
		return "https://github.com/" + newOwner + "/" + repo, nil
	}
	s := newTestServices(t, client)
	ctx := context.Background()

	toConfirm(t, s, "alpha")

	_, err := s.workflow.StartTransfer(ctx)
	require.NoError(t, err)
	assert.True(t, s.workflow.State().Transferring)

	_, err = s.workflow.StartTransfer(ctx)
	assert.ErrorIs(t, err, model.ErrTransferInProgress)

	close(release)
	require.NoError(t, s.workflow.Wait(ctx))
}

func TestWorkflowService_ResetIsIdempotent(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	toConfirm(t, s, "alpha")
	_, _, err := s.workflow.Transfer(ctx)
	require.NoError(t, err)

	require.NoError(t, s.workflow.Reset(ctx))
	once := s.workflow.State()

	require.NoError(t, s.workflow.Reset(ctx))
	twice := s.workflow.State()

	assert.Equal(t, once, twice)
	assert.Equal(t, model.StepAuth, once.Step)
	assert.Empty(t, once.Repositories)
	assert.Empty(t, once.Selection)
	assert.Empty(t, once.Outcomes)
	assert.Empty(t, once.Items)
	assert.Empty(t, once.Destination.RawInput)
	assert.Equal(t, model.ValidationIdle, once.DestinationStatus)
	assert.False(t, once.Transferring)
	require.NotNil(t, once.Identity, "reset keeps the session")

	require.NoError(t, s.workflow.FetchRepositories(ctx))
	assert.Equal(t, model.StepSelect, s.workflow.State().Step)
}

func TestWorkflowService_ResetDuringBatchDropsLateOutcomes(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	client := inventoryClient()
	client.transfer = func(_ context.Context, _, repo, newOwner string) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return "https://github.com/" + newOwner + "/" + repo, nil
	}
	s := newTestServices(t, client)
	ctx := context.Background()

	toConfirm(t, s, "alpha", "beta")

	_, err := s.workflow.StartTransfer(ctx)
	require.NoError(t, err)
	<-entered

	require.NoError(t, s.workflow.Reset(ctx))
	close(release)
	require.NoError(t, s.workflow.Wait(ctx))

	state := s.workflow.State()
	assert.Equal(t, model.StepAuth, state.Step)
	assert.Empty(t, state.Outcomes)
	assert.False(t, state.Transferring)
	assert.Eventually(t, func() bool { return !s.executor.Running() }, time.Second, time.Millisecond)
}

func TestWorkflowService_LogoutClearsEverything(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)

	require.NoError(t, s.workflow.Logout(ctx))

	state := s.workflow.State()
	assert.Equal(t, model.StepAuth, state.Step)
	assert.Nil(t, state.Identity)
	assert.Empty(t, state.Repositories)

	cred, err := s.store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestWorkflowService_Restore(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	require.NoError(t, s.store.Save(ctx, model.Credential{Token: "ghp_saved", Identity: octocat}))

	require.NoError(t, s.workflow.Restore(ctx, true))

	state := s.workflow.State()
	assert.Equal(t, model.StepSelect, state.Step)
	require.NotNil(t, state.Identity)
	assert.Equal(t, "octocat", state.Identity.Login)
	assert.Len(t, state.Repositories, 4)
}

func TestWorkflowService_RestoreWithoutCredential(t *testing.T) {
	s := newTestServices(t, inventoryClient())

	require.NoError(t, s.workflow.Restore(context.Background(), true))
	assert.Equal(t, model.StepAuth, s.workflow.State().Step)
}

func TestWorkflowService_RestoreWithoutInventory(t *testing.T) {
	var listCalls atomic.Int32
	client := inventoryClient()
	client.listOwned = func(context.Context, int, int) ([]model.Repository, error) {
		listCalls.Add(1)
		return nil, nil
	}
	client.listOrgs = func(context.Context) ([]model.Identity, error) {
		listCalls.Add(1)
		return nil, nil
	}
	client.listOrgRepos = func(context.Context, string, int, int) ([]model.Repository, error) {
		listCalls.Add(1)
		return nil, nil
	}
	s := newTestServices(t, client)
	ctx := context.Background()

	require.NoError(t, s.store.Save(ctx, model.Credential{Token: "ghp_saved", Identity: octocat}))
	require.NoError(t, s.workflow.Restore(ctx, false))

	assert.Zero(t, listCalls.Load())

	state := s.workflow.State()
	assert.Equal(t, model.StepSelect, state.Step)
	require.NotNil(t, state.Identity)
	assert.Empty(t, state.Repositories)

	require.NoError(t, s.workflow.SetSelection([]string{"alpha"}))
	assert.Equal(t, []string{"alpha"}, s.workflow.State().Selection)
}

func TestWorkflowService_MoveToSelectAfterResetReloads(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)
	require.NoError(t, s.workflow.Reset(ctx))
	require.Empty(t, s.workflow.State().Repositories)

	require.NoError(t, s.workflow.MoveTo(ctx, model.StepSelect))

	state := s.workflow.State()
	assert.Equal(t, model.StepSelect, state.Step)
	assert.Len(t, state.Repositories, 4)
}

func TestWorkflowService_MoveToSelectReloadFailureStaysOnAuth(t *testing.T) {
	client := inventoryClient()
	s := newTestServices(t, client)
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)
	require.NoError(t, s.workflow.Reset(ctx))

	client.listOwned = func(context.Context, int, int) ([]model.Repository, error) {
		return nil, errors.New("boom")
	}

	err = s.workflow.MoveTo(ctx, model.StepSelect)
	require.Error(t, err)
	assert.Equal(t, model.StepAuth, s.workflow.State().Step)
}

func TestWorkflowService_ValidateDestinationAndSearch(t *testing.T) {
	s := newTestServices(t, inventoryClient())
	ctx := context.Background()

	_, err := s.workflow.Authenticate(ctx, "ghp_test")
	require.NoError(t, err)

	identity, err := s.workflow.ValidateDestination(ctx, "ACME")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "Acme", identity.Login)

	identity, err = s.workflow.ValidateDestination(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, identity)

	orgs := s.workflow.SearchOrganizations("old")
	require.Len(t, orgs, 1)
	assert.Equal(t, "old-org", orgs[0].Login)
}

func TestWorkflowService_RepositoriesFilter(t *testing.T) {
	s := newTestServices(t, inventoryClient())

	_, err := s.workflow.Authenticate(context.Background(), "ghp_test")
	require.NoError(t, err)

	got := s.workflow.Repositories(model.RepositoryFilter{Owner: model.OwnerFilterOrganization})
	assert.Equal(t, []string{"old-org/legacy"}, repoNames(got))

	got = s.workflow.Repositories(model.RepositoryFilter{Query: "ALP"})
	assert.Equal(t, []string{"octocat/alpha"}, repoNames(got))
}
