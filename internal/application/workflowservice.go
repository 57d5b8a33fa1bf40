package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// WorkflowService is the top-level orchestrator of a transfer session. It
// owns the current step, the inventory, the selection, the destination and
// the results of the last batch. All state is guarded by mu; no lock is held
// across a network call or a call into the resolver loop.
type WorkflowService struct {
	identity    *IdentityService
	inventory   *InventoryService
	resolver    *DestinationResolver
	executor    *TransferExecutor
	transferLog driven.TransferLogStore
	newBatchID  func() string

	mu            sync.Mutex
	step          model.Step
	repositories  []model.Repository
	organizations []model.Identity
	selection     model.Selection
	destination   model.Destination
	items         []model.TransferItem
	outcomes      []model.TransferOutcome
	batchID       string
	transferring  bool
	loading       bool
	loaded        bool // repositories reflect a completed FetchRepositories
	lastErr       string
	cancelBatch   context.CancelFunc
	batchDone     chan struct{}
	generation    uint64
}

// NewWorkflowService creates a new WorkflowService with all required dependencies.
func NewWorkflowService(
	identity *IdentityService,
	inventory *InventoryService,
	resolver *DestinationResolver,
	executor *TransferExecutor,
	transferLog driven.TransferLogStore,
) *WorkflowService {
	return &WorkflowService{
		identity:    identity,
		inventory:   inventory,
		resolver:    resolver,
		executor:    executor,
		transferLog: transferLog,
		newBatchID:  uuid.NewString,
		step:        model.StepAuth,
	}
}

// SetBatchIDFunc replaces the batch ID generator. Used by tests.
func (s *WorkflowService) SetBatchIDFunc(fn func() string) {
	s.newBatchID = fn
}

// State returns a snapshot of the workflow read model.
func (s *WorkflowService) State() model.WorkflowState {
	update := s.resolver.Current()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.WorkflowState{
		Step:          s.step,
		Identity:      s.identity.Current(),
		Repositories:  slices.Clone(s.repositories),
		Organizations: slices.Clone(s.organizations),
		Selection:     s.selection.Refs(),
		Destination:   s.resolvedDestination(update),
		Items:         slices.Clone(s.items),
		Outcomes:      slices.Clone(s.outcomes),
		Summary:       model.Summarize(s.outcomes),
		BatchID:       s.batchID,
		Transferring:  s.transferring,
		Loading:       s.loading,
		Error:         s.lastErr,
	}

	st.DestinationStatus = model.ValidationIdle
	if s.matchesDestination(update) {
		st.DestinationStatus = update.Status
	}

	return st
}

// Restore reloads a persisted session. With loadInventory it also fetches
// the organizations and repositories. Without it the workflow moves straight
// to the select step and the inventory stays empty until FetchRepositories,
// so no listing calls are spent.
func (s *WorkflowService) Restore(ctx context.Context, loadInventory bool) error {
	identity, err := s.identity.Restore(ctx)
	if err != nil {
		return err
	}
	if identity == nil {
		return nil
	}

	if !loadInventory {
		s.mu.Lock()
		if s.step == model.StepAuth {
			s.step = model.StepSelect
		}
		s.mu.Unlock()
		return nil
	}

	s.FetchOrganizations(ctx)
	return s.FetchRepositories(ctx)
}

// Authenticate validates and stores token, then loads the inventory and moves
// to the select step. A failed authentication leaves the previous session in
// place and records the error.
func (s *WorkflowService) Authenticate(ctx context.Context, token string) (model.Identity, error) {
	s.mu.Lock()
	if s.transferring {
		s.mu.Unlock()
		return model.Identity{}, model.ErrTransferInProgress
	}
	s.loading = true
	s.mu.Unlock()

	identity, err := s.identity.Authenticate(ctx, token)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.lastErr = err.Error()
		s.mu.Unlock()
		return model.Identity{}, err
	}

	s.mu.Lock()
	s.clearSessionLocked()
	s.step = model.StepAuth
	s.mu.Unlock()

	if err := s.resolver.Reset(ctx); err != nil {
		return identity, err
	}

	s.FetchOrganizations(ctx)
	if err := s.FetchRepositories(ctx); err != nil {
		return identity, err
	}

	return identity, nil
}

// Logout cancels any running batch, forgets the credential, and returns to
// the auth step with an empty state.
func (s *WorkflowService) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.abandonBatchLocked()
	s.clearSessionLocked()
	s.step = model.StepAuth
	s.lastErr = ""
	s.mu.Unlock()

	if err := s.resolver.Reset(ctx); err != nil {
		return err
	}
	return s.identity.Logout(ctx)
}

// FetchRepositories reloads the full inventory. From the auth step it
// advances to the select step, even when the inventory is empty.
func (s *WorkflowService) FetchRepositories(ctx context.Context) error {
	if s.identity.Current() == nil {
		return model.ErrNotAuthenticated
	}

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	repos, err := s.inventory.ListAllRepositories(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if err != nil {
		s.lastErr = err.Error()
		return fmt.Errorf("fetch repositories: %w", err)
	}

	s.repositories = repos
	s.loaded = true
	s.lastErr = ""
	if s.step == model.StepAuth {
		s.step = model.StepSelect
	}
	return nil
}

// FetchOrganizations reloads organization memberships. A failure leaves the
// list empty and is only logged.
func (s *WorkflowService) FetchOrganizations(ctx context.Context) []model.Identity {
	orgs, err := s.inventory.ListOrganizations(ctx)
	if err != nil {
		slog.Warn("fetching organizations failed", "error", err)
		orgs = []model.Identity{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations = orgs
	return slices.Clone(orgs)
}

// SearchOrganizations ranks the loaded organizations against query.
func (s *WorkflowService) SearchOrganizations(query string) []model.Identity {
	s.mu.Lock()
	orgs := slices.Clone(s.organizations)
	s.mu.Unlock()

	return SearchOrganizations(orgs, query)
}

// ValidateDestination resolves name immediately, bypassing the debounce.
func (s *WorkflowService) ValidateDestination(ctx context.Context, name string) (*model.Identity, error) {
	return s.identity.LookupAccount(ctx, name)
}

// Repositories returns the loaded inventory narrowed by filter.
func (s *WorkflowService) Repositories(filter model.RepositoryFilter) []model.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.FilterRepositories(s.repositories, filter)
}

// SetSelection replaces the selection with refs, dropping blanks and
// duplicates.
func (s *WorkflowService) SetSelection(refs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSelectableLocked(); err != nil {
		return err
	}
	s.selection = model.NewSelection(refs...)
	return nil
}

// ToggleRepository adds ref to the selection, or removes it when present.
// It reports whether ref is selected afterwards.
func (s *WorkflowService) ToggleRepository(ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSelectableLocked(); err != nil {
		return false, err
	}

	ref = strings.TrimSpace(ref)
	if s.selection.Remove(ref) {
		return false, nil
	}
	return s.selection.Add(ref), nil
}

// SelectAll selects every repository matching filter, or deselects them all
// when they are already selected. It returns the new selection size.
func (s *WorkflowService) SelectAll(filter model.RepositoryFilter) (int, error) {
	viewer := ""
	if id := s.identity.Current(); id != nil {
		viewer = id.Login
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSelectableLocked(); err != nil {
		return 0, err
	}

	visible := model.FilterRepositories(s.repositories, filter)
	keys := make([]string, 0, len(visible))
	allSelected := true
	for _, r := range visible {
		key := r.SelectionKey(viewer)
		keys = append(keys, key)
		if !s.selection.Contains(key) {
			allSelected = false
		}
	}

	for _, key := range keys {
		if allSelected {
			s.selection.Remove(key)
		} else {
			s.selection.Add(key)
		}
	}

	return s.selection.Len(), nil
}

// SetDestination records new destination input and hands it to the resolver.
// Only allowed on the configure step.
func (s *WorkflowService) SetDestination(ctx context.Context, rawInput string, isOrganization bool) error {
	s.mu.Lock()
	if s.step != model.StepConfigure {
		s.mu.Unlock()
		return fmt.Errorf("%w: destination can only be set on the %s step", model.ErrInvalidStep, model.StepConfigure)
	}
	s.destination = model.Destination{
		RawInput:       strings.TrimSpace(rawInput),
		IsOrganization: isOrganization,
	}
	s.mu.Unlock()

	return s.resolver.Submit(ctx, rawInput, isOrganization)
}

// WaitDestination blocks until the destination resolver settles and returns
// the resulting state.
func (s *WorkflowService) WaitDestination(ctx context.Context) (model.WorkflowState, error) {
	if _, err := s.resolver.WaitSettled(ctx); err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

// MoveTo performs a direct step transition. Forward moves are gated: select
// needs an identity, configure needs a selection, and confirm needs a
// validated destination. Moving from auth to select with no inventory loaded
// (after Reset, for example) fetches it first. Leaving configure abandons any
// pending lookup.
func (s *WorkflowService) MoveTo(ctx context.Context, to model.Step) error {
	update := s.resolver.Current()
	loggedIn := s.identity.Current() != nil

	s.mu.Lock()
	from := s.step

	if s.transferring {
		s.mu.Unlock()
		return model.ErrTransferInProgress
	}
	if !model.CanMove(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s to %s", model.ErrInvalidStep, from, to)
	}

	switch to {
	case model.StepSelect:
		if !loggedIn {
			s.mu.Unlock()
			return model.ErrNotAuthenticated
		}
		if from == model.StepAuth && !s.loaded {
			s.mu.Unlock()
			return s.FetchRepositories(ctx)
		}
	case model.StepConfigure:
		if s.selection.Len() == 0 {
			s.mu.Unlock()
			return model.ErrEmptySelection
		}
	case model.StepConfirm:
		if s.resolvedDestination(update).Resolved == nil {
			s.mu.Unlock()
			return model.ErrDestinationUnresolved
		}
	}

	s.step = to
	s.mu.Unlock()

	slog.Debug("workflow step changed", "from", from, "to", to)

	if from == model.StepConfigure {
		return s.resolver.Abandon(ctx)
	}
	return nil
}

// StartTransfer launches the confirmed batch in the background and moves to
// the transfer step. The batch outlives ctx; it stops only on Reset or Logout.
func (s *WorkflowService) StartTransfer(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	batch, gen, err := s.beginBatch(cancel, done)
	if err != nil {
		cancel()
		return "", err
	}

	go func() {
		defer close(done)
		defer cancel()
		_, _ = s.runBatch(runCtx, gen, batch)
	}()

	return batch.ID, nil
}

// Transfer runs the confirmed batch to completion and returns its outcomes.
func (s *WorkflowService) Transfer(ctx context.Context) (string, []model.TransferOutcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})

	batch, gen, err := s.beginBatch(cancel, done)
	if err != nil {
		return "", nil, err
	}
	defer close(done)

	outcomes, err := s.runBatch(runCtx, gen, batch)
	return batch.ID, outcomes, err
}

// Wait blocks until the running batch, if any, finishes.
func (s *WorkflowService) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.batchDone
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TransferHistory returns the persisted records of one batch.
func (s *WorkflowService) TransferHistory(ctx context.Context, batchID string) ([]model.TransferRecord, error) {
	records, err := s.transferLog.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("transfer history for %s: %w", batchID, err)
	}
	return records, nil
}

// RecentTransfers returns up to limit persisted records, newest first.
func (s *WorkflowService) RecentTransfers(ctx context.Context, limit int) ([]model.TransferRecord, error) {
	records, err := s.transferLog.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transfers: %w", err)
	}
	return records, nil
}

// Reset cancels any running batch, clears every collection and the
// destination, and returns to the auth step. The session stays logged in.
// Calling it repeatedly has the same effect as calling it once.
func (s *WorkflowService) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.abandonBatchLocked()
	s.clearSessionLocked()
	s.step = model.StepAuth
	s.lastErr = ""
	s.mu.Unlock()

	return s.resolver.Reset(ctx)
}

// beginBatch validates the confirm step and switches to the transfer step.
// cancel and done are stored so Reset and Wait can reach the batch.
func (s *WorkflowService) beginBatch(cancel context.CancelFunc, done chan struct{}) (TransferBatch, uint64, error) {
	update := s.resolver.Current()
	identity := s.identity.Current()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transferring {
		return TransferBatch{}, 0, model.ErrTransferInProgress
	}
	if identity == nil {
		return TransferBatch{}, 0, model.ErrNotAuthenticated
	}
	if s.step != model.StepConfirm {
		return TransferBatch{}, 0, fmt.Errorf("%w: transfers start from the %s step", model.ErrInvalidStep, model.StepConfirm)
	}
	if s.selection.Len() == 0 {
		return TransferBatch{}, 0, model.ErrEmptySelection
	}
	dest := s.resolvedDestination(update)
	if dest.Resolved == nil {
		return TransferBatch{}, 0, model.ErrDestinationUnresolved
	}

	batch := TransferBatch{
		ID:           s.newBatchID(),
		Owner:        identity.Login,
		NewOwner:     dest.NewOwner(),
		Repositories: s.selection.Refs(),
	}

	s.generation++
	s.step = model.StepTransfer
	s.transferring = true
	s.cancelBatch = cancel
	s.batchDone = done
	s.batchID = batch.ID
	s.outcomes = []model.TransferOutcome{}
	s.items = make([]model.TransferItem, 0, len(batch.Repositories))
	for _, ref := range batch.Repositories {
		s.items = append(s.items, model.TransferItem{Repository: ref, State: model.TransferItemPending})
	}
	s.lastErr = ""

	return batch, s.generation, nil
}

// runBatch executes batch and folds its progress into the state. Progress
// from a batch whose generation was superseded by Reset is dropped.
func (s *WorkflowService) runBatch(ctx context.Context, gen uint64, batch TransferBatch) ([]model.TransferOutcome, error) {
	observe := func(item model.TransferItem) {
		if !s.applyItem(gen, item) || item.Outcome == nil {
			return
		}
		s.recordOutcome(ctx, batch, *item.Outcome)
	}

	outcomes, err := s.executor.Execute(ctx, batch, observe)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return outcomes, err
	}

	s.transferring = false
	s.cancelBatch = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		s.lastErr = err.Error()
	}

	return outcomes, err
}

// applyItem updates the matching item and appends finished outcomes. It
// reports whether the item belonged to the current generation.
func (s *WorkflowService) applyItem(gen uint64, item model.TransferItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}

	for i := range s.items {
		if s.items[i].Repository == item.Repository {
			s.items[i] = item
			break
		}
	}
	if item.State == model.TransferItemDone && item.Outcome != nil {
		s.outcomes = append(s.outcomes, *item.Outcome)
	}
	return true
}

// recordOutcome appends the outcome to the audit log. Failures are logged
// and never affect the batch.
func (s *WorkflowService) recordOutcome(ctx context.Context, batch TransferBatch, outcome model.TransferOutcome) {
	if s.transferLog == nil {
		return
	}

	rec := model.TransferRecord{
		BatchID:      batch.ID,
		Repository:   outcome.Repository,
		NewOwner:     batch.NewOwner,
		Success:      outcome.Success,
		NewURL:       outcome.NewURL,
		ErrorMessage: outcome.ErrorMessage,
	}
	if err := s.transferLog.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("recording transfer outcome failed", "batch", batch.ID, "repo", outcome.Repository, "error", err)
	}
}

// resolvedDestination combines the stored input with the resolver's latest
// update. Callers hold mu.
func (s *WorkflowService) resolvedDestination(update DestinationUpdate) model.Destination {
	dest := s.destination
	if s.matchesDestination(update) && update.Status == model.ValidationValid && update.Identity != nil {
		id := *update.Identity
		dest.Resolved = &id
	}
	return dest
}

// matchesDestination reports whether update belongs to the stored input.
// Callers hold mu.
func (s *WorkflowService) matchesDestination(update DestinationUpdate) bool {
	return s.destination.RawInput != "" &&
		update.Input == s.destination.RawInput &&
		update.IsOrganization == s.destination.IsOrganization
}

func (s *WorkflowService) requireSelectableLocked() error {
	if s.transferring {
		return model.ErrTransferInProgress
	}
	if s.step != model.StepSelect {
		return fmt.Errorf("%w: selection can only change on the %s step", model.ErrInvalidStep, model.StepSelect)
	}
	return nil
}

func (s *WorkflowService) abandonBatchLocked() {
	if s.cancelBatch != nil {
		s.cancelBatch()
		s.cancelBatch = nil
	}
	s.generation++
	s.transferring = false
}

func (s *WorkflowService) clearSessionLocked() {
	s.repositories = nil
	s.loaded = false
	s.organizations = nil
	s.selection = model.Selection{}
	s.destination = model.Destination{}
	s.items = nil
	s.outcomes = nil
	s.batchID = ""
	s.loading = false
}
