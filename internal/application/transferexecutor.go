package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// DefaultTransferPacing is the wait between consecutive transfers.
const DefaultTransferPacing = time.Second

// TransferBatch describes one run of the executor. Bare repository references
// are resolved against Owner.
type TransferBatch struct {
	ID           string
	Owner        string
	NewOwner     string
	Repositories []string
}

// TransferObserver receives every item state change as it happens.
type TransferObserver func(item model.TransferItem)

// TransferExecutor transfers the repositories of a batch one at a time,
// pausing between items. Only one batch may run at a time.
type TransferExecutor struct {
	provider *GitHubClientProvider
	pacing   time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	running  atomic.Bool
}

// NewTransferExecutor creates a new TransferExecutor. A negative pacing is
// treated as zero.
func NewTransferExecutor(provider *GitHubClientProvider, pacing time.Duration) *TransferExecutor {
	if pacing < 0 {
		pacing = 0
	}
	return &TransferExecutor{
		provider: provider,
		pacing:   pacing,
		sleep:    sleepContext,
	}
}

// SetSleepFunc replaces the pacing wait. Used by tests.
func (e *TransferExecutor) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	e.sleep = fn
}

// Running reports whether a batch is in progress.
func (e *TransferExecutor) Running() bool {
	return e.running.Load()
}

// Execute attempts every repository in the batch exactly once, in order.
// A failed item is recorded in its outcome and the batch continues. If ctx is
// canceled, the outcomes gathered so far are returned with ctx.Err().
func (e *TransferExecutor) Execute(ctx context.Context, batch TransferBatch, observe TransferObserver) ([]model.TransferOutcome, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, model.ErrTransferInProgress
	}
	defer e.running.Store(false)

	if len(batch.Repositories) == 0 {
		return nil, model.ErrEmptySelection
	}
	if batch.NewOwner == "" {
		return nil, model.ErrDestinationUnresolved
	}
	client := e.provider.Get()
	if client == nil {
		return nil, model.ErrNotAuthenticated
	}
	if observe == nil {
		observe = func(model.TransferItem) {}
	}

	for _, ref := range batch.Repositories {
		observe(model.TransferItem{Repository: ref, State: model.TransferItemPending})
	}

	slog.Info("transfer batch started",
		"batch", batch.ID,
		"items", len(batch.Repositories),
		"new_owner", batch.NewOwner,
	)

	start := time.Now()
	outcomes := make([]model.TransferOutcome, 0, len(batch.Repositories))
	last := len(batch.Repositories) - 1

	for i, ref := range batch.Repositories {
		if err := ctx.Err(); err != nil {
			slog.Warn("transfer batch canceled", "batch", batch.ID, "attempted", len(outcomes))
			return outcomes, err
		}

		observe(model.TransferItem{Repository: ref, State: model.TransferItemInFlight})

		outcome := e.transferOne(ctx, client, batch, ref)
		outcomes = append(outcomes, outcome)

		observe(model.TransferItem{Repository: ref, State: model.TransferItemDone, Outcome: &outcome})

		if i == last {
			break
		}
		if err := e.sleep(ctx, e.pacing); err != nil {
			slog.Warn("transfer batch canceled", "batch", batch.ID, "attempted", len(outcomes))
			return outcomes, err
		}
	}

	summary := model.Summarize(outcomes)
	slog.Info("transfer batch complete",
		"batch", batch.ID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return outcomes, nil
}

// transferOne performs a single transfer. Errors and panics become a failed
// outcome.
func (e *TransferExecutor) transferOne(ctx context.Context, client driven.GitHubClient, batch TransferBatch, ref string) (outcome model.TransferOutcome) {
	outcome.Repository = ref

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic transferring repository", "repo", ref, "panic", r)
			outcome = model.TransferOutcome{
				Repository:   ref,
				ErrorMessage: fmt.Sprintf("unexpected error: %v", r),
			}
		}
	}()

	owner, name := model.SplitRef(ref, batch.Owner)

	newURL, err := client.TransferRepository(ctx, owner, name, batch.NewOwner)
	if err != nil {
		slog.Warn("repository transfer failed", "repo", owner+"/"+name, "new_owner", batch.NewOwner, "error", err)
		outcome.ErrorMessage = err.Error()
		return outcome
	}

	slog.Info("repository transferred", "repo", owner+"/"+name, "new_owner", batch.NewOwner, "url", newURL)
	outcome.Success = true
	outcome.NewURL = newURL
	return outcome
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
