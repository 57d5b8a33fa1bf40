package application

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// DefaultDebounce is the quiet period after the last input change before a
// lookup is dispatched.
const DefaultDebounce = 800 * time.Millisecond

// AccountLookup resolves an account name to an identity, or nil when the
// account does not exist.
type AccountLookup interface {
	LookupAccount(ctx context.Context, name string) (*model.Identity, error)
}

// DestinationUpdate is the resolver's published view of the latest round.
// Identity is set only when Status is valid.
type DestinationUpdate struct {
	Round          uint64
	Input          string
	IsOrganization bool
	Status         model.ValidationStatus
	Identity       *model.Identity
	Error          string
}

// Settled reports whether no round is waiting on the debounce timer or a
// lookup.
func (u DestinationUpdate) Settled() bool {
	return u.Status != model.ValidationPending && u.Status != model.ValidationValidating
}

type resolverCommandKind int

const (
	commandSubmit resolverCommandKind = iota
	commandAbandon
	commandReset
)

// resolverCommand is a request handled by the resolver loop.
type resolverCommand struct {
	kind  resolverCommandKind
	input string
	isOrg bool
	done  chan struct{}
}

// roundResult carries a finished lookup back to the loop, tagged with the
// round that dispatched it.
type roundResult struct {
	round    uint64
	input    string
	identity *model.Identity
	err      error
}

// DestinationResolver turns raw destination input into a validated identity.
// A single goroutine started by Start owns the round counter and the debounce
// timer; lookups run in their own goroutines and only a result whose round
// matches the current round is published.
type DestinationResolver struct {
	lookup   AccountLookup
	debounce time.Duration
	commands chan resolverCommand
	results  chan roundResult

	mu      sync.RWMutex
	current DestinationUpdate
	changed chan struct{}

	// Loop-owned state.
	round uint64
	input string
	isOrg bool
}

// NewDestinationResolver creates a resolver. A non-positive debounce falls
// back to DefaultDebounce.
func NewDestinationResolver(lookup AccountLookup, debounce time.Duration) *DestinationResolver {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &DestinationResolver{
		lookup:   lookup,
		debounce: debounce,
		commands: make(chan resolverCommand),
		results:  make(chan roundResult),
		current:  DestinationUpdate{Status: model.ValidationIdle},
		changed:  make(chan struct{}),
	}
}

// Start runs the resolver loop. It blocks until the context is canceled.
func (r *DestinationResolver) Start(ctx context.Context) {
	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("destination resolver stopped")
			return
		case cmd := <-r.commands:
			r.handleCommand(cmd, timer)
			close(cmd.done)
		case <-timer.C:
			r.dispatch(ctx)
		case res := <-r.results:
			r.handleResult(res)
		}
	}
}

// Submit records new destination input and restarts the debounce window.
// Blank input settles immediately as idle. Re-submitting the current input
// is a no-op unless its last round ended idle or invalid. Submit blocks
// until the loop has accepted the input.
func (r *DestinationResolver) Submit(ctx context.Context, input string, isOrganization bool) error {
	return r.send(ctx, resolverCommand{kind: commandSubmit, input: input, isOrg: isOrganization})
}

// Abandon invalidates any pending or in-flight round without clearing a
// settled result.
func (r *DestinationResolver) Abandon(ctx context.Context) error {
	return r.send(ctx, resolverCommand{kind: commandAbandon})
}

// Reset invalidates any round and clears the input and published result.
func (r *DestinationResolver) Reset(ctx context.Context) error {
	return r.send(ctx, resolverCommand{kind: commandReset})
}

// Current returns the latest published update.
func (r *DestinationResolver) Current() DestinationUpdate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// WaitSettled blocks until the current round settles or ctx is done.
func (r *DestinationResolver) WaitSettled(ctx context.Context) (DestinationUpdate, error) {
	for {
		r.mu.RLock()
		cur, changed := r.current, r.changed
		r.mu.RUnlock()

		if cur.Settled() {
			return cur, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return cur, ctx.Err()
		}
	}
}

func (r *DestinationResolver) send(ctx context.Context, cmd resolverCommand) error {
	cmd.done = make(chan struct{})

	select {
	case r.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *DestinationResolver) handleCommand(cmd resolverCommand, timer *time.Timer) {
	switch cmd.kind {
	case commandSubmit:
		input := strings.TrimSpace(cmd.input)
		if input == r.input && cmd.isOrg == r.isOrg {
			if status := r.Current().Status; status != model.ValidationIdle && status != model.ValidationInvalid {
				return
			}
		}

		r.round++
		r.input = input
		r.isOrg = cmd.isOrg
		timer.Stop()

		if input == "" {
			r.publish(DestinationUpdate{Round: r.round, IsOrganization: r.isOrg, Status: model.ValidationIdle})
			return
		}

		timer.Reset(r.debounce)
		r.publish(DestinationUpdate{
			Round:          r.round,
			Input:          input,
			IsOrganization: r.isOrg,
			Status:         model.ValidationPending,
		})

	case commandAbandon:
		r.round++
		timer.Stop()

		cur := r.Current()
		if cur.Settled() {
			return
		}
		r.publish(DestinationUpdate{
			Round:          r.round,
			Input:          cur.Input,
			IsOrganization: cur.IsOrganization,
			Status:         model.ValidationIdle,
		})
		slog.Debug("destination round abandoned", "input", cur.Input)

	case commandReset:
		r.round++
		r.input = ""
		r.isOrg = false
		timer.Stop()
		r.publish(DestinationUpdate{Round: r.round, Status: model.ValidationIdle})
	}
}

// dispatch starts the lookup for the current round. The lookup runs against
// the loop's context, so superseding a round never aborts its request.
func (r *DestinationResolver) dispatch(ctx context.Context) {
	round, input := r.round, r.input

	r.publish(DestinationUpdate{
		Round:          round,
		Input:          input,
		IsOrganization: r.isOrg,
		Status:         model.ValidationValidating,
	})

	go func() {
		identity, err := r.lookup.LookupAccount(ctx, input)
		select {
		case r.results <- roundResult{round: round, input: input, identity: identity, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (r *DestinationResolver) handleResult(res roundResult) {
	if res.round != r.round {
		slog.Debug("discarding stale destination result", "input", res.input, "round", res.round, "current", r.round)
		return
	}

	update := DestinationUpdate{
		Round:          res.round,
		Input:          res.input,
		IsOrganization: r.isOrg,
		Status:         model.ValidationInvalid,
	}

	switch {
	case res.err != nil:
		update.Error = res.err.Error()
		slog.Warn("destination lookup failed", "input", res.input, "error", res.err)
	case res.identity != nil:
		update.Status = model.ValidationValid
		update.Identity = res.identity
	}

	r.publish(update)
}

func (r *DestinationResolver) publish(u DestinationUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = u
	close(r.changed)
	r.changed = make(chan struct{})
}
