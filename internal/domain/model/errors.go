package model

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed means the token was rejected, expired, or lacked
	// scope. Fatal to the session.
	ErrAuthenticationFailed = errors.New("authentication failed, please check your token")

	// ErrNotAuthenticated is returned when an operation needs a GitHub client
	// and none is active.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrTransferInProgress is returned when a batch is started while another
	// is still running.
	ErrTransferInProgress = errors.New("a transfer batch is already in progress")

	// ErrInvalidStep is returned for a step transition the workflow does not allow.
	ErrInvalidStep = errors.New("invalid workflow step transition")

	// ErrEmptySelection is returned when no repositories are selected.
	ErrEmptySelection = errors.New("no repositories selected")

	// ErrDestinationUnresolved is returned when the destination has not been
	// validated.
	ErrDestinationUnresolved = errors.New("destination account has not been validated")
)

// TransportError wraps a network or service failure talking to GitHub. It may
// be transient and is never retried automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
