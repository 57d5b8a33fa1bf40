package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// ErrAccountNotFound is returned by LookupAccountByName when the account does
// not exist or is not visible to the token. It is a valid negative answer,
// not a transport failure.
var ErrAccountNotFound = errors.New("account not found")

// GitHubClient defines the driven port for the GitHub capabilities the
// transfer workflow needs. Every method is bound to the token the client was
// created with.
type GitHubClient interface {
	// GetAuthenticatedIdentity returns the account the token belongs to.
	GetAuthenticatedIdentity(ctx context.Context) (model.Identity, error)

	// ListOwnedRepositories returns one page (1-based) of repositories owned by
	// the authenticated account, most recently updated first.
	ListOwnedRepositories(ctx context.Context, page, pageSize int) ([]model.Repository, error)
	// ListOrganizationMemberships returns every organization the account belongs to.
	ListOrganizationMemberships(ctx context.Context) ([]model.Identity, error)
	// ListOrganizationRepositories returns one page (1-based) of an
	// organization's repositories, most recently updated first.
	ListOrganizationRepositories(ctx context.Context, org string, page, pageSize int) ([]model.Repository, error)

	// LookupAccountByName resolves a user or organization login.
	// Returns ErrAccountNotFound when it does not exist.
	LookupAccountByName(ctx context.Context, name string) (model.Identity, error)

	// TransferRepository moves owner/repo to newOwner and returns the
	// repository's new web URL. The transfer is not reversible.
	TransferRepository(ctx context.Context, owner, repo, newOwner string) (string, error)

	// CheckRateLimit is a lightweight liveness probe for the token.
	CheckRateLimit(ctx context.Context) error
}

// GitHubClientFactory creates a GitHubClient authenticated with token.
type GitHubClientFactory func(token string) GitHubClient
