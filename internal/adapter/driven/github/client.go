// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

const defaultWebURL = "https://github.com/"

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh     *gh.Client
	webURL string // Base for constructed repository URLs, with trailing slash.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. oauth2 (static PAT bearer token)
//  3. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  4. go-github (GitHub REST API client)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	authTransport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base:   cacheTransport,
	}
	rateLimitClient := github_ratelimit.NewClient(authTransport)

	return &Client{
		gh:     gh.NewClient(rateLimitClient),
		webURL: defaultWebURL,
	}
}

// NewFactory returns a driven.GitHubClientFactory producing production clients.
func NewFactory() driven.GitHubClientFactory {
	return func(token string) driven.GitHubClient {
		return NewClient(token)
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:     client,
		webURL: defaultWebURL,
	}, nil
}

// GetAuthenticatedIdentity returns the account the token belongs to.
func (c *Client) GetAuthenticatedIdentity(ctx context.Context) (model.Identity, error) {
	user, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return model.Identity{}, fmt.Errorf("fetching authenticated user: %w", err)
	}

	logRateLimit(resp, "user", 0, 1)

	return mapUser(user), nil
}

// ListOwnedRepositories returns one page of repositories owned by the
// authenticated user, most recently updated first.
func (c *Client) ListOwnedRepositories(ctx context.Context, page, pageSize int) ([]model.Repository, error) {
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Type:      "owner",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: pageSize,
		},
	}

	repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing owned repositories (page %d): %w", page, err)
	}

	logRateLimit(resp, "user/repos", page, len(repos))

	return mapRepositories(repos), nil
}

// ListOrganizationMemberships returns every organization the authenticated
// user belongs to. It handles pagination automatically.
func (c *Client) ListOrganizationMemberships(ctx context.Context) ([]model.Identity, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var orgs []model.Identity

	for {
		page, resp, err := c.gh.Organizations.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("listing organizations (page %d): %w", opts.Page, err)
		}

		logRateLimit(resp, "user/orgs", opts.Page, len(page))

		for _, org := range page {
			orgs = append(orgs, mapOrganization(org))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if orgs == nil {
		orgs = []model.Identity{}
	}

	return orgs, nil
}

// ListOrganizationRepositories returns one page of an organization's
// repositories, most recently updated first.
func (c *Client) ListOrganizationRepositories(ctx context.Context, org string, page, pageSize int) ([]model.Repository, error) {
	opts := &gh.RepositoryListByOrgOptions{
		Type:      "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: pageSize,
		},
	}

	repos, resp, err := c.gh.Repositories.ListByOrg(ctx, org, opts)
	if err != nil {
		return nil, fmt.Errorf("listing repositories for org %s (page %d): %w", org, page, err)
	}

	logRateLimit(resp, "orgs/"+org+"/repos", page, len(repos))

	return mapRepositories(repos), nil
}

// LookupAccountByName resolves a user or organization login. A 404 maps to
// driven.ErrAccountNotFound; every other failure is returned wrapped.
func (c *Client) LookupAccountByName(ctx context.Context, name string) (model.Identity, error) {
	user, resp, err := c.gh.Users.Get(ctx, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return model.Identity{}, fmt.Errorf("looking up account %q: %w", name, driven.ErrAccountNotFound)
		}
		return model.Identity{}, fmt.Errorf("looking up account %q: %w", name, err)
	}

	logRateLimit(resp, "users/"+name, 0, 1)

	return mapUser(user), nil
}

// TransferRepository moves owner/repo to newOwner. GitHub answers 202 Accepted
// and completes the move asynchronously; go-github reports that as an
// AcceptedError, which is treated as success here.
func (c *Client) TransferRepository(ctx context.Context, owner, repo, newOwner string) (string, error) {
	req := gh.TransferRequest{NewOwner: newOwner}

	moved, resp, err := c.gh.Repositories.Transfer(ctx, owner, repo, req)
	if err != nil {
		var accepted *gh.AcceptedError
		if !errors.As(err, &accepted) {
			return "", fmt.Errorf("transferring %s/%s to %s: %s", owner, repo, newOwner, describeError(err))
		}
	}

	logRateLimit(resp, "repos/"+owner+"/"+repo+"/transfer", 0, 1)

	if u := moved.GetHTMLURL(); u != "" {
		return u, nil
	}
	return c.webURL + newOwner + "/" + repo, nil
}

// CheckRateLimit fetches the rate limit status. It costs no quota and fails
// fast for revoked or malformed tokens.
func (c *Client) CheckRateLimit(ctx context.Context) error {
	limits, resp, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return fmt.Errorf("fetching rate limit: %w", err)
	}

	if core := limits.GetCore(); core != nil {
		slog.Debug("github rate limit probe",
			"remaining", core.Remaining,
			"limit", core.Limit,
		)
	}
	logRateLimit(resp, "rate_limit", 0, 0)

	return nil
}

// describeError extracts the human-readable message from a GitHub error
// response, falling back to the error text.
func describeError(err error) string {
	var ghErr *gh.ErrorResponse
	if !errors.As(err, &ghErr) {
		return err.Error()
	}

	parts := []string{}
	if ghErr.Message != "" {
		parts = append(parts, ghErr.Message)
	}
	for _, e := range ghErr.Errors {
		if e.Message != "" {
			parts = append(parts, e.Message)
		}
	}
	if len(parts) == 0 {
		return err.Error()
	}

	msg := strings.Join(parts, ": ")
	if ghErr.Response != nil {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, ghErr.Response.StatusCode)
	}
	return msg
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapUser converts a go-github User to a domain Identity.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapUser(u *gh.User) model.Identity {
	kind := model.AccountKindUser
	if u.GetType() == string(model.AccountKindOrganization) {
		kind = model.AccountKindOrganization
	}

	return model.Identity{
		Login:       u.GetLogin(),
		ID:          u.GetID(),
		Kind:        kind,
		DisplayName: u.GetName(),
		Email:       u.GetEmail(),
	}
}

// mapOrganization converts a go-github Organization to a domain Identity.
// The membership listing omits the display name, so it is usually empty.
func mapOrganization(o *gh.Organization) model.Identity {
	return model.Identity{
		Login:       o.GetLogin(),
		ID:          o.GetID(),
		Kind:        model.AccountKindOrganization,
		DisplayName: o.GetName(),
	}
}

func mapRepositories(repos []*gh.Repository) []model.Repository {
	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, mapRepository(r))
	}
	return out
}

// mapRepository converts a go-github Repository to a domain Repository.
func mapRepository(r *gh.Repository) model.Repository {
	ownerKind := model.AccountKindUser
	if r.GetOwner().GetType() == string(model.AccountKindOrganization) {
		ownerKind = model.AccountKindOrganization
	}

	return model.Repository{
		ID:          r.GetID(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.GetDescription(),
		IsPrivate:   r.GetPrivate(),
		Owner: model.RepositoryOwner{
			Login: r.GetOwner().GetLogin(),
			Kind:  ownerKind,
		},
		URL:       r.GetHTMLURL(),
		UpdatedAt: r.GetUpdatedAt().Time,
		StarCount: r.GetStargazersCount(),
		ForkCount: r.GetForksCount(),
		Language:  r.GetLanguage(),
	}
}
