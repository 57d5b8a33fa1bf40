package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// DefaultPageSize is the number of repositories requested per page.
const DefaultPageSize = 100

// pageFetcher returns one page of repositories.
type pageFetcher func(ctx context.Context, page, pageSize int) ([]model.Repository, error)

// InventoryService aggregates every repository visible to the authenticated
// identity: its own, then each organization's in membership order.
type InventoryService struct {
	provider *GitHubClientProvider
	pageSize int
}

// NewInventoryService creates a new InventoryService. A non-positive
// pageSize falls back to DefaultPageSize.
func NewInventoryService(provider *GitHubClientProvider, pageSize int) *InventoryService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &InventoryService{
		provider: provider,
		pageSize: pageSize,
	}
}

// ListAllRepositories returns owned repositories followed by those of each
// organization. Failing to list owned repositories is fatal; organization
// failures are logged and the organization's partial pages are kept.
// Results are de-duplicated by repository ID, first occurrence winning.
func (s *InventoryService) ListAllRepositories(ctx context.Context) ([]model.Repository, error) {
	client := s.provider.Get()
	if client == nil {
		return nil, model.ErrNotAuthenticated
	}

	start := time.Now()

	all, err := s.collectPages(ctx, client.ListOwnedRepositories)
	if err != nil {
		return nil, &model.TransportError{Op: "list owned repositories", Err: err}
	}
	owned := len(all)

	orgs, err := client.ListOrganizationMemberships(ctx)
	if err != nil {
		slog.Warn("listing organizations failed, returning personal repositories only", "error", err)
		return dedupeRepositories(all), nil
	}

	var orgErrors int
	for _, org := range orgs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		fetch := func(ctx context.Context, page, pageSize int) ([]model.Repository, error) {
			return client.ListOrganizationRepositories(ctx, org.Login, page, pageSize)
		}

		repos, err := s.collectPages(ctx, fetch)
		all = append(all, repos...)
		if err != nil {
			slog.Warn("listing organization repositories failed",
				"org", org.Login,
				"kept", len(repos),
				"error", err,
			)
			orgErrors++
		}
	}

	all = dedupeRepositories(all)

	slog.Info("inventory complete",
		"owned", owned,
		"orgs", len(orgs),
		"org_errors", orgErrors,
		"total", len(all),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return all, nil
}

// ListOrganizations returns the identity's organization memberships.
func (s *InventoryService) ListOrganizations(ctx context.Context) ([]model.Identity, error) {
	client := s.provider.Get()
	if client == nil {
		return nil, model.ErrNotAuthenticated
	}

	orgs, err := client.ListOrganizationMemberships(ctx)
	if err != nil {
		return nil, &model.TransportError{Op: "list organizations", Err: err}
	}
	return orgs, nil
}

// collectPages pages through fetch until a short page. On error it returns
// the repositories gathered so far together with the error.
func (s *InventoryService) collectPages(ctx context.Context, fetch pageFetcher) ([]model.Repository, error) {
	var out []model.Repository
	for page := 1; ; page++ {
		repos, err := fetch(ctx, page, s.pageSize)
		if err != nil {
			return out, err
		}
		out = append(out, repos...)
		if len(repos) < s.pageSize {
			return out, nil
		}
	}
}

func dedupeRepositories(repos []model.Repository) []model.Repository {
	seen := make(map[int64]struct{}, len(repos))
	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// organizationSource adapts a slice of identities to fuzzy.Source, matching
// against login and display name.
type organizationSource []model.Identity

func (o organizationSource) String(i int) string {
	if o[i].DisplayName == "" {
		return o[i].Login
	}
	return o[i].Login + " " + o[i].DisplayName
}

func (o organizationSource) Len() int { return len(o) }

// SearchOrganizations ranks orgs by fuzzy match against query, best first.
// A blank query returns orgs unchanged.
func SearchOrganizations(orgs []model.Identity, query string) []model.Identity {
	query = strings.TrimSpace(query)
	if query == "" {
		return orgs
	}

	matches := fuzzy.FindFrom(query, organizationSource(orgs))
	out := make([]model.Identity, 0, len(matches))
	for _, m := range matches {
		out = append(out, orgs[m.Index])
	}
	return out
}
