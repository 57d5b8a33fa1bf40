package model

import (
	"strings"
	"time"
)

// RepositoryOwner identifies the account owning a repository.
type RepositoryOwner struct {
	Login string
	Kind  AccountKind
}

// Repository is a read-only snapshot of a GitHub repository visible to the
// authenticated identity.
type Repository struct {
	ID          int64
	Name        string
	FullName    string
	Description string
	IsPrivate   bool
	Owner       RepositoryOwner
	URL         string
	UpdatedAt   time.Time
	StarCount   int
	ForkCount   int
	Language    string
}

// SelectionKey returns the reference used to select this repository for
// transfer: the bare name when viewer owns it, otherwise "owner/name".
func (r Repository) SelectionKey(viewer string) string {
	if strings.EqualFold(r.Owner.Login, viewer) {
		return r.Name
	}
	return r.FullName
}

// RepositoryFilter narrows an inventory listing. Zero values match everything.
type RepositoryFilter struct {
	Query      string
	Visibility Visibility
	Owner      OwnerFilter
}

// Matches reports whether repo passes every criterion of the filter. Query is
// a case-insensitive substring match against the name and description.
func (f RepositoryFilter) Matches(repo Repository) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(repo.Name), q) &&
			!strings.Contains(strings.ToLower(repo.Description), q) {
			return false
		}
	}

	switch f.Visibility {
	case VisibilityPrivate:
		if !repo.IsPrivate {
			return false
		}
	case VisibilityPublic:
		if repo.IsPrivate {
			return false
		}
	}

	switch f.Owner {
	case OwnerFilterPersonal:
		if repo.Owner.Kind != AccountKindUser {
			return false
		}
	case OwnerFilterOrganization:
		if repo.Owner.Kind != AccountKindOrganization {
			return false
		}
	}

	return true
}

// FilterRepositories returns the repositories matching f, preserving order.
func FilterRepositories(repos []Repository, f RepositoryFilter) []Repository {
	out := make([]Repository, 0, len(repos))
	for _, r := range repos {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}
