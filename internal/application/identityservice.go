package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// IdentityService authenticates tokens, restores persisted sessions, and
// resolves arbitrary account names through the validation cache.
type IdentityService struct {
	newClient driven.GitHubClientFactory
	store     driven.CredentialStore
	provider  *GitHubClientProvider
	cache     *ValidationCache
}

// NewIdentityService creates a new IdentityService with all required dependencies.
func NewIdentityService(
	newClient driven.GitHubClientFactory,
	store driven.CredentialStore,
	provider *GitHubClientProvider,
	cache *ValidationCache,
) *IdentityService {
	return &IdentityService{
		newClient: newClient,
		store:     store,
		provider:  provider,
		cache:     cache,
	}
}

// Authenticate validates token against GitHub and, only if both the identity
// call and the rate limit probe succeed, persists it and makes it the active
// credential. On failure the previously active session is left untouched.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, fmt.Errorf("%w: token is empty", model.ErrAuthenticationFailed)
	}

	client := s.newClient(token)

	identity, err := client.GetAuthenticatedIdentity(ctx)
	if err != nil {
		slog.Warn("token rejected", "error", err)
		return model.Identity{}, fmt.Errorf("%w: %w", model.ErrAuthenticationFailed, err)
	}

	if err := client.CheckRateLimit(ctx); err != nil {
		slog.Warn("token failed capability probe", "login", identity.Login, "error", err)
		return model.Identity{}, fmt.Errorf("%w: %w", model.ErrAuthenticationFailed, err)
	}

	cred := model.Credential{Token: token, Identity: identity}
	if err := s.store.Save(ctx, cred); err != nil {
		return model.Identity{}, fmt.Errorf("persist credential: %w", err)
	}

	s.provider.Replace(client, identity)
	s.cache.Clear()

	slog.Info("authenticated", "login", identity.Login, "id", identity.ID)

	return identity, nil
}

// Restore reloads the persisted credential and re-validates it. A credential
// that fails the liveness probe is cleared and (nil, nil) is returned.
func (s *IdentityService) Restore(ctx context.Context) (*model.Identity, error) {
	cred, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return nil, nil
	}

	client := s.newClient(cred.Token)
	if err := client.CheckRateLimit(ctx); err != nil {
		slog.Warn("stored credential is no longer valid, clearing", "login", cred.Identity.Login, "error", err)
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("clear stale credential: %w", clearErr)
		}
		return nil, nil
	}

	s.provider.Replace(client, cred.Identity)
	s.cache.Clear()

	slog.Info("restored session", "login", cred.Identity.Login)

	identity := cred.Identity
	return &identity, nil
}

// CheckLiveness re-validates the active client. It returns false when no
// client is active or the probe fails for any reason.
func (s *IdentityService) CheckLiveness(ctx context.Context) bool {
	client := s.provider.Get()
	if client == nil {
		return false
	}
	if err := client.CheckRateLimit(ctx); err != nil {
		slog.Debug("liveness probe failed", "error", err)
		return false
	}
	return true
}

// Logout drops the active client, the lookup cache, and the persisted
// credential.
func (s *IdentityService) Logout(ctx context.Context) error {
	s.provider.Clear()
	s.cache.Clear()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	slog.Info("logged out")
	return nil
}

// Current returns the identity of the active session, or nil.
func (s *IdentityService) Current() *model.Identity {
	return s.provider.Identity()
}

// LookupAccount resolves name to an identity. A nonexistent account yields
// (nil, nil) and is cached like a hit; transport failures are returned as
// *model.TransportError and are not cached.
func (s *IdentityService) LookupAccount(ctx context.Context, name string) (*model.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	if identity, hit := s.cache.Get(name); hit {
		slog.Debug("account lookup cache hit", "name", name, "found", identity != nil)
		return identity, nil
	}

	client := s.provider.Get()
	if client == nil {
		return nil, model.ErrNotAuthenticated
	}

	identity, err := client.LookupAccountByName(ctx, name)
	if err != nil {
		if errors.Is(err, driven.ErrAccountNotFound) {
			s.cache.Put(name, nil)
			return nil, nil
		}
		return nil, &model.TransportError{Op: "look up account " + name, Err: err}
	}

	s.cache.Put(name, &identity)
	return &identity, nil
}
