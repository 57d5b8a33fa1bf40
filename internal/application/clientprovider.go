package application

import (
	"sync"

	"github.com/ericfisherdev/repomover/internal/domain/model"
	"github.com/ericfisherdev/repomover/internal/domain/port/driven"
)

// GitHubClientProvider enables runtime hot-swap of the GitHub client.
// It holds a mutex-protected reference to the current driven.GitHubClient
// and the identity it authenticated as, so a new login takes effect without
// restarting the application.
type GitHubClientProvider struct {
	mu       sync.RWMutex
	client   driven.GitHubClient
	identity *model.Identity
}

// NewGitHubClientProvider creates a provider with no active client.
func NewGitHubClientProvider() *GitHubClientProvider {
	return &GitHubClientProvider{}
}

// Get returns the current GitHub client, or nil when nobody is logged in.
func (p *GitHubClientProvider) Get() driven.GitHubClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Identity returns a copy of the identity bound to the current client.
func (p *GitHubClientProvider) Identity() *model.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.identity == nil {
		return nil
	}
	id := *p.identity
	return &id
}

// Login returns the current identity's login, or "" when logged out.
func (p *GitHubClientProvider) Login() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.identity == nil {
		return ""
	}
	return p.identity.Login
}

// Replace swaps the current client and identity. The next caller of Get()
// or Identity() receives the new values.
func (p *GitHubClientProvider) Replace(client driven.GitHubClient, identity model.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
	p.identity = &identity
}

// Clear drops the client and identity.
func (p *GitHubClientProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	p.identity = nil
}

// HasClient returns true if a non-nil client is currently held.
func (p *GitHubClientProvider) HasClient() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}
