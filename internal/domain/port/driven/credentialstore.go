package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// REPOMOVER_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set REPOMOVER_SECRET_KEY")

// CredentialStore defines the driven port for persisting the single active
// credential across restarts. It performs no validation; the adapter layer is
// responsible for encryption.
type CredentialStore interface {
	// Save stores token and identity together, replacing any previous
	// credential. Either both are written or neither is.
	Save(ctx context.Context, cred model.Credential) error

	// Load returns the stored credential, or (nil, nil) when none exists.
	Load(ctx context.Context) (*model.Credential, error)

	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
