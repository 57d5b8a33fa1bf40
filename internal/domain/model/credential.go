package model

import "time"

// Credential pairs a secret token with the identity it authenticated as.
// The two are persisted and restored together; a token without an identity
// (or the reverse) is never handed out.
type Credential struct {
	Token     string
	Identity  Identity
	UpdatedAt time.Time
}
