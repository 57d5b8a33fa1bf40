package model

import "strings"

// Identity is an immutable snapshot of a GitHub account, personal or
// organizational. A changed remote account produces a new Identity value.
type Identity struct {
	Login       string      `json:"login"`
	ID          int64       `json:"id"`
	Kind        AccountKind `json:"type"`
	DisplayName string      `json:"name,omitempty"`
	Email       string      `json:"email,omitempty"`
}

// IsOrganization reports whether the identity is an organization account.
func (i Identity) IsOrganization() bool {
	return i.Kind == AccountKindOrganization
}

// Label returns "Display Name (login)" when a display name differs from the
// login, otherwise just the login.
func (i Identity) Label() string {
	if i.DisplayName == "" || strings.EqualFold(i.DisplayName, i.Login) {
		return i.Login
	}
	return i.DisplayName + " (" + i.Login + ")"
}
