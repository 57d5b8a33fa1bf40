package model

// Destination is the account repositories will be transferred to. Resolved is
// non-nil only when the latest validation round for RawInput succeeded.
type Destination struct {
	RawInput       string
	IsOrganization bool
	Resolved       *Identity
}

// NewOwner returns the case-correct login of the resolved identity, or "" when
// the destination has not been validated.
func (d Destination) NewOwner() string {
	if d.Resolved == nil {
		return ""
	}
	return d.Resolved.Login
}
