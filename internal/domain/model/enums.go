package model

// AccountKind distinguishes personal accounts from organizations. Values match
// the "type" field returned by the GitHub users API.
type AccountKind string

const (
	AccountKindUser         AccountKind = "User"
	AccountKindOrganization AccountKind = "Organization"
)

// Visibility filters repositories by privacy.
type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// OwnerFilter filters repositories by the kind of account that owns them.
type OwnerFilter string

const (
	OwnerFilterAll          OwnerFilter = "all"
	OwnerFilterPersonal     OwnerFilter = "personal"
	OwnerFilterOrganization OwnerFilter = "organization"
)

// ValidationStatus is the state of the destination resolver for the most
// recent input.
type ValidationStatus string

const (
	ValidationIdle       ValidationStatus = "idle"       // Blank input or abandoned round.
	ValidationPending    ValidationStatus = "pending"    // Debounce window running.
	ValidationValidating ValidationStatus = "validating" // Round dispatched, awaiting result.
	ValidationValid      ValidationStatus = "valid"
	ValidationInvalid    ValidationStatus = "invalid"
)

// TransferItemState tracks a single repository through a batch.
type TransferItemState string

const (
	TransferItemPending  TransferItemState = "pending"
	TransferItemInFlight TransferItemState = "in_flight"
	TransferItemDone     TransferItemState = "done"
)
