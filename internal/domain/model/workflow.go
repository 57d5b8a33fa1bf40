package model

// Step is a stage of the transfer workflow.
type Step string

const (
	StepAuth      Step = "auth"
	StepSelect    Step = "select"
	StepConfigure Step = "configure"
	StepConfirm   Step = "confirm"
	StepTransfer  Step = "transfer"
)

// ParseStep converts s to a Step, reporting whether it is known.
func ParseStep(s string) (Step, bool) {
	switch st := Step(s); st {
	case StepAuth, StepSelect, StepConfigure, StepConfirm, StepTransfer:
		return st, true
	default:
		return "", false
	}
}

// CanMove reports whether the workflow may move directly from one step to
// another via MoveTo. Entering StepTransfer is only possible by starting a
// batch, and leaving it only by a reset, so neither appears here.
func CanMove(from, to Step) bool {
	switch from {
	case StepAuth:
		return to == StepSelect
	case StepSelect:
		return to == StepConfigure
	case StepConfigure:
		return to == StepSelect || to == StepConfirm
	case StepConfirm:
		return to == StepConfigure
	default:
		return false
	}
}

// WorkflowState is the read model handed to presentation layers.
type WorkflowState struct {
	Step              Step
	Identity          *Identity
	Repositories      []Repository
	Organizations     []Identity
	Selection         []string
	Destination       Destination
	DestinationStatus ValidationStatus
	Items             []TransferItem
	Outcomes          []TransferOutcome
	Summary           TransferSummary
	BatchID           string
	Transferring      bool
	Loading           bool
	Error             string
}
