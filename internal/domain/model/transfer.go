package model

import "time"

// TransferOutcome records the result of attempting to transfer one
// repository. Outcomes are appended in attempt order and never modified.
type TransferOutcome struct {
	Repository   string
	Success      bool
	NewURL       string
	ErrorMessage string
}

// TransferItem tracks one repository through a batch: pending, then in
// flight, then done with an outcome.
type TransferItem struct {
	Repository string
	State      TransferItemState
	Outcome    *TransferOutcome
}

// TransferSummary tallies the outcomes of a batch.
type TransferSummary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures across outcomes.
func Summarize(outcomes []TransferOutcome) TransferSummary {
	s := TransferSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// TransferRecord is a persisted audit entry for one attempted transfer.
type TransferRecord struct {
	ID           int64
	BatchID      string
	Repository   string
	NewOwner     string
	Success      bool
	NewURL       string
	ErrorMessage string
	AttemptedAt  time.Time
}
