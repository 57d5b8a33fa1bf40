package driven

import (
	"context"

	"github.com/ericfisherdev/repomover/internal/domain/model"
)

// TransferLogStore defines the driven port for the transfer audit log.
type TransferLogStore interface {
	// Record appends one attempted transfer.
	Record(ctx context.Context, rec model.TransferRecord) error
	// ListByBatch returns a batch's records in attempt order.
	ListByBatch(ctx context.Context, batchID string) ([]model.TransferRecord, error)
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.TransferRecord, error)
}
