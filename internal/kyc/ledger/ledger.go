// Package ledger records one participant row per processed callback.
package ledger

import (
	"context"

	"presale/internal/kyc"
)

// Store is the participation ledger. Record rejects a second row for the same
// transaction identifier with sentinel.ErrConflict; lookups return
// sentinel.ErrNotFound when nothing matches.
type Store interface {
	Record(ctx context.Context, rec *kyc.ParticipantRecord) error
	FindByTransactionID(ctx context.Context, transactionID string) (*kyc.ParticipantRecord, error)
	// FindBySubmitter returns the most recently recorded row for a
	// submitter identifier.
	FindBySubmitter(ctx context.Context, submitterID string) (*kyc.ParticipantRecord, error)
}
