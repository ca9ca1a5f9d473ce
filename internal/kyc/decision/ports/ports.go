// Package ports declares what the decision engine needs from the pool, the
// ledger and the chain, so the engine never depends on a storage or RPC
// implementation.
package ports

import (
	"context"

	"presale/internal/kyc"
)

// PoolPort hands out recipient addresses.
type PoolPort interface {
	// Reserved returns the sentinel; kyc.ErrPoolNotLoaded when the pool is empty.
	Reserved(ctx context.Context) (kyc.Address, error)
	// AssignNext consumes one address; kyc.ErrPoolExhausted when none remain.
	AssignNext(ctx context.Context) (kyc.Address, error)
}

// LedgerPort persists processed callbacks.
type LedgerPort interface {
	Record(ctx context.Context, rec *kyc.ParticipantRecord) error
	FindByTransactionID(ctx context.Context, transactionID string) (*kyc.ParticipantRecord, error)
}

// WhitelistPort submits the on-chain whitelist transaction.
type WhitelistPort interface {
	AddToWhitelist(ctx context.Context, addr string) (string, error)
}
