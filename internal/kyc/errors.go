package kyc

import "errors"

// Failure kinds of callback processing. Every failure is reported to the
// provider identically; these let operators and tests tell them apart.
var (
	ErrVerification    = errors.New("assertion verification failed")
	ErrPoolExhausted   = errors.New("address pool exhausted")
	ErrPoolNotLoaded   = errors.New("address pool not loaded")
	ErrWhitelistClient = errors.New("whitelist client failed")
	ErrPersistence     = errors.New("participant persistence failed")
	ErrInFlight        = errors.New("callback already in flight")
	ErrClaim           = errors.New("callback claim unavailable")
)

// FailureKind maps err to a stable label for metrics and logs.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrVerification):
		return "verification"
	case errors.Is(err, ErrPoolExhausted):
		return "pool_exhausted"
	case errors.Is(err, ErrPoolNotLoaded):
		return "pool_not_loaded"
	case errors.Is(err, ErrWhitelistClient):
		return "whitelist_client"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrInFlight):
		return "in_flight"
	case errors.Is(err, ErrClaim):
		return "claim"
	default:
		return "unknown"
	}
}
