// Package kyc holds the domain vocabulary shared by the verifier, the address
// pool, the decision engine and the participation ledger.
package kyc

import (
	"strings"
	"time"
)

// Address is an opaque blockchain address. The pool and the ledger never
// interpret it; only the whitelist adapter parses it.
type Address string

func (a Address) String() string {
	return string(a)
}

// Outcome is the provider's verdict for a submission. Values other than the
// named constants are carried through untouched.
type Outcome string

const (
	OutcomeAccept Outcome = "ACCEPT"
	OutcomeDeny   Outcome = "DENY"
	OutcomeReview Outcome = "REVIEW"
	OutcomeRetry  Outcome = "RETRY"
)

// IsAccept reports whether the outcome grants sale participation.
func (o Outcome) IsAccept() bool {
	return o == OutcomeAccept
}

const (
	// SubmitterIDVIP is the identifier the VIP form sends for every submitter.
	SubmitterIDVIP = "vip"
	// CountryUS triggers the reserved-address route for VIP submitters.
	CountryUS = "US"
	// NoTransaction is stored when no whitelist transaction was submitted.
	NoTransaction = "0"
)

// SubmitterKind separates the VIP flow from the general (session keyed) flow.
type SubmitterKind int

const (
	SubmitterGeneral SubmitterKind = iota
	SubmitterVIP
)

func (k SubmitterKind) String() string {
	if k == SubmitterVIP {
		return "vip"
	}
	return "general"
}

// KindOf classifies a submitter identifier.
func KindOf(submitterID string) SubmitterKind {
	if submitterID == SubmitterIDVIP {
		return SubmitterVIP
	}
	return SubmitterGeneral
}

// FormData is the provider form section of a verified assertion.
type FormData struct {
	SubmitterID string
	Country     string
	DocCountry  string
	Email       string
	// UserAddress is only present for general-flow submitters.
	UserAddress Address
}

// Payload is the decoded, verified decision payload of one callback.
type Payload struct {
	TransactionID string
	Outcome       Outcome
	Form          FormData
}

// SubmitterKind classifies the payload's submitter.
func (p Payload) SubmitterKind() SubmitterKind {
	return KindOf(p.Form.SubmitterID)
}

// ParticipantRecord is one processed callback in the participation ledger.
type ParticipantRecord struct {
	TransactionID string
	CreatedAt     time.Time
	SourceAddr    string
	Outcome       Outcome
	Address       Address
	SubmitterID   string
	Email         string
	AddrCountry   string
	DocCountry    string
	TxHash        string
}

// HasTransaction reports whether a whitelist transaction was submitted.
func (r ParticipantRecord) HasTransaction() bool {
	return r.TxHash != "" && r.TxHash != NoTransaction
}

// NormalizeCountry upper-cases and trims a country code.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
