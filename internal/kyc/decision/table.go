package decision

import "presale/internal/kyc"

// Route is where a submitter's recipient address comes from.
type Route int

const (
	RouteUnknown Route = iota
	// RouteReserved uses the pool's reserved sentinel; no on-chain action follows.
	RouteReserved
	// RoutePooled consumes the next unused pool address.
	RoutePooled
	// RouteUserSupplied uses the address the submitter entered on the form.
	RouteUserSupplied
)

func (r Route) String() string {
	switch r {
	case RouteReserved:
		return "reserved"
	case RoutePooled:
		return "pooled"
	case RouteUserSupplied:
		return "user_supplied"
	default:
		return "unknown"
	}
}

type routeKey struct {
	kind kyc.SubmitterKind
	us   bool
}

var routes = map[routeKey]Route{
	{kind: kyc.SubmitterVIP, us: true}:      RouteReserved,
	{kind: kyc.SubmitterVIP, us: false}:     RoutePooled,
	{kind: kyc.SubmitterGeneral, us: true}:  RouteUserSupplied,
	{kind: kyc.SubmitterGeneral, us: false}: RouteUserSupplied,
}

// Resolve looks up the address route for a submitter kind and declared
// country.
func Resolve(kind kyc.SubmitterKind, country string) Route {
	return routes[routeKey{kind: kind, us: kyc.NormalizeCountry(country) == kyc.CountryUS}]
}

// RequiresWhitelist reports whether the recipient must be whitelisted on
// chain: only accepted submitters whose address is not the reserved sentinel.
func RequiresWhitelist(outcome kyc.Outcome, recipient, reserved kyc.Address) bool {
	return outcome.IsAccept() && recipient != reserved
}
