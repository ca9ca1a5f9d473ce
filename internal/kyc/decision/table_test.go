package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"presale/internal/kyc"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name    string
		kind    kyc.SubmitterKind
		country string
		want    Route
	}{
		{"vip in the US", kyc.SubmitterVIP, "US", RouteReserved},
		{"vip lower-case US", kyc.SubmitterVIP, " us ", RouteReserved},
		{"vip elsewhere", kyc.SubmitterVIP, "SG", RoutePooled},
		{"general in the US", kyc.SubmitterGeneral, "US", RouteUserSupplied},
		{"general elsewhere", kyc.SubmitterGeneral, "GB", RouteUserSupplied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.kind, tc.country))
		})
	}
}

func TestRequiresWhitelist(t *testing.T) {
	assert.True(t, RequiresWhitelist(kyc.OutcomeAccept, "0xB", "0xA"))
	assert.True(t, RequiresWhitelist(kyc.OutcomeAccept, "0xB", ""))
	assert.False(t, RequiresWhitelist(kyc.OutcomeAccept, "0xA", "0xA"))
	assert.False(t, RequiresWhitelist(kyc.OutcomeDeny, "0xB", "0xA"))
	assert.False(t, RequiresWhitelist(kyc.OutcomeReview, "0xB", "0xA"))
	assert.False(t, RequiresWhitelist(kyc.Outcome("SOMETHING_NEW"), "0xB", "0xA"))
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "reserved", RouteReserved.String())
	assert.Equal(t, "pooled", RoutePooled.String())
	assert.Equal(t, "user_supplied", RouteUserSupplied.String())
	assert.Equal(t, "unknown", RouteUnknown.String())
}
