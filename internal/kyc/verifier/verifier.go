// Package verifier authenticates the identity provider's signed assertion and
// decodes it into a kyc.Payload. Every failure wraps kyc.ErrVerification.
package verifier

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"presale/internal/kyc"
)

const maxAssertionBody = 1 << 20

// Keys holds the RSA public keys assertions may be signed with.
type Keys struct {
	// ProviderOrigin selects Provider; every other origin is checked against Test.
	ProviderOrigin string
	Provider       *rsa.PublicKey
	Test           *rsa.PublicKey
}

// LoadKeys reads PEM encoded public keys. testPath may be empty, in which case
// assertions from any origin other than the provider are rejected.
func LoadKeys(origin, providerPath, testPath string) (Keys, error) {
	keys := Keys{ProviderOrigin: origin}

	provider, err := loadKey(providerPath)
	if err != nil {
		return Keys{}, fmt.Errorf("load provider key: %w", err)
	}
	keys.Provider = provider

	if testPath != "" {
		test, err := loadKey(testPath)
		if err != nil {
			return Keys{}, fmt.Errorf("load test key: %w", err)
		}
		keys.Test = test
	}
	return keys, nil
}

func loadKey(path string) (*rsa.PublicKey, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(pem)
}

// Verifier checks RS256 assertions.
type Verifier struct {
	keys   Keys
	parser *jwt.Parser
}

func New(keys Keys) *Verifier {
	return &Verifier{
		keys:   keys,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})),
	}
}

type formClaims struct {
	UserID     string `json:"user_id"`
	Country    string `json:"country"`
	DocCountry string `json:"docCountry"`
	Email      string `json:"email"`
	BTC        string `json:"btc"`
}

type assertionClaims struct {
	TID       string      `json:"tid"`
	KYCResult string      `json:"kyc_result"`
	FormData  *formClaims `json:"form_data"`
	jwt.RegisteredClaims
}

// Verify authenticates token with the key selected by origin and decodes it.
func (v *Verifier) Verify(origin, token string) (*kyc.Payload, error) {
	key := v.keyFor(origin)
	if key == nil {
		return nil, fmt.Errorf("%w: no key for origin %q", kyc.ErrVerification, origin)
	}

	var claims assertionClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kyc.ErrVerification, err)
	}

	payload, err := claims.payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kyc.ErrVerification, err)
	}
	return payload, nil
}

type assertionRequest struct {
	JWTResponse string `json:"jwtresponse"`
}

// VerifyRequest reads the callback body and Origin header and verifies them.
func (v *Verifier) VerifyRequest(r *http.Request) (*kyc.Payload, error) {
	var body assertionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxAssertionBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode body: %w", kyc.ErrVerification, err)
	}
	if body.JWTResponse == "" {
		return nil, fmt.Errorf("%w: jwtresponse is required", kyc.ErrVerification)
	}
	return v.Verify(r.Header.Get("Origin"), body.JWTResponse)
}

func (v *Verifier) keyFor(origin string) *rsa.PublicKey {
	if origin == v.keys.ProviderOrigin {
		return v.keys.Provider
	}
	return v.keys.Test
}

func (c assertionClaims) payload() (*kyc.Payload, error) {
	if strings.TrimSpace(c.TID) == "" {
		return nil, fmt.Errorf("tid is required")
	}
	if strings.TrimSpace(c.KYCResult) == "" {
		return nil, fmt.Errorf("kyc_result is required")
	}
	if c.FormData == nil {
		return nil, fmt.Errorf("form_data is required")
	}
	f := c.FormData
	if strings.TrimSpace(f.UserID) == "" {
		return nil, fmt.Errorf("form_data.user_id is required")
	}

	country, err := countryCode("form_data.country", f.Country)
	if err != nil {
		return nil, err
	}
	docCountry, err := countryCode("form_data.docCountry", f.DocCountry)
	if err != nil {
		return nil, err
	}

	form := kyc.FormData{
		SubmitterID: f.UserID,
		Country:     country,
		DocCountry:  docCountry,
		Email:       strings.TrimSpace(f.Email),
		UserAddress: kyc.Address(strings.TrimSpace(f.BTC)),
	}
	if kyc.KindOf(form.SubmitterID) == kyc.SubmitterGeneral && form.UserAddress == "" {
		return nil, fmt.Errorf("form_data.btc is required for general submitters")
	}

	return &kyc.Payload{
		TransactionID: c.TID,
		Outcome:       kyc.Outcome(c.KYCResult),
		Form:          form,
	}, nil
}

func countryCode(field, raw string) (string, error) {
	code := kyc.NormalizeCountry(raw)
	if len(code) != 2 {
		return "", fmt.Errorf("%s must be a two letter country code", field)
	}
	return code, nil
}
