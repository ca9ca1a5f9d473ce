package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presale/pkg/requestcontext"
)

func clientIP(t *testing.T, trusted TrustedProxies, r *http.Request) string {
	t.Helper()
	var got string
	h := ClientMetadata(trusted)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestcontext.ClientIP(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), r)
	return got
}

func TestClientMetadata(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	t.Run("untrusted peer cannot spoof its address", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/kyc/general", nil)
		r.RemoteAddr = "203.0.113.5:4000"
		r.Header.Set("X-Forwarded-For", "8.8.8.8")
		r.Header.Set("X-Real-IP", "8.8.4.4")
		assert.Equal(t, "203.0.113.5", clientIP(t, proxies, r))
	})

	t.Run("no trusted proxies ignores headers", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.1.2.3:4000"
		r.Header.Set("X-Forwarded-For", "8.8.8.8")
		assert.Equal(t, "10.1.2.3", clientIP(t, nil, r))
	})

	t.Run("trusted proxy forwards the client address", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.1.2.3:4000"
		r.Header.Set("X-Real-IP", "198.51.100.2")
		assert.Equal(t, "198.51.100.2", clientIP(t, proxies, r))
	})

	t.Run("single trusted address", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:4000"
		r.Header.Set("X-Forwarded-For", "198.51.100.9")
		assert.Equal(t, "198.51.100.9", clientIP(t, proxies, r))
	})

	t.Run("ipv6 peer", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "[2001:db8::1]:4711"
		assert.Equal(t, "2001:db8::1", clientIP(t, proxies, r))
	})

	t.Run("user agent is recorded", func(t *testing.T) {
		var gotUA string
		h := ClientMetadata(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			gotUA = requestcontext.UserAgent(r.Context())
		}))
		r := httptest.NewRequest(http.MethodPost, "/kyc", nil)
		r.Header.Set("User-Agent", "provider-webhook/1.0")
		h.ServeHTTP(httptest.NewRecorder(), r)
		assert.Equal(t, "provider-webhook/1.0", gotUA)
	})
}

func TestParseTrustedProxies(t *testing.T) {
	_, err := ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)

	_, err = ParseTrustedProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)

	p, err := ParseTrustedProxies([]string{" ", "::1"})
	require.NoError(t, err)
	assert.True(t, p.Contains("::1"))
	assert.False(t, p.Contains("::2"))
}
