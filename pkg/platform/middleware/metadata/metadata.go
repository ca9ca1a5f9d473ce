package metadata

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"presale/pkg/requestcontext"
)

// TrustedProxies lists the peers whose forwarding headers are believed.
// The zero value trusts nobody, so the TCP peer address is always used.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts CIDRs ("10.0.0.0/8") and bare addresses.
func ParseTrustedProxies(values []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", v, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Contains reports whether ip belongs to a trusted proxy.
func (t TrustedProxies) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientMetadata stores the submitter network address and User-Agent in the
// request context. Forwarding headers are honoured, through chi's RealIP,
// only when the TCP peer is a trusted proxy; anyone else gets their own
// peer address recorded. The callback handler persists this address with
// every participant record and the general form geolocates it.
func ClientMetadata(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithClientMetadata(r.Context(), peerIP(r.RemoteAddr), r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		forwarded := chimw.RealIP(record)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if trusted.Contains(peerIP(r.RemoteAddr)) {
				forwarded.ServeHTTP(w, r)
				return
			}
			record.ServeHTTP(w, r)
		})
	}
}

// peerIP strips the port from a RemoteAddr. chi's RealIP stores a bare
// address, so both forms are accepted.
func peerIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
