// Package geo resolves a client IP to its ISO country code.
package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Locator returns the ISO 3166-1 alpha-2 country of an IP address, or an
// empty string when unknown.
type Locator interface {
	Country(ctx context.Context, ip string) (string, error)
}

// MaxMind reads a GeoLite2/GeoIP2 country database.
type MaxMind struct {
	db *geoip2.Reader
}

// OpenMaxMind opens the .mmdb file at path.
func OpenMaxMind(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMind{db: db}, nil
}

func (m *MaxMind) Country(_ context.Context, ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid ip %q", ip)
	}
	rec, err := m.db.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip lookup: %w", err)
	}
	return rec.Country.IsoCode, nil
}

func (m *MaxMind) Close() error {
	return m.db.Close()
}

// Static maps fixed IPs to countries. Used when no database is configured and
// in tests.
type Static map[string]string

func (s Static) Country(_ context.Context, ip string) (string, error) {
	return s[ip], nil
}
