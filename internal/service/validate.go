package service

import (
	"net/url"
	"strings"

	"github.com/V1nSky/url-shortener/internal/shortcode"
)

// privateHostPrefixes cover RFC1918-style destinations a public
// shortener must not redirect into.
var privateHostPrefixes = []string{"10.", "192.168.", "172."}

// normalizeDestination validates raw as a shortenable destination and
// returns its canonical form: absolute URL, http/https only, no
// loopback or private-range hosts, no denylisted hosts, trailing slash
// stripped.
func (r *Registry) normalizeDestination(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", ErrInvalidDestination
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidDestination
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "127.0.0.1" {
		return "", ErrInvalidDestination
	}
	for _, prefix := range privateHostPrefixes {
		if strings.HasPrefix(host, prefix) {
			return "", ErrInvalidDestination
		}
	}

	for _, blocked := range r.cfg.DenylistHosts {
		blocked = strings.ToLower(blocked)
		if blocked == "" {
			continue
		}
		// Exact host or subdomain only: "evil.com" blocks
		// "www.evil.com" but not "notevil.com".
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return "", ErrBlockedDestination
		}
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}

// validAlias reports whether a custom alias is acceptable.
func validAlias(alias string) bool {
	return shortcode.ValidAlias(alias)
}
