// ===========================================
// Package clickmeta - Click Metadata Extraction
// ===========================================
// Turns an incoming redirect request into the descriptive fields of a
// click event: hashed client IP, user-agent breakdown and geo lookup.
// Every field is independently optional; whatever cannot be determined
// is simply left absent.

package clickmeta

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/mileusna/useragent"
)

// Meta is the extracted click metadata handed to the analytics
// ingestor. Nil pointer fields mean "undeterminable".
type Meta struct {
	IPHash      string
	CountryCode *string
	City        *string
	Browser     *string
	OS          *string
	DeviceType  *string
	Referer     *string
}

// GeoResolver maps an IP address to a country code and city. Geo
// databases are deployment-specific, so the lookup stays behind an
// interface; NopGeo is the default.
type GeoResolver interface {
	Lookup(ip string) (countryCode, city *string)
}

// NopGeo is a GeoResolver that never resolves anything.
type NopGeo struct{}

// Lookup implements GeoResolver.
func (NopGeo) Lookup(string) (countryCode, city *string) { return nil, nil }

// Extractor builds click metadata from HTTP requests.
type Extractor struct {
	geo GeoResolver
}

// NewExtractor creates an extractor. A nil geo resolver falls back to
// NopGeo.
func NewExtractor(geo GeoResolver) *Extractor {
	if geo == nil {
		geo = NopGeo{}
	}
	return &Extractor{geo: geo}
}

// FromRequest extracts click metadata from a redirect request. The raw
// client IP is hashed immediately and never retained.
func (e *Extractor) FromRequest(r *http.Request) Meta {
	ip := ClientIP(r)

	meta := Meta{IPHash: HashIP(ip)}
	meta.CountryCode, meta.City = e.geo.Lookup(ip)

	if ua := r.UserAgent(); ua != "" {
		meta.Browser, meta.OS, meta.DeviceType = parseUserAgent(ua)
	}
	if referer := r.Referer(); referer != "" {
		meta.Referer = &referer
	}

	return meta
}

// ClientIP returns the client address, preferring the first entry of
// X-Forwarded-For when the service runs behind a proxy.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HashIP returns the sha256 hex digest of an IP address. One-way:
// analytics only ever sees the hash.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}

// parseUserAgent breaks a user-agent string into browser, OS and
// device type. Unrecognized parts stay nil.
func parseUserAgent(raw string) (browser, os, deviceType *string) {
	ua := useragent.Parse(raw)

	if ua.Name != "" {
		browser = &ua.Name
	}
	if ua.OS != "" {
		os = &ua.OS
	}

	var device string
	switch {
	case ua.Bot:
		device = "bot"
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Desktop:
		device = "desktop"
	}
	if device != "" {
		deviceType = &device
	}

	return browser, os, deviceType
}
