// Package urlutil validates and normalizes scan targets before any browser
// resource is spent on them.
package urlutil

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrEmptyURL is returned when the raw target is empty after trimming.
	ErrEmptyURL = errors.New("url is empty")

	// ErrInvalidURL is returned when the target cannot be parsed as an
	// absolute http(s) URL after scheme normalization.
	ErrInvalidURL = errors.New("invalid url")
)

// NormalizeTarget turns raw user input into a scan-ready URL: whitespace is
// trimmed, a missing scheme defaults to https, the host is lowercased and
// IDN-converted to punycode, and default ports are dropped. The result always
// starts with http:// or https://. Normalization is idempotent.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}
	if u.Hostname() == "" {
		return "", ErrInvalidURL
	}

	u.Scheme = strings.ToLower(u.Scheme)

	// Lowercase host and convert IDN -> punycode
	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}

	// Preserve non-default port only
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") || port == "" {
		u.Host = host
	} else {
		u.Host = net.JoinHostPort(host, port)
	}

	// Drop userinfo (credentials)
	u.User = nil

	return u.String(), nil
}
