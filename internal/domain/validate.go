package domain

import (
	"net/url"
	"strings"
)

// DefaultScheme is prefixed onto scheme-less URLs so that "example.com"
// saves as "https://example.com".
const DefaultScheme = "https"

// ValidateTitle trims raw and rejects the empty result.
func ValidateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", ErrMissingTitle
	}
	return title, nil
}

// NormalizeURL trims raw, prefixes the default scheme when none is
// present, and verifies the result parses as an absolute URL with a
// host. Normalization is idempotent: an already-absolute URL comes
// back unchanged.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrMissingURL
	}

	if !strings.Contains(s, "://") {
		s = DefaultScheme + "://" + s
	}

	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", ErrInvalidURL
	}

	return s, nil
}
