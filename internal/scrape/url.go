package scrape

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so the queue can de-duplicate by it.
// It lowercases the scheme and host, removes default ports and fragments,
// sorts query parameters, and trims a trailing slash from the path.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Domain extracts the lowercased hostname from a URL, or the input itself
// when parsing fails.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
