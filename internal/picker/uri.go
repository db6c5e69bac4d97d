package picker

import (
	"fmt"
	"net/url"
	"strings"
)

type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case Android, IOS:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform %q (want android or ios)", s)
	}
}

// NormalizeURI returns the URI the screen displays and uploads. iOS pickers
// hand back bare absolute paths that need a file:// URI, percent-encoded so
// PathFromURI gives the same path back; Android URIs are used as is.
func NormalizeURI(p Platform, raw string) string {
	if p == IOS && !strings.HasPrefix(raw, "file://") {
		return (&url.URL{Scheme: "file", Path: raw}).String()
	}
	return raw
}

// PathFromURI turns a picked image URI into a local filesystem path.
// Bare paths are returned unchanged.
func PathFromURI(uri string) (string, error) {
	if uri == "" {
		return "", fmt.Errorf("empty image uri")
	}
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse image uri: %w", err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported image uri scheme %q", u.Scheme)
	}
	return u.Path, nil
}
