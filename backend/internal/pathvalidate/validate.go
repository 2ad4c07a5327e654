// Package pathvalidate turns a raw request-line path into a safe, canonical
// URL path or rejects it, guarding the route index against traversal and
// other hostile input (spec.md §4.F).
package pathvalidate

import (
	"net/url"
	"strings"

	"github.com/caic-xyz/staticd/backend/internal/httperr"
)

const (
	maxPathLength   = 1024
	maxComponents   = 32
	maxComponentLen = 255
)

const wellKnownPrefix = ".well-known"

const disallowedChars = "\\<>|?*"

// Validate applies the spec.md §4.F rules to a raw request-target path and
// returns its canonical, safe form.
func Validate(raw string) (string, error) {
	if len(raw) > maxPathLength {
		return "", httperr.PathRejected("path exceeds maximum length")
	}
	if !strings.HasPrefix(raw, "/") {
		return "", httperr.PathRejected("path must start with /")
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", httperr.PathRejected("invalid percent-encoding")
	}

	if strings.ContainsRune(decoded, 0) {
		return "", httperr.PathRejected("path contains a NUL byte")
	}
	if strings.ContainsAny(decoded, disallowedChars) {
		return "", httperr.PathRejected("path contains a disallowed character")
	}

	rawParts := strings.Split(decoded, "/")
	// rawParts[0] is always "" because decoded starts with "/".
	parts := rawParts[1:]
	if len(parts) > maxComponents {
		return "", httperr.PathRejected("too many path components")
	}

	safe := make([]string, 0, len(parts))
	for _, c := range parts {
		if c == "" {
			// Collapses doubled slashes, per spec.md §4.F.
			continue
		}
		if c == "." || c == ".." {
			return "", httperr.PathRejected("path traversal attempt")
		}
		if len(c) > maxComponentLen {
			return "", httperr.PathRejected("path component too long")
		}
		if strings.HasPrefix(c, ".") && c != wellKnownPrefix {
			return "", httperr.PathRejected("access to hidden paths denied")
		}
		safe = append(safe, c)
	}

	if len(safe) == 0 {
		return "/", nil
	}
	return "/" + strings.Join(safe, "/"), nil
}
