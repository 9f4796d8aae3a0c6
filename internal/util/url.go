package util //nolint:revive // package name util hosts shared URL helpers used by the client and proxy

import "strings"

// JoinURL appends segment to base with exactly one separating slash.
// An empty segment returns base unchanged, so joining "/api/" remainders never
// produces a trailing double slash.
func JoinURL(base, segment string) string {
	if segment == "" {
		return base
	}
	if base == "" {
		return segment
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(segment, "/")
}

// StripPrefixOnce removes a single leading occurrence of prefix from path.
// The boolean reports whether the prefix was present.
func StripPrefixOnce(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return path, false
	}
	return path[len(prefix):], true
}
