package helpers

import (
	"net/url"
	"strings"
)

// LastSrcsetCandidate picks the last entry of a comma-separated srcset value and
// strips its width/density descriptor. A plain URL is returned unchanged.
func LastSrcsetCandidate(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ",") {
		parts := strings.Split(value, ",")
		value = strings.TrimSpace(parts[len(parts)-1])
	}
	if fields := strings.Fields(value); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// ResolveURL resolves ref against base. Refs that fail to parse are returned trimmed.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil || refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
