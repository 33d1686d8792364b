package security

import (
	"net/url"
	"strings"
)

// allowedDomains are destinations pre-approved for silent navigation.
// Anything else requires explicit user confirmation before the redirect
// proceeds. Hardcoded, as is the blocked-scheme list below.
var allowedDomains = []string{
	"google.com",
	"youtube.com",
	"github.com",
	"wikipedia.org",
	"zoom.us",
	"microsoft.com",
	"apple.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
}

// blockedSchemes are checked case-insensitively anywhere in the raw
// string, not just at the front; defense in depth beyond the parsed
// scheme check.
var blockedSchemes = []string{
	"javascript:",
	"data:",
	"vbscript:",
	"file:",
	"ftp:",
}

// linkHints mark raw strings that look like URLs typed without a scheme;
// such strings are retried with an https:// prefix.
var linkHints = []string{
	"www.",
	".com",
	".org",
	".net",
	".io",
	".dev",
	".co",
}

// Classification is the resolver's dispatch decision for stored content.
type Classification struct {
	// Navigable is true when the content parses as an http/https URL.
	Navigable bool
	// TargetURL is the destination to navigate to (may carry a prefixed
	// https:// scheme the user omitted). Empty when not navigable.
	TargetURL string
	// Allowed is true when the destination host is allow-listed for
	// silent navigation. Meaningless when Navigable is false.
	Allowed bool
}

// Classify decides whether stored content is a navigable URL or raw text
// to display. Content containing any blocked scheme is never navigable,
// regardless of how it parses.
func Classify(raw string) Classification {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	for _, scheme := range blockedSchemes {
		if strings.Contains(lower, scheme) {
			return Classification{}
		}
	}

	if u, err := url.Parse(trimmed); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return Classification{
			Navigable: true,
			TargetURL: trimmed,
			Allowed:   IsAllowedDomain(u.Hostname()),
		}
	}

	// No usable scheme; retry with https:// when the string looks like a
	// bare domain.
	for _, hint := range linkHints {
		if strings.Contains(lower, hint) {
			candidate := "https://" + trimmed
			if u, err := url.Parse(candidate); err == nil && u.Host != "" {
				return Classification{
					Navigable: true,
					TargetURL: candidate,
					Allowed:   IsAllowedDomain(u.Hostname()),
				}
			}
			break
		}
	}

	return Classification{}
}

// IsAllowedDomain reports whether the host exactly matches or is a
// subdomain of an allow-listed domain.
func IsAllowedDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, domain := range allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
