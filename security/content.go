package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"qr-code-tracker/utils"
)

const (
	MaxTextLength = 4000
	MaxNameLength = 100
)

// blacklistPatterns are injection patterns rejected on sight in any
// user-supplied content field. Reject-on-match; the allow-list approach
// is reserved for redirect domains.
var blacklistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)vbscript\s*:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)<\s*object`),
	regexp.MustCompile(`(?i)<\s*embed`),
}

// ValidateCreateInput checks the content and name of a record before
// creation: trims, enforces length bounds, and scans both fields against
// the injection blacklist. Bounds are counted in characters, not bytes,
// so multibyte content is not penalized.
func ValidateCreateInput(text, name string) error {
	text = strings.TrimSpace(text)
	name = strings.TrimSpace(name)

	if text == "" {
		return &utils.ValidationError{Field: "text", Err: utils.ErrEmptyText}
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return &utils.ValidationError{Field: "text", Err: utils.ErrTextTooLong}
	}
	if name == "" {
		return &utils.ValidationError{Field: "name", Err: utils.ErrEmptyName}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return &utils.ValidationError{Field: "name", Err: utils.ErrNameTooLong}
	}

	if pattern := matchBlacklist(text); pattern != "" {
		return &utils.SecurityRejection{Field: "text", Pattern: pattern}
	}
	if pattern := matchBlacklist(name); pattern != "" {
		return &utils.SecurityRejection{Field: "name", Pattern: pattern}
	}
	return nil
}

func matchBlacklist(value string) string {
	for _, re := range blacklistPatterns {
		if re.MatchString(value) {
			return re.String()
		}
	}
	return ""
}
