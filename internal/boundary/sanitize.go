// ABOUTME: Input validation and free-text sanitization for boundary payloads
// ABOUTME: Nothing reaches storage before passing through these checks
package boundary

import (
	"regexp"
	"strings"
	"unicode"
)

// Length caps on inbound fields, in runes.
const (
	maxNameLen  = 128
	maxKeyLen   = 128
	maxGoalLen  = 1024
	maxQueryLen = 256
	maxTextLen  = 8192
)

var (
	markupRe = regexp.MustCompile(`<[^>]*>`)
	nameRe   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)
)

// sanitizeText strips markup tags and control characters from free text,
// collapses surrounding whitespace, and truncates to max runes. Newlines and
// tabs survive; everything else non-printable is dropped.
func sanitizeText(s string, max int) string {
	s = markupRe.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > max {
		s = strings.TrimSpace(string(runes[:max]))
	}
	return s
}

// validName accepts identifier-like fields: category, predicate, preference
// keys. These are stored in plaintext columns, so the charset stays narrow.
func validName(s string) bool {
	return s != "" && len(s) <= maxNameLen && nameRe.MatchString(s)
}
