// ABOUTME: Fact represents a subject/predicate/object triple about the user
// ABOUTME: The object value is encrypted at rest; metadata columns stay plaintext
package models

import "time"

// ConsentScope controls whether a fact may ever leave the local device.
type ConsentScope string

const (
	// ConsentDefault allows the fact to be included in built context.
	ConsentDefault ConsentScope = "default"
	// ConsentNeverUpload excludes the fact from every context bundle,
	// regardless of score or budget.
	ConsentNeverUpload ConsentScope = "never_upload"
)

// PII sensitivity tiers attached to facts.
const (
	PIIPublic    = 0
	PIIPersonal  = 1
	PIISensitive = 2
)

// Fact is one personalization triple, unique on (category, predicate).
type Fact struct {
	ID         string       `json:"id"`
	Category   string       `json:"category"`
	Predicate  string       `json:"predicate"`
	Object     string       `json:"object"`
	Confidence float64      `json:"confidence"`
	PIILevel   int          `json:"pii_level"`
	Consent    ConsentScope `json:"consent_scope"`
	Priority   float64      `json:"priority"`
	UsageCount int          `json:"usage_count"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ValidConsent reports whether s is a known consent scope.
func ValidConsent(s ConsentScope) bool {
	return s == ConsentDefault || s == ConsentNeverUpload
}

// ValidPIILevel reports whether n is a known sensitivity tier.
func ValidPIILevel(n int) bool {
	return n >= PIIPublic && n <= PIISensitive
}
