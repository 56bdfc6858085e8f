// ABOUTME: Preference is a keyed user setting with an encrypted value
// ABOUTME: Scope records whether the user stated it or the assistant inferred it
package models

import "time"

// Preference scopes.
const (
	ScopeExplicit = "explicit"
	ScopeImplicit = "implicit"
)

// Preference is one user setting. The value is encrypted at rest.
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Scope     string    `json:"scope"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidScope reports whether s is a known preference scope.
func ValidScope(s string) bool {
	return s == ScopeExplicit || s == ScopeImplicit
}
