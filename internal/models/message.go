// ABOUTME: Message is one conversation turn, immutable once written
// ABOUTME: Content is encrypted at rest; purged only by explicit clear-conversation
package models

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn belonging to a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidRole reports whether r is a known message role.
func ValidRole(r string) bool {
	return r == RoleUser || r == RoleAssistant
}
