// ABOUTME: Session is one conversation thread with plaintext title and goal
// ABOUTME: Title and goal are deliberately safe for full-text indexing
package models

import "time"

// Session is one conversation thread. Title and goal are the only
// conversation-derived columns stored in plaintext, so they are the only
// columns the full-text index may cover.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Goal         string    `json:"goal"`
	StartedAt    time.Time `json:"started_at"`
	MessageCount int       `json:"message_count"`
}
