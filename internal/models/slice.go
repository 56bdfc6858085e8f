// ABOUTME: Slice and Bundle are the units of context selection
// ABOUTME: A bundle carries its selector version and hash so outputs are provable
package models

import "time"

// SliceKind identifies what a context slice was built from.
type SliceKind string

const (
	SliceFact       SliceKind = "fact"
	SliceMessage    SliceKind = "message"
	SlicePreference SliceKind = "preference"
)

// Slice is one candidate unit of context: a fact, message, or preference
// rendered as text, plus the metadata the selector filters and sorts on.
type Slice struct {
	ID        string       `json:"id"`
	Kind      SliceKind    `json:"kind"`
	Text      string       `json:"text"`
	PIILevel  int          `json:"pii_level"`
	Consent   ConsentScope `json:"consent_scope"`
	Priority  float64      `json:"priority"`
	UpdatedAt time.Time    `json:"updated_at"`
	Tokens    int          `json:"tokens"`
	Score     float64      `json:"score"`
}

// Bundle is the packed output of one buildContext call. Two identical
// (goal, snapshot) inputs must produce byte-identical bundles, which the
// Hash field lets callers verify.
type Bundle struct {
	Slices          []Slice `json:"slices"`
	SelectorVersion string  `json:"selector_version"`
	Hash            string  `json:"hash"`
	TotalTokens     int     `json:"total_tokens"`
}

// FactIDs returns the ids of the fact slices in the bundle, in packed order.
// The reinforcement loop uses these to name exactly which facts were used.
func (b *Bundle) FactIDs() []string {
	var ids []string
	for _, s := range b.Slices {
		if s.Kind == SliceFact {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
