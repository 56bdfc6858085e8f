// ABOUTME: Deterministic token-budgeted context selection over vault slices
// ABOUTME: Pure scoring and packing; same goal and snapshot, same bundle
package selector

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/models"
)

// Version names the selection algorithm. Scoring weights are pinned to it:
// changing a weight means bumping the version, so a stored bundle hash always
// identifies exactly one algorithm.
const Version = "v1"

// relevanceWeight balances goal relevance against recency. Pinned to Version.
const relevanceWeight = 0.7

// Policy bounds one selection run.
type Policy struct {
	// MaxPII is the highest pii_level allowed into the bundle.
	MaxPII int
	// TokenBudget caps the bundle's total estimated tokens.
	TokenBudget int
}

// EstimateTokens approximates the token count of text at four characters per
// token, rounding up.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// FromFact renders a fact as a candidate slice.
func FromFact(f models.Fact) models.Slice {
	text := fmt.Sprintf("%s %s: %s", f.Category, f.Predicate, f.Object)
	return models.Slice{
		ID:        f.ID,
		Kind:      models.SliceFact,
		Text:      text,
		PIILevel:  f.PIILevel,
		Consent:   f.Consent,
		Priority:  f.Priority,
		UpdatedAt: f.UpdatedAt,
		Tokens:    EstimateTokens(text),
	}
}

// FromMessage renders a conversation turn as a candidate slice. Message
// content is always treated as personal.
func FromMessage(m models.Message) models.Slice {
	text := fmt.Sprintf("%s: %s", m.Role, m.Content)
	return models.Slice{
		ID:        m.ID,
		Kind:      models.SliceMessage,
		Text:      text,
		PIILevel:  models.PIIPersonal,
		Consent:   models.ConsentDefault,
		UpdatedAt: m.CreatedAt,
		Tokens:    EstimateTokens(text),
	}
}

// FromPreference renders a preference as a candidate slice.
func FromPreference(p models.Preference) models.Slice {
	text := fmt.Sprintf("preference %s: %s", p.Key, p.Value)
	return models.Slice{
		ID:        "pref_" + p.Key,
		Kind:      models.SlicePreference,
		Text:      text,
		PIILevel:  models.PIIPersonal,
		Consent:   models.ConsentDefault,
		UpdatedAt: p.UpdatedAt,
		Tokens:    EstimateTokens(text),
	}
}

// Build selects and packs candidate slices for a goal. It is a pure function
// of its arguments: no clock reads, no randomness, no map-order dependence.
// Consent and PII filtering happen before scoring, so an excluded slice can
// never displace an allowed one.
func Build(goal string, candidates []models.Slice, policy Policy) *models.Bundle {
	allowed := make([]models.Slice, 0, len(candidates))
	for _, s := range candidates {
		if s.Consent == models.ConsentNeverUpload {
			continue
		}
		if s.PIILevel > policy.MaxPII {
			continue
		}
		if s.Text == "" {
			continue
		}
		allowed = append(allowed, s)
	}

	newest := newestUpdate(allowed)
	goalTerms := terms(goal)
	for i := range allowed {
		allowed[i].Score = score(goalTerms, &allowed[i], newest)
	}

	sort.SliceStable(allowed, func(i, j int) bool {
		a, b := allowed[i], allowed[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	bundle := &models.Bundle{SelectorVersion: Version}
	remaining := policy.TokenBudget
	for _, s := range allowed {
		if s.Tokens > remaining {
			continue
		}
		bundle.Slices = append(bundle.Slices, s)
		bundle.TotalTokens += s.Tokens
		remaining -= s.Tokens
	}

	parts := make([]string, 0, len(bundle.Slices)+1)
	parts = append(parts, Version)
	for _, s := range bundle.Slices {
		parts = append(parts, s.ID)
	}
	bundle.Hash = crypto.StableHash(parts...)
	return bundle
}

// score combines goal relevance with snapshot-relative recency, then lets the
// reinforcement priority lift the result. Recency is measured against the
// newest updated_at in the snapshot rather than the wall clock, so the same
// snapshot scores the same tomorrow.
func score(goalTerms map[string]bool, s *models.Slice, newest time.Time) float64 {
	base := relevanceWeight*relevance(goalTerms, s.Text) + (1-relevanceWeight)*recency(s.UpdatedAt, newest)
	return base * (1 + s.Priority)
}

// relevance measures goal-term overlap. Any match at all scores at least 0.5,
// which with relevanceWeight guarantees a relevant slice outranks an
// irrelevant one no matter how fresh the latter is; coverage fills the rest.
func relevance(goalTerms map[string]bool, text string) float64 {
	if len(goalTerms) == 0 {
		return 0
	}
	sliceTerms := terms(text)
	matched := 0
	for t := range goalTerms {
		if sliceTerms[t] {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return 0.5 + 0.5*float64(matched)/float64(len(goalTerms))
}

// recency decays with age relative to the snapshot's newest slice, halving
// roughly every day of gap.
func recency(updated, newest time.Time) float64 {
	if updated.IsZero() || newest.IsZero() {
		return 0
	}
	ageDays := newest.Sub(updated).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return 1 / (1 + ageDays)
}

func newestUpdate(slices []models.Slice) time.Time {
	var newest time.Time
	for _, s := range slices {
		if s.UpdatedAt.After(newest) {
			newest = s.UpdatedAt
		}
	}
	return newest
}

// terms lowercases and splits text into a set of alphanumeric tokens.
func terms(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
