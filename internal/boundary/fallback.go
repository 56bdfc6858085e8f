// ABOUTME: Read-only Store over the legacy JSON files, for kill-switch mode
// ABOUTME: Reads keep working when the vault is disabled; writes are rejected
package boundary

import (
	"context"
	"sort"
	"strings"

	"github.com/harper/vault-standalone/internal/legacy"
	"github.com/harper/vault-standalone/internal/models"
	"github.com/harper/vault-standalone/internal/storage"
)

// Fallback serves the boundary from a legacy dataset loaded once at startup.
// Everything is held in memory; the vault file is never touched.
type Fallback struct {
	facts    []models.Fact
	sessions []models.Session
	messages []models.Message
	prefs    []models.Preference
}

// NewFallback converts a legacy dataset into a read-only store.
func NewFallback(data *legacy.Data) *Fallback {
	messages, counts := data.ModelMessages()
	sessions := data.ModelSessions()
	for i := range sessions {
		sessions[i].MessageCount = counts[sessions[i].ID]
	}
	return &Fallback{
		facts:    data.ModelFacts(),
		sessions: sessions,
		messages: messages,
		prefs:    data.ModelPreferences(),
	}
}

func (f *Fallback) SetFact(context.Context, *models.Fact) (string, error) {
	return "", errReadOnly
}

func (f *Fallback) CreateSession(context.Context, *models.Session) (string, error) {
	return "", errReadOnly
}

func (f *Fallback) AddMessage(context.Context, *models.Message) (string, error) {
	return "", errReadOnly
}

func (f *Fallback) GetFacts(_ context.Context, filter storage.FactFilter) ([]models.Fact, error) {
	var out []models.Fact
	for _, fact := range f.facts {
		if filter.Category != "" && fact.Category != filter.Category {
			continue
		}
		if filter.MaxPII >= 0 && fact.PIILevel > filter.MaxPII {
			continue
		}
		out = append(out, fact)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *Fallback) GetRecentMessages(_ context.Context, n int) ([]models.Message, error) {
	out := append([]models.Message(nil), f.messages...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// SearchSessions does a case-insensitive substring scan. No FTS index exists
// in fallback mode; the dataset is small enough that a scan is fine.
func (f *Fallback) SearchSessions(_ context.Context, query string) ([]models.Session, error) {
	q := strings.ToLower(query)
	var out []models.Session
	for _, s := range f.sessions {
		if strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.Goal), q) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *Fallback) ListPreferences(context.Context) ([]models.Preference, error) {
	return append([]models.Preference(nil), f.prefs...), nil
}

func (f *Fallback) Stats(context.Context) (*storage.Stats, error) {
	return &storage.Stats{
		Facts:       len(f.facts),
		Messages:    len(f.messages),
		Sessions:    len(f.sessions),
		Preferences: len(f.prefs),
	}, nil
}

func (f *Fallback) GetAllMeta(context.Context) (map[string]string, error) {
	return map[string]string{"mode": "legacy-fallback"}, nil
}
