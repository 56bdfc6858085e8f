// ABOUTME: Reader for the pre-vault legacy format: one JSON file per entity
// ABOUTME: Also serves as the read-only fallback store behind the kill switch
package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/harper/vault-standalone/internal/models"
)

// Legacy file names inside the legacy data directory.
const (
	ProfileFile     = "profile.json"
	FactsFile       = "facts.json"
	SessionsFile    = "sessions.json"
	MessagesFile    = "messages.json"
	PreferencesFile = "preferences.json"
)

// ErrMalformed is returned when a legacy file exists but cannot be parsed.
// A malformed record is an error, never an implicitly-empty default; masking
// it would silently lose user data.
var ErrMalformed = errors.New("malformed legacy file")

// Profile is the legacy user profile singleton.
type Profile struct {
	Name             string   `json:"name"`
	Preferences      []string `json:"preferences"`
	TopicsOfInterest []string `json:"topics_of_interest"`
}

// Fact is one legacy fact, keyed by id in facts.json.
type Fact struct {
	Category     string  `json:"category"`
	Predicate    string  `json:"predicate"`
	Value        string  `json:"value"`
	Confidence   float64 `json:"confidence"`
	PIILevel     int     `json:"pii_level"`
	ConsentScope string  `json:"consent_scope"`
	Priority     float64 `json:"priority"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// Session is one legacy conversation thread, keyed by id in sessions.json.
type Session struct {
	Title     string `json:"title"`
	Goal      string `json:"goal"`
	StartedAt string `json:"started_at"`
}

// Message is one legacy turn, keyed by id in messages.json.
type Message struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Preference is one legacy setting, keyed by preference key.
type Preference struct {
	Value     string `json:"value"`
	Scope     string `json:"scope"`
	UpdatedAt string `json:"updated_at"`
}

// Data is the complete parsed legacy dataset.
type Data struct {
	Profile     *Profile
	Facts       map[string]Fact
	Sessions    map[string]Session
	Messages    map[string]Message
	Preferences map[string]Preference
}

// Load reads every legacy file from dir. A missing file yields an empty set
// (and a log line); a file that exists but fails to parse is an error.
func Load(dir string) (*Data, error) {
	logger := slog.Default().With("component", "legacy")
	d := &Data{
		Facts:       map[string]Fact{},
		Sessions:    map[string]Session{},
		Messages:    map[string]Message{},
		Preferences: map[string]Preference{},
	}

	if ok, err := loadFile(dir, ProfileFile, &d.Profile); err != nil {
		return nil, err
	} else if !ok {
		logger.Info("no legacy profile file", "dir", dir)
	}
	if ok, err := loadFile(dir, FactsFile, &d.Facts); err != nil {
		return nil, err
	} else if !ok {
		logger.Info("no legacy facts file", "dir", dir)
	}
	if ok, err := loadFile(dir, SessionsFile, &d.Sessions); err != nil {
		return nil, err
	} else if !ok {
		logger.Info("no legacy sessions file", "dir", dir)
	}
	if ok, err := loadFile(dir, MessagesFile, &d.Messages); err != nil {
		return nil, err
	} else if !ok {
		logger.Info("no legacy messages file", "dir", dir)
	}
	if ok, err := loadFile(dir, PreferencesFile, &d.Preferences); err != nil {
		return nil, err
	} else if !ok {
		logger.Info("no legacy preferences file", "dir", dir)
	}

	return d, nil
}

func loadFile(dir, name string, dest any) (bool, error) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return true, nil
}

// Empty reports whether the legacy dataset holds no entities at all.
func (d *Data) Empty() bool {
	return d.Profile == nil && len(d.Facts) == 0 && len(d.Sessions) == 0 &&
		len(d.Messages) == 0 && len(d.Preferences) == 0
}

// ModelFacts converts legacy facts (profile entries included) to vault
// facts, sorted by id so conversion order is deterministic.
func (d *Data) ModelFacts() []models.Fact {
	var out []models.Fact

	ids := make([]string, 0, len(d.Facts))
	for id := range d.Facts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		lf := d.Facts[id]
		consent := models.ConsentScope(lf.ConsentScope)
		if !models.ValidConsent(consent) {
			consent = models.ConsentDefault
		}
		pii := lf.PIILevel
		if !models.ValidPIILevel(pii) {
			pii = models.PIIPersonal
		}
		out = append(out, models.Fact{
			ID:         id,
			Category:   lf.Category,
			Predicate:  lf.Predicate,
			Object:     lf.Value,
			Confidence: lf.Confidence,
			PIILevel:   pii,
			Consent:    consent,
			Priority:   lf.Priority,
			CreatedAt:  parseLegacyTime(lf.CreatedAt),
			UpdatedAt:  parseLegacyTime(lf.UpdatedAt),
		})
	}

	if d.Profile != nil && d.Profile.Name != "" {
		out = append(out, models.Fact{
			Category:   "profile",
			Predicate:  "name",
			Object:     d.Profile.Name,
			Confidence: 1.0,
			PIILevel:   models.PIIPersonal,
			Consent:    models.ConsentDefault,
		})
	}
	return out
}

// ModelSessions converts legacy sessions sorted by id.
func (d *Data) ModelSessions() []models.Session {
	ids := make([]string, 0, len(d.Sessions))
	for id := range d.Sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.Session, 0, len(ids))
	for _, id := range ids {
		ls := d.Sessions[id]
		out = append(out, models.Session{
			ID:        id,
			Title:     ls.Title,
			Goal:      ls.Goal,
			StartedAt: parseLegacyTime(ls.StartedAt),
		})
	}
	return out
}

// ModelMessages converts legacy messages sorted by id, counting per session.
func (d *Data) ModelMessages() ([]models.Message, map[string]int) {
	ids := make([]string, 0, len(d.Messages))
	for id := range d.Messages {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	counts := make(map[string]int)
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		lm := d.Messages[id]
		role := lm.Role
		if !models.ValidRole(role) {
			role = models.RoleUser
		}
		out = append(out, models.Message{
			ID:        id,
			SessionID: lm.SessionID,
			Role:      role,
			Content:   lm.Content,
			CreatedAt: parseLegacyTime(lm.Timestamp),
		})
		counts[lm.SessionID]++
	}
	return out, counts
}

// ModelPreferences converts legacy preferences sorted by key.
func (d *Data) ModelPreferences() []models.Preference {
	keys := make([]string, 0, len(d.Preferences))
	for k := range d.Preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.Preference, 0, len(keys))
	for _, k := range keys {
		lp := d.Preferences[k]
		scope := lp.Scope
		if !models.ValidScope(scope) {
			scope = models.ScopeExplicit
		}
		out = append(out, models.Preference{
			Key:       k,
			Value:     lp.Value,
			Scope:     scope,
			UpdatedAt: parseLegacyTime(lp.UpdatedAt),
		})
	}
	return out
}

func parseLegacyTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
