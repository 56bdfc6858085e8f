// ABOUTME: Export functionality for vault data
// ABOUTME: Produces a decrypted YAML or Markdown dump for user-owned backup
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportData is the complete decrypted dump of one vault.
type ExportData struct {
	Version     string             `yaml:"version"`
	ExportedAt  string             `yaml:"exported_at"`
	Tool        string             `yaml:"tool"`
	Facts       []ExportFact       `yaml:"facts,omitempty"`
	Sessions    []ExportSession    `yaml:"sessions,omitempty"`
	Preferences []ExportPreference `yaml:"preferences,omitempty"`
}

// ExportFact is one decrypted fact for export.
type ExportFact struct {
	ID         string  `yaml:"id"`
	Category   string  `yaml:"category"`
	Predicate  string  `yaml:"predicate"`
	Object     string  `yaml:"object"`
	Confidence float64 `yaml:"confidence"`
	PIILevel   int     `yaml:"pii_level"`
	Consent    string  `yaml:"consent_scope"`
	Priority   float64 `yaml:"priority"`
	UsageCount int     `yaml:"usage_count"`
	UpdatedAt  string  `yaml:"updated_at"`
}

// ExportSession is one session with its decrypted messages.
type ExportSession struct {
	ID        string          `yaml:"id"`
	Title     string          `yaml:"title"`
	Goal      string          `yaml:"goal,omitempty"`
	StartedAt string          `yaml:"started_at"`
	Messages  []ExportMessage `yaml:"messages"`
}

// ExportMessage is one decrypted message.
type ExportMessage struct {
	Role      string `yaml:"role"`
	Content   string `yaml:"content"`
	CreatedAt string `yaml:"created_at"`
}

// ExportPreference is one decrypted preference.
type ExportPreference struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	Scope string `yaml:"scope"`
}

// Export assembles the full decrypted dump.
func (e *Engine) Export(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Tool:       "memory-vault",
	}

	facts, err := e.GetFacts(ctx, NoFilter)
	if err != nil {
		return nil, fmt.Errorf("exporting facts: %w", err)
	}
	for _, f := range facts {
		data.Facts = append(data.Facts, ExportFact{
			ID:         f.ID,
			Category:   f.Category,
			Predicate:  f.Predicate,
			Object:     f.Object,
			Confidence: f.Confidence,
			PIILevel:   f.PIILevel,
			Consent:    string(f.Consent),
			Priority:   f.Priority,
			UsageCount: f.UsageCount,
			UpdatedAt:  f.UpdatedAt.Format(time.RFC3339),
		})
	}

	rows, err := e.db.QueryContext(ctx, "SELECT id FROM sessions ORDER BY started_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	var sessionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		sessionIDs = append(sessionIDs, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for _, id := range sessionIDs {
		s, err := e.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("exporting session %s: %w", id, err)
		}
		messages, err := e.SessionMessages(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("exporting messages for %s: %w", id, err)
		}
		es := ExportSession{
			ID:        s.ID,
			Title:     s.Title,
			Goal:      s.Goal,
			StartedAt: s.StartedAt.Format(time.RFC3339),
		}
		for _, m := range messages {
			es.Messages = append(es.Messages, ExportMessage{
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
			})
		}
		data.Sessions = append(data.Sessions, es)
	}

	prefs, err := e.ListPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting preferences: %w", err)
	}
	for _, p := range prefs {
		data.Preferences = append(data.Preferences, ExportPreference{
			Key:   p.Key,
			Value: p.Value,
			Scope: p.Scope,
		})
	}

	return data, nil
}

// ToYAML renders the export as YAML.
func (d *ExportData) ToYAML() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshaling export: %w", err)
	}
	return out, nil
}

// ToMarkdown renders the export as human-readable Markdown.
func (d *ExportData) ToMarkdown() []byte {
	var sb strings.Builder
	sb.WriteString("# Memory Vault Export\n\n")
	sb.WriteString(fmt.Sprintf("Exported: %s\n\n", d.ExportedAt))

	if len(d.Facts) > 0 {
		sb.WriteString("## Facts\n\n")
		for _, f := range d.Facts {
			sb.WriteString(fmt.Sprintf("- **%s/%s**: %s (confidence %.2f, pii %d, %s)\n",
				f.Category, f.Predicate, f.Object, f.Confidence, f.PIILevel, f.Consent))
		}
		sb.WriteString("\n")
	}

	if len(d.Preferences) > 0 {
		sb.WriteString("## Preferences\n\n")
		for _, p := range d.Preferences {
			sb.WriteString(fmt.Sprintf("- **%s**: %s (%s)\n", p.Key, p.Value, p.Scope))
		}
		sb.WriteString("\n")
	}

	for _, s := range d.Sessions {
		title := s.Title
		if title == "" {
			title = s.ID
		}
		sb.WriteString(fmt.Sprintf("## Session: %s\n\n", title))
		if s.Goal != "" {
			sb.WriteString(fmt.Sprintf("Goal: %s\n\n", s.Goal))
		}
		for _, m := range s.Messages {
			sb.WriteString(fmt.Sprintf("**%s**: %s\n\n", m.Role, m.Content))
		}
	}

	return []byte(sb.String())
}
