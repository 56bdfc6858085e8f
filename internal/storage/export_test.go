// ABOUTME: Tests for the decrypted export surface
// ABOUTME: Verifies YAML round-trip content and Markdown rendering
package storage

import (
	"context"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/harper/vault-standalone/internal/models"
)

func TestExportDecrypts(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.SetFact(ctx, &models.Fact{
		Category: "location", Predicate: "city", Object: "Philadelphia",
		Confidence: 0.9, PIILevel: 1, Consent: models.ConsentDefault,
	}); err != nil {
		t.Fatalf("SetFact() error = %v", err)
	}
	sid := seedSession(t, e, "Trip planning", "plan a weekend")
	if _, err := e.AddMessage(ctx, &models.Message{
		SessionID: sid, Role: models.RoleUser, Content: "book a hotel",
	}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	if err := e.SetPreference(ctx, &models.Preference{
		Key: "tone", Value: "casual", Scope: models.ScopeExplicit,
	}); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}

	data, err := e.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if len(data.Facts) != 1 || data.Facts[0].Object != "Philadelphia" {
		t.Errorf("exported facts = %+v", data.Facts)
	}
	if len(data.Sessions) != 1 || len(data.Sessions[0].Messages) != 1 {
		t.Fatalf("exported sessions = %+v", data.Sessions)
	}
	if data.Sessions[0].Messages[0].Content != "book a hotel" {
		t.Errorf("message content = %q", data.Sessions[0].Messages[0].Content)
	}
	if len(data.Preferences) != 1 || data.Preferences[0].Value != "casual" {
		t.Errorf("exported preferences = %+v", data.Preferences)
	}

	out, err := data.ToYAML()
	if err != nil {
		t.Fatalf("ToYAML() error = %v", err)
	}
	var roundTrip ExportData
	if err := yaml.Unmarshal(out, &roundTrip); err != nil {
		t.Fatalf("unmarshaling export: %v", err)
	}
	if len(roundTrip.Facts) != 1 {
		t.Errorf("round-trip facts = %d, want 1", len(roundTrip.Facts))
	}
}

func TestExportMarkdown(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	if _, err := e.SetFact(ctx, &models.Fact{
		Category: "food", Predicate: "favorite", Object: "ramen",
		Consent: models.ConsentDefault,
	}); err != nil {
		t.Fatalf("SetFact() error = %v", err)
	}

	data, err := e.Export(ctx)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	md := string(data.ToMarkdown())
	if !strings.Contains(md, "# Memory Vault Export") {
		t.Error("markdown missing header")
	}
	if !strings.Contains(md, "ramen") {
		t.Error("markdown missing fact value")
	}
}
