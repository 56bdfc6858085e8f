// ABOUTME: Tests for session search over the plaintext FTS index
// ABOUTME: Verifies operator stripping and that encrypted columns stay unindexed
package storage

import (
	"context"
	"testing"

	"github.com/harper/vault-standalone/internal/models"
)

func TestSearchSessions(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	seedSession(t, e, "Trip planning", "plan a weekend in Philadelphia")
	seedSession(t, e, "Groceries", "weekly shopping list")

	results, err := e.SearchSessions(ctx, "philadelphia")
	if err != nil {
		t.Fatalf("SearchSessions() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Title != "Trip planning" {
		t.Errorf("Title = %q, want Trip planning", results[0].Title)
	}

	// Title matches too.
	results, err = e.SearchSessions(ctx, "groceries")
	if err != nil {
		t.Fatalf("SearchSessions() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}
}

func TestSearchSessionsStripsOperators(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	seedSession(t, e, "Trip planning", "plan a weekend")

	// FTS5 operators and quotes in caller input must not produce syntax
	// errors or widen the query.
	for _, q := range []string{`trip AND "`, `NEAR(trip)`, `trip*`, `"trip`} {
		if _, err := e.SearchSessions(ctx, q); err != nil {
			t.Errorf("SearchSessions(%q) error = %v", q, err)
		}
	}

	results, err := e.SearchSessions(ctx, "")
	if err != nil {
		t.Fatalf("SearchSessions(\"\") error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty query returned %d results, want 0", len(results))
	}
}

func TestSearchDoesNotSeeMessageContent(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	sid := seedSession(t, e, "untitled", "generic goal")

	if _, err := e.AddMessage(ctx, &models.Message{
		SessionID: sid, Role: models.RoleUser, Content: "my passport number is X123",
	}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	results, err := e.SearchSessions(ctx, "passport")
	if err != nil {
		t.Fatalf("SearchSessions() error = %v", err)
	}
	if len(results) != 0 {
		t.Error("full-text search matched encrypted message content")
	}
}

func TestFTSTrackUpdatesAndDeletes(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	sid := seedSession(t, e, "Old title", "old goal")

	if _, err := e.db.Exec("UPDATE sessions SET title = 'Fresh title' WHERE id = ?", sid); err != nil {
		t.Fatalf("updating session: %v", err)
	}

	if results, _ := e.SearchSessions(ctx, "old"); len(results) != 1 {
		// goal still says "old goal"
		t.Errorf("goal term lost after title update")
	}
	results, err := e.SearchSessions(ctx, "fresh")
	if err != nil {
		t.Fatalf("SearchSessions() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("updated title not indexed")
	}

	if err := e.ClearSession(ctx, sid); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if results, _ := e.SearchSessions(ctx, "fresh"); len(results) != 0 {
		t.Error("deleted session still in FTS index")
	}
}
