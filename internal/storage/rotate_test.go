// ABOUTME: Tests for atomic key rotation across all encrypted tables
// ABOUTME: Verifies old-key rejection and all-or-nothing re-encryption
package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/models"
)

func TestRotateKeyReencryptsEverything(t *testing.T) {
	key, _ := crypto.GenerateKey()
	e, err := OpenInMemory(key)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer func() { _ = e.Close() }()
	ctx := context.Background()

	factID, err := e.SetFact(ctx, &models.Fact{
		Category: "location", Predicate: "city", Object: "Philadelphia",
		Consent: models.ConsentDefault,
	})
	if err != nil {
		t.Fatalf("SetFact() error = %v", err)
	}
	sid := seedSession(t, e, "chat", "goal")
	if _, err := e.AddMessage(ctx, &models.Message{
		SessionID: sid, Role: models.RoleUser, Content: "hello there",
	}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	if err := e.SetPreference(ctx, &models.Preference{
		Key: "tone", Value: "casual", Scope: models.ScopeExplicit,
	}); err != nil {
		t.Fatalf("SetPreference() error = %v", err)
	}

	newKey, _ := crypto.GenerateKey()
	if err := e.RotateKey(newKey); err != nil {
		t.Fatalf("RotateKey() error = %v", err)
	}

	// Everything still reads through the engine, now holding the new key.
	f, err := e.GetFact(ctx, factID)
	if err != nil {
		t.Fatalf("GetFact() after rotation error = %v", err)
	}
	if f.Object != "Philadelphia" {
		t.Errorf("Object = %q after rotation", f.Object)
	}
	msgs, err := e.GetRecentMessages(ctx, 1)
	if err != nil || len(msgs) != 1 || msgs[0].Content != "hello there" {
		t.Errorf("messages after rotation = %v, %v", msgs, err)
	}
	p, err := e.GetPreference(ctx, "tone")
	if err != nil || p.Value != "casual" {
		t.Errorf("preference after rotation = %v, %v", p, err)
	}

	// Raw blobs must no longer decrypt with the old key.
	var sealed string
	if err := e.db.QueryRow("SELECT object FROM facts WHERE id = ?", factID).Scan(&sealed); err != nil {
		t.Fatalf("reading raw object: %v", err)
	}
	if _, err := crypto.DecryptField(sealed, key); !errors.Is(err, crypto.ErrDecryption) {
		t.Errorf("old key still decrypts rotated row: %v", err)
	}
}

func TestRotateKeyFailureLeavesOldKeyWorking(t *testing.T) {
	key, _ := crypto.GenerateKey()
	e, err := OpenInMemory(key)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer func() { _ = e.Close() }()
	ctx := context.Background()

	factID, err := e.SetFact(ctx, &models.Fact{
		Category: "a", Predicate: "b", Object: "value", Consent: models.ConsentDefault,
	})
	if err != nil {
		t.Fatalf("SetFact() error = %v", err)
	}

	// Corrupt one blob so rotation fails mid-stream, then verify nothing
	// else was rewritten.
	sid := seedSession(t, e, "t", "g")
	if _, err := e.AddMessage(ctx, &models.Message{
		SessionID: sid, Role: models.RoleUser, Content: "x",
	}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	if _, err := e.db.Exec("UPDATE messages SET content = 'garbage-blob'"); err != nil {
		t.Fatalf("corrupting message: %v", err)
	}

	newKey, _ := crypto.GenerateKey()
	if err := e.RotateKey(newKey); !errors.Is(err, crypto.ErrDecryption) {
		t.Fatalf("RotateKey() error = %v, want ErrDecryption", err)
	}

	// The fact must still decrypt with the original key.
	f, err := e.GetFact(ctx, factID)
	if err != nil {
		t.Fatalf("GetFact() after failed rotation error = %v", err)
	}
	if f.Object != "value" {
		t.Errorf("Object = %q, want value", f.Object)
	}
}
