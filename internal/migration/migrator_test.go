// ABOUTME: Tests for the migration engine, including the crash drill
// ABOUTME: A failed import must leave no vault and untouched legacy files
package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/legacy"
	"github.com/harper/vault-standalone/internal/storage"
)

func writeLegacyFixture(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		legacy.ProfileFile: `{"name": "Colin"}`,
		legacy.FactsFile: `{
			"fact_1": {"category": "location", "predicate": "city", "value": "Philadelphia",
				"confidence": 0.9, "pii_level": 1, "consent_scope": "default"}
		}`,
		legacy.SessionsFile: `{
			"sess_1": {"title": "Trip planning", "goal": "book flights"}
		}`,
		legacy.MessagesFile: `{
			"msg_1": {"session_id": "sess_1", "role": "user", "content": "hello"},
			"msg_2": {"session_id": "ghost", "role": "user", "content": "orphan"}
		}`,
		legacy.PreferencesFile: `{
			"tone": {"value": "casual", "scope": "explicit"}
		}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func openVault(t *testing.T, path string, key *crypto.Key) *storage.Engine {
	t.Helper()
	e, err := storage.Open(path, key, time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return e
}

func TestRunMigratesEverything(t *testing.T) {
	legacyDir := t.TempDir()
	writeLegacyFixture(t, legacyDir)
	key, _ := crypto.GenerateKey()
	vaultPath := filepath.Join(t.TempDir(), "vault.db")
	eng := openVault(t, vaultPath, key)
	defer func() { _ = eng.Close() }()
	ctx := context.Background()

	report, err := New().Run(ctx, legacyDir, eng, "identity-abc")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Two facts migrate: the stored fact plus the profile name.
	if report.Facts != 2 || report.Sessions != 1 || report.Messages != 1 || report.Preferences != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Orphaned != 1 {
		t.Errorf("Orphaned = %d, want 1", report.Orphaned)
	}
	if report.BackupPath == "" {
		t.Fatal("expected a backup path")
	}
	if _, err := os.Stat(filepath.Join(report.BackupPath, legacy.FactsFile)); err != nil {
		t.Errorf("backup missing facts file: %v", err)
	}

	facts, err := eng.GetFacts(ctx, storage.NoFilter)
	if err != nil {
		t.Fatalf("GetFacts() error = %v", err)
	}
	if len(facts) != 2 {
		t.Errorf("migrated facts = %d, want 2", len(facts))
	}
	sess, err := eng.GetSession(ctx, "sess_1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if sess.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", sess.MessageCount)
	}

	done, err := eng.GetMeta(ctx, storage.MetaMigrationComplete)
	if err != nil || done != "1" {
		t.Errorf("migration marker = %q, %v", done, err)
	}
	id, err := eng.GetMeta(ctx, storage.MetaIdentityID)
	if err != nil || id != "identity-abc" {
		t.Errorf("identity meta = %q, %v", id, err)
	}

	// The live legacy files are never modified.
	if _, err := os.Stat(filepath.Join(legacyDir, legacy.MessagesFile)); err != nil {
		t.Errorf("legacy file touched: %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	legacyDir := t.TempDir()
	writeLegacyFixture(t, legacyDir)
	key, _ := crypto.GenerateKey()
	vaultPath := filepath.Join(t.TempDir(), "vault.db")
	eng := openVault(t, vaultPath, key)
	defer func() { _ = eng.Close() }()
	ctx := context.Background()

	if _, err := New().Run(ctx, legacyDir, eng, "id"); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	report, err := New().Run(ctx, legacyDir, eng, "id")
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !report.Skipped {
		t.Error("second run should be skipped")
	}
	facts, _ := eng.GetFacts(ctx, storage.NoFilter)
	if len(facts) != 2 {
		t.Errorf("facts after rerun = %d, want 2", len(facts))
	}
}

func TestRunFreshInstallMarksComplete(t *testing.T) {
	key, _ := crypto.GenerateKey()
	vaultPath := filepath.Join(t.TempDir(), "vault.db")
	eng := openVault(t, vaultPath, key)
	defer func() { _ = eng.Close() }()
	ctx := context.Background()

	report, err := New().Run(ctx, filepath.Join(t.TempDir(), "absent"), eng, "id")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Skipped || report.BackupPath != "" {
		t.Errorf("report = %+v", report)
	}
	done, err := eng.GetMeta(ctx, storage.MetaMigrationComplete)
	if err != nil || done != "1" {
		t.Errorf("migration marker = %q, %v", done, err)
	}
}

func TestRunMalformedLegacyFails(t *testing.T) {
	legacyDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(legacyDir, legacy.FactsFile), []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	key, _ := crypto.GenerateKey()
	eng := openVault(t, filepath.Join(t.TempDir(), "vault.db"), key)
	defer func() { _ = eng.Close() }()

	_, err := New().Run(context.Background(), legacyDir, eng, "id")
	if !errors.Is(err, ErrMigration) {
		t.Fatalf("Run() error = %v, want ErrMigration", err)
	}
}

func TestRunCrashDrill(t *testing.T) {
	legacyDir := t.TempDir()
	writeLegacyFixture(t, legacyDir)
	key, _ := crypto.GenerateKey()
	vaultPath := filepath.Join(t.TempDir(), "vault.db")
	eng := openVault(t, vaultPath, key)
	ctx := context.Background()

	m := New()
	m.failAt = "sessions"
	_, err := m.Run(ctx, legacyDir, eng, "id")
	if !errors.Is(err, ErrMigration) {
		t.Fatalf("Run() error = %v, want ErrMigration", err)
	}

	// The partial vault is gone.
	if _, err := os.Stat(vaultPath); !os.IsNotExist(err) {
		t.Fatalf("vault file still exists after rollback: %v", err)
	}
	// Legacy files survive the failed attempt.
	if _, err := os.Stat(filepath.Join(legacyDir, legacy.FactsFile)); err != nil {
		t.Fatalf("legacy file lost: %v", err)
	}

	// A retry against a fresh engine completes from the untouched source.
	eng2 := openVault(t, vaultPath, key)
	defer func() { _ = eng2.Close() }()
	report, err := New().Run(ctx, legacyDir, eng2, "id")
	if err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	if report.Facts != 2 || report.Sessions != 1 {
		t.Errorf("retry report = %+v", report)
	}
	done, err := eng2.GetMeta(ctx, storage.MetaMigrationComplete)
	if err != nil || done != "1" {
		t.Errorf("migration marker = %q, %v", done, err)
	}
}
