// ABOUTME: Tests for engine lifecycle, key probing, and meta seeding
// ABOUTME: Uses in-memory and temp-dir vaults, wrong-key and integrity cases
package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/vault-standalone/internal/crypto"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	e, err := OpenInMemory(key)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOpenSeedsMeta(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	meta, err := e.GetAllMeta(ctx)
	if err != nil {
		t.Fatalf("GetAllMeta() error = %v", err)
	}
	if meta[MetaSchemaVersion] != "1" {
		t.Errorf("schema_version = %q, want \"1\"", meta[MetaSchemaVersion])
	}
	if meta[MetaVaultCreatedAt] == "" {
		t.Error("vault_created_at not seeded")
	}
	if meta[MetaIntegrityOK] != "1" {
		t.Errorf("integrity_ok = %q, want \"1\"", meta[MetaIntegrityOK])
	}
	if _, ok := meta[metaKeyCheck]; ok {
		t.Error("key canary leaked through GetAllMeta")
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.db")

	key1, _ := crypto.GenerateKey()
	e, err := Open(path, key1, 5*time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	key2, _ := crypto.GenerateKey()
	if _, err := Open(path, key2, 5*time.Second); !errors.Is(err, crypto.ErrDecryption) {
		t.Errorf("Open() with wrong key error = %v, want ErrDecryption", err)
	}

	// The right key still works.
	e, err = Open(path, key1, 5*time.Second)
	if err != nil {
		t.Fatalf("reopen with correct key error = %v", err)
	}
	_ = e.Close()
}

func TestProbeKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.db")

	key1, _ := crypto.GenerateKey()
	key2, _ := crypto.GenerateKey()

	// Nonexistent vault accepts any key.
	if err := ProbeKey(path, key2); err != nil {
		t.Errorf("ProbeKey() on missing vault error = %v", err)
	}

	e, err := Open(path, key1, 5*time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = e.Close()

	if err := ProbeKey(path, key1); err != nil {
		t.Errorf("ProbeKey() with matching key error = %v", err)
	}
	if err := ProbeKey(path, key2); !errors.Is(err, crypto.ErrDecryption) {
		t.Errorf("ProbeKey() with wrong key error = %v, want ErrDecryption", err)
	}
}

func TestOpenNilKey(t *testing.T) {
	if _, err := OpenInMemory(nil); err == nil {
		t.Error("OpenInMemory(nil) returned nil error")
	}
}

func TestStats(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	s, err := e.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if s.Facts != 0 || s.Messages != 0 || s.Sessions != 0 {
		t.Errorf("fresh vault stats = %+v, want zeros", s)
	}
	if !s.IntegrityOK {
		t.Error("IntegrityOK = false on a fresh vault")
	}
}
