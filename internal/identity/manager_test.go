// ABOUTME: Tests for the identity and key manager against a mock keyring
// ABOUTME: Covers identity stability, key persistence, rotation, and recovery
package identity

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/harper/vault-standalone/internal/crypto"
)

func setupManager(t *testing.T) *Manager {
	t.Helper()
	keyring.MockInit()
	m := NewManager()
	t.Cleanup(func() {
		_ = m.delete(entryIdentity)
		_ = m.delete(entryKey)
		_ = m.delete(entryPendingKey)
	})
	return m
}

func TestGetOrCreateIdentityStable(t *testing.T) {
	m := setupManager(t)

	if _, err := m.Identity(); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("Identity() before creation error = %v, want ErrNoIdentity", err)
	}

	first, err := m.GetOrCreateIdentity()
	if err != nil {
		t.Fatalf("GetOrCreateIdentity() error = %v", err)
	}
	if first == "" {
		t.Fatal("GetOrCreateIdentity() returned empty id")
	}

	second, err := m.GetOrCreateIdentity()
	if err != nil {
		t.Fatalf("GetOrCreateIdentity() second call error = %v", err)
	}
	if second != first {
		t.Errorf("identity regenerated: %s != %s", second, first)
	}
}

func TestRetrieveKeyPersists(t *testing.T) {
	m := setupManager(t)

	key1, err := m.RetrieveKey()
	if err != nil {
		t.Fatalf("RetrieveKey() error = %v", err)
	}
	key2, err := m.RetrieveKey()
	if err != nil {
		t.Fatalf("RetrieveKey() second call error = %v", err)
	}

	blob, err := crypto.EncryptField("probe", key1)
	if err != nil {
		t.Fatalf("EncryptField() error = %v", err)
	}
	if _, err := crypto.DecryptField(blob, key2); err != nil {
		t.Errorf("second retrieval returned a different key: %v", err)
	}
}

type fakeRotator struct {
	gotKey *crypto.Key
	fail   bool
}

func (f *fakeRotator) RotateKey(newKey *crypto.Key) error {
	if f.fail {
		return errors.New("rotation exploded")
	}
	f.gotKey = newKey
	return nil
}

func TestRotateKeyPromotes(t *testing.T) {
	m := setupManager(t)

	oldKey, err := m.RetrieveKey()
	if err != nil {
		t.Fatalf("RetrieveKey() error = %v", err)
	}

	rot := &fakeRotator{}
	newKey, err := m.RotateKey(rot)
	if err != nil {
		t.Fatalf("RotateKey() error = %v", err)
	}
	if rot.gotKey == nil {
		t.Fatal("rotator never received the new key")
	}

	// The stored key must now be the new one.
	stored, err := m.RetrieveKey()
	if err != nil {
		t.Fatalf("RetrieveKey() after rotation error = %v", err)
	}
	blob, _ := crypto.EncryptField("probe", newKey)
	if _, err := crypto.DecryptField(blob, stored); err != nil {
		t.Error("stored key does not match rotated key")
	}
	blobOld, _ := crypto.EncryptField("probe", oldKey)
	if _, err := crypto.DecryptField(blobOld, stored); err == nil {
		t.Error("stored key still matches the old key")
	}

	// No pending entry should survive a clean rotation.
	if _, err := m.get(entryPendingKey); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("pending key still present after rotation: %v", err)
	}
}

func TestRotateKeyFailureKeepsOldKey(t *testing.T) {
	m := setupManager(t)

	oldKey, err := m.RetrieveKey()
	if err != nil {
		t.Fatalf("RetrieveKey() error = %v", err)
	}

	if _, err := m.RotateKey(&fakeRotator{fail: true}); err == nil {
		t.Fatal("RotateKey() with failing rotator returned nil error")
	}

	stored, err := m.RetrieveKey()
	if err != nil {
		t.Fatalf("RetrieveKey() after failed rotation error = %v", err)
	}
	blob, _ := crypto.EncryptField("probe", oldKey)
	if _, err := crypto.DecryptField(blob, stored); err != nil {
		t.Error("failed rotation replaced the stored key")
	}
	if _, err := m.get(entryPendingKey); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("pending key left behind after failed rotation: %v", err)
	}
}

func TestResolveKeyRecoversPending(t *testing.T) {
	m := setupManager(t)

	if _, err := m.RetrieveKey(); err != nil {
		t.Fatalf("RetrieveKey() error = %v", err)
	}

	// Simulate a crash after the rotation transaction committed but before
	// the staged key was promoted: rows decrypt only with the pending key.
	pending, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if err := m.set(entryPendingKey, encodeForTest(pending)); err != nil {
		t.Fatalf("staging pending key: %v", err)
	}
	canary, _ := crypto.EncryptField("canary", pending)

	resolved, err := m.ResolveKey(func(k *crypto.Key) error {
		_, err := crypto.DecryptField(canary, k)
		return err
	})
	if err != nil {
		t.Fatalf("ResolveKey() error = %v", err)
	}
	if _, err := crypto.DecryptField(canary, resolved); err != nil {
		t.Error("ResolveKey() did not return the pending key")
	}

	// The pending key must have been promoted to primary.
	primary, err := m.RetrieveKey()
	if err != nil {
		t.Fatalf("RetrieveKey() after recovery error = %v", err)
	}
	if _, err := crypto.DecryptField(canary, primary); err != nil {
		t.Error("pending key was not promoted after recovery")
	}
}

func TestResolveKeySurfacesMismatch(t *testing.T) {
	m := setupManager(t)

	if _, err := m.RetrieveKey(); err != nil {
		t.Fatalf("RetrieveKey() error = %v", err)
	}

	otherKey, _ := crypto.GenerateKey()
	canary, _ := crypto.EncryptField("canary", otherKey)

	_, err := m.ResolveKey(func(k *crypto.Key) error {
		_, err := crypto.DecryptField(canary, k)
		return err
	})
	if !errors.Is(err, crypto.ErrDecryption) {
		t.Errorf("ResolveKey() error = %v, want ErrDecryption", err)
	}
}

func encodeForTest(k *crypto.Key) string {
	return base64.StdEncoding.EncodeToString(k.Bytes())
}
