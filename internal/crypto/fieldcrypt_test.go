// ABOUTME: Tests for field encryption round-trips and stable hashing
// ABOUTME: Verifies wrong-key and malformed-blob cases surface ErrDecryption
package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	cases := []string{
		"",
		"Philadelphia",
		"multi\nline\nvalue",
		strings.Repeat("long ", 1000),
		"unicode: héllo 世界",
	}

	for _, plaintext := range cases {
		blob, err := EncryptField(plaintext, key)
		if err != nil {
			t.Fatalf("EncryptField(%q) error = %v", plaintext, err)
		}
		if !strings.Contains(blob, ":") {
			t.Errorf("blob missing nonce separator: %q", blob)
		}
		got, err := DecryptField(blob, key)
		if err != nil {
			t.Fatalf("DecryptField() error = %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestEncryptFieldFreshNonce(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	a, err := EncryptField("same value", key)
	if err != nil {
		t.Fatalf("EncryptField() error = %v", err)
	}
	b, err := EncryptField("same value", key)
	if err != nil {
		t.Fatalf("EncryptField() error = %v", err)
	}
	if a == b {
		t.Error("equal plaintexts produced equal blobs; nonce is not fresh")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	blob, err := EncryptField("secret", key1)
	if err != nil {
		t.Fatalf("EncryptField() error = %v", err)
	}

	_, err = DecryptField(blob, key2)
	if err == nil {
		t.Fatal("DecryptField with wrong key returned nil error")
	}
	if !errors.Is(err, ErrDecryption) {
		t.Errorf("error = %v, want ErrDecryption", err)
	}
}

func TestDecryptMalformedBlob(t *testing.T) {
	key, _ := GenerateKey()

	cases := []string{
		"",
		"no-separator",
		"!!!:also-bad",
		"YWJj:%%%",
		"YWJj:YWJj", // valid base64, wrong nonce length
	}

	for _, blob := range cases {
		_, err := DecryptField(blob, key)
		if err == nil {
			t.Errorf("DecryptField(%q) returned nil error", blob)
			continue
		}
		if !errors.Is(err, ErrDecryption) {
			t.Errorf("DecryptField(%q) error = %v, want ErrDecryption", blob, err)
		}
	}
}

func TestNewKeyLength(t *testing.T) {
	if _, err := NewKey(make([]byte, 16)); err == nil {
		t.Error("NewKey accepted a 16-byte key")
	}
	if _, err := NewKey(make([]byte, KeySize)); err != nil {
		t.Errorf("NewKey rejected a %d-byte key: %v", KeySize, err)
	}
}

func TestStableHashDeterministic(t *testing.T) {
	a := StableHash("goal", "fact_1", "fact_2")
	b := StableHash("goal", "fact_1", "fact_2")
	if a != b {
		t.Errorf("StableHash not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("StableHash length = %d, want 64 hex chars", len(a))
	}

	// Part boundaries must matter: ("ab","c") != ("a","bc").
	if StableHash("ab", "c") == StableHash("a", "bc") {
		t.Error("StableHash collides across part boundaries")
	}
}
