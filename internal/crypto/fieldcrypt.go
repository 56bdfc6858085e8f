// ABOUTME: Field-level symmetric encryption and stable hashing primitives
// ABOUTME: AES-256-GCM with a fresh nonce per field, blob format "nonce:ciphertext"
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// ErrDecryption is returned when a blob is malformed or the key does not
// match. Callers must propagate it rather than substituting empty values;
// a failed decrypt means the vault is corrupt or mis-keyed, not empty.
var ErrDecryption = errors.New("field decryption failed")

// Key is an opaque handle to a symmetric field key.
type Key struct {
	raw []byte
}

// NewKey wraps raw key material. The length must be KeySize bytes.
func NewKey(raw []byte) (*Key, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(raw))
	}
	k := &Key{raw: make([]byte, KeySize)}
	copy(k.raw, raw)
	return k, nil
}

// GenerateKey returns a fresh random field key.
func GenerateKey() (*Key, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating key material: %w", err)
	}
	return &Key{raw: raw}, nil
}

// Bytes returns the raw key material. Only the identity manager should
// persist this; everything else treats Key as opaque.
func (k *Key) Bytes() []byte {
	out := make([]byte, KeySize)
	copy(out, k.raw)
	return out
}

// EncryptField encrypts one field value. Each call uses a fresh random
// nonce, embedded in the returned blob as "nonce:ciphertext" (both base64),
// so equal plaintexts never produce equal blobs.
func EncryptField(plaintext string, key *Key) (string, error) {
	if key == nil {
		return "", errors.New("nil key")
	}
	block, err := aes.NewCipher(key.raw)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(nonce) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField reverses EncryptField. A malformed blob or a key mismatch
// returns an error wrapping ErrDecryption.
func DecryptField(blob string, key *Key) (string, error) {
	if key == nil {
		return "", errors.New("nil key")
	}
	parts := strings.SplitN(blob, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: blob missing nonce separator", ErrDecryption)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: bad nonce encoding", ErrDecryption)
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecryption)
	}
	block, err := aes.NewCipher(key.raw)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: bad nonce length", ErrDecryption)
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plaintext), nil
}

// StableHash returns a deterministic hex digest of the given parts.
// It is used for cache keys and reproducibility checks, never for secrecy.
func StableHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
