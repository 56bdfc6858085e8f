// ABOUTME: Identity and key manager backed by the OS credential store
// ABOUTME: Owns the installation identity UUID and the symmetric field key
package identity

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/util"
)

// Service is the credential store service name all entries live under.
const Service = "memory-vault"

// Credential store entry names.
const (
	entryIdentity   = "identity-id"
	entryKey        = "field-key"
	entryPendingKey = "field-key-pending"
)

// ErrUnavailable is returned when the credential store cannot be reached.
// The vault refuses to open in that case; there is no weaker-key fallback.
var ErrUnavailable = errors.New("credential store unavailable")

// ErrNoIdentity is returned by Identity when none has been created yet.
var ErrNoIdentity = errors.New("no identity stored")

const (
	retryAttempts = 3
	retryBase     = 200 * time.Millisecond
)

// Manager provides exactly one identity id and one field key for the life
// of an installation. It is the only component that sees raw key material;
// everything else holds the opaque crypto.Key handle.
type Manager struct {
	service string
	logger  *slog.Logger
}

// NewManager creates a manager against the default credential store service.
func NewManager() *Manager {
	return &Manager{
		service: Service,
		logger:  slog.Default().With("component", "identity"),
	}
}

// Identity returns the stored identity id, or ErrNoIdentity.
func (m *Manager) Identity() (string, error) {
	id, err := m.get(entryIdentity)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoIdentity
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading identity: %v", ErrUnavailable, err)
	}
	return id, nil
}

// GetOrCreateIdentity returns the existing identity id, generating and
// storing a new UUID only when none exists. A credential store failure is
// fatal; an unreadable identity must never be silently replaced.
func (m *Manager) GetOrCreateIdentity() (string, error) {
	id, err := m.Identity()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNoIdentity) {
		return "", err
	}

	id = uuid.New().String()
	if err := m.set(entryIdentity, id); err != nil {
		return "", fmt.Errorf("%w: storing identity: %v", ErrUnavailable, err)
	}
	m.logger.Info("created installation identity", "identity_id", id)
	return id, nil
}

// RetrieveKey returns the field key, generating and storing one on first
// run. The key never touches the filesystem and is never derived from a
// hardware identifier.
func (m *Manager) RetrieveKey() (*crypto.Key, error) {
	encoded, err := m.get(entryKey)
	if errors.Is(err, keyring.ErrNotFound) {
		key, genErr := crypto.GenerateKey()
		if genErr != nil {
			return nil, genErr
		}
		if setErr := m.set(entryKey, base64.StdEncoding.EncodeToString(key.Bytes())); setErr != nil {
			return nil, fmt.Errorf("%w: storing field key: %v", ErrUnavailable, setErr)
		}
		m.logger.Info("generated field key")
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading field key: %v", ErrUnavailable, err)
	}
	return decodeKey(encoded)
}

// Rotator re-encrypts every encrypted row under a new key in one
// transaction. The storage engine implements it.
type Rotator interface {
	RotateKey(newKey *crypto.Key) error
}

// RotateKey generates a new field key, stages it in the credential store,
// re-encrypts all rows through the rotator, then promotes the staged key.
// A crash between stages is recoverable: ResolveKey probes both keys.
func (m *Manager) RotateKey(r Rotator) (*crypto.Key, error) {
	newKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := m.set(entryPendingKey, base64.StdEncoding.EncodeToString(newKey.Bytes())); err != nil {
		return nil, fmt.Errorf("%w: staging rotated key: %v", ErrUnavailable, err)
	}
	if err := r.RotateKey(newKey); err != nil {
		// Rows still use the old key; drop the staged one.
		_ = m.delete(entryPendingKey)
		return nil, fmt.Errorf("re-encrypting vault: %w", err)
	}
	if err := m.set(entryKey, base64.StdEncoding.EncodeToString(newKey.Bytes())); err != nil {
		return nil, fmt.Errorf("%w: promoting rotated key: %v", ErrUnavailable, err)
	}
	_ = m.delete(entryPendingKey)
	m.logger.Info("rotated field key")
	return newKey, nil
}

// ResolveKey returns the key that passes the given probe. The primary key
// is tried first; if it fails and a pending key from an interrupted
// rotation exists, the pending key is probed and promoted on success.
func (m *Manager) ResolveKey(probe func(*crypto.Key) error) (*crypto.Key, error) {
	key, err := m.RetrieveKey()
	if err != nil {
		return nil, err
	}
	primaryErr := probe(key)
	if primaryErr == nil {
		_ = m.delete(entryPendingKey)
		return key, nil
	}

	encoded, err := m.get(entryPendingKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, primaryErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading pending key: %v", ErrUnavailable, err)
	}
	pending, err := decodeKey(encoded)
	if err != nil {
		return nil, err
	}
	if err := probe(pending); err != nil {
		return nil, primaryErr
	}

	// The interrupted rotation committed; finish the promotion.
	if err := m.set(entryKey, encoded); err != nil {
		return nil, fmt.Errorf("%w: promoting pending key: %v", ErrUnavailable, err)
	}
	_ = m.delete(entryPendingKey)
	m.logger.Warn("recovered from interrupted key rotation")
	return pending, nil
}

func decodeKey(encoded string) (*crypto.Key, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding stored key: %w", err)
	}
	return crypto.NewKey(raw)
}

// get reads an entry, retrying transient failures with backoff. A missing
// entry is returned immediately; only real store errors are retried.
func (m *Manager) get(entry string) (string, error) {
	var value string
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		time.Sleep(util.CalculateBackoff(retryBase, attempt))
		value, err = keyring.Get(m.service, entry)
		if err == nil || errors.Is(err, keyring.ErrNotFound) {
			return value, err
		}
	}
	return "", err
}

func (m *Manager) set(entry, value string) error {
	return util.Retry(retryAttempts, retryBase, func() error {
		return keyring.Set(m.service, entry, value)
	})
}

func (m *Manager) delete(entry string) error {
	err := keyring.Delete(m.service, entry)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
