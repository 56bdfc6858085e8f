// ABOUTME: Storage engine lifecycle: open, integrity check, key probe, close
// ABOUTME: Uses modernc.org/sqlite with WAL journaling and a bounded lock wait
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harper/vault-standalone/internal/crypto"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when the vault cannot be opened or fails its
// integrity check. The vault refuses to run rather than degrade silently.
var ErrUnavailable = errors.New("storage unavailable")

// keyCheckPlaintext is the canary value encrypted into meta on first open.
// Decrypting it proves the supplied key matches the vault contents.
const keyCheckPlaintext = "vault-key-check"

// Engine owns every persisted vault row. It encrypts designated columns on
// write and decrypts on read; callers only ever see plaintext. The engine is
// single-writer multi-reader within one process: each logical mutation is a
// single transaction, so no application-level locking is needed.
type Engine struct {
	db     *sql.DB
	key    *crypto.Key
	path   string
	logger *slog.Logger
}

// Open opens or creates the vault at path with the given field key.
// It enables WAL journaling, foreign keys, and a bounded busy timeout, runs
// an integrity check, and verifies the key against the stored canary.
func Open(path string, key *crypto.Key, busyTimeout time.Duration) (*Engine, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: no field key", ErrUnavailable)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %v", ErrUnavailable, err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrUnavailable, err)
	}

	e := &Engine{
		db:     db,
		key:    key,
		path:   path,
		logger: slog.Default().With("component", "storage"),
	}
	if err := e.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	e.logger.Info("vault opened", "path", path)
	return e, nil
}

// OpenInMemory creates an in-memory vault for testing.
func OpenInMemory(key *crypto.Key) (*Engine, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening in-memory database: %v", ErrUnavailable, err)
	}
	e := &Engine{
		db:     db,
		key:    key,
		path:   ":memory:",
		logger: slog.Default().With("component", "storage"),
	}
	if err := e.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) initialize() error {
	if err := e.db.Ping(); err != nil {
		return fmt.Errorf("%w: pinging database: %v", ErrUnavailable, err)
	}
	if _, err := e.db.Exec(Schema); err != nil {
		return fmt.Errorf("%w: initializing schema: %v", ErrUnavailable, err)
	}
	if err := e.checkIntegrity(); err != nil {
		return err
	}
	if err := e.probeKey(); err != nil {
		return err
	}
	return e.seedMeta()
}

// checkIntegrity runs a quick check of the underlying store and records the
// result in meta. A failing check refuses the open.
func (e *Engine) checkIntegrity() error {
	var result string
	if err := e.db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("%w: integrity check: %v", ErrUnavailable, err)
	}
	ok := result == "ok"
	if err := e.setMetaValue(MetaIntegrityOK, boolMeta(ok)); err != nil {
		return err
	}
	if !ok {
		e.logger.Error("vault integrity check failed", "result", result)
		return fmt.Errorf("%w: integrity check reported %q", ErrUnavailable, result)
	}
	return nil
}

// probeKey verifies the field key against the stored canary, writing the
// canary on first open. A mismatch surfaces crypto.ErrDecryption so the
// caller can attempt pending-key recovery instead of reading garbage.
func (e *Engine) probeKey() error {
	var blob string
	err := e.db.QueryRow("SELECT value FROM meta WHERE key = ?", metaKeyCheck).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		sealed, encErr := crypto.EncryptField(keyCheckPlaintext, e.key)
		if encErr != nil {
			return encErr
		}
		return e.setMetaValue(metaKeyCheck, sealed)
	}
	if err != nil {
		return fmt.Errorf("%w: reading key canary: %v", ErrUnavailable, err)
	}
	plaintext, err := crypto.DecryptField(blob, e.key)
	if err != nil {
		return fmt.Errorf("field key does not match vault: %w", err)
	}
	if plaintext != keyCheckPlaintext {
		return fmt.Errorf("%w: key canary corrupted", ErrUnavailable)
	}
	return nil
}

func (e *Engine) seedMeta() error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := e.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
		MetaVaultCreatedAt, now,
	); err != nil {
		return fmt.Errorf("seeding meta: %w", err)
	}
	return e.setMetaValue(MetaSchemaVersion, fmt.Sprintf("%d", SchemaVersion))
}

// ProbeKey reports whether key can decrypt the vault at path without keeping
// it open. A vault that has no canary yet accepts any key.
func ProbeKey(path string, key *crypto.Key) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("%w: opening database: %v", ErrUnavailable, err)
	}
	defer func() { _ = db.Close() }()

	var blob string
	err = db.QueryRow("SELECT value FROM meta WHERE key = ?", metaKeyCheck).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		// A vault file without a meta table is not yet initialized.
		return nil
	}
	_, err = crypto.DecryptField(blob, key)
	return err
}

// Path returns the database file path.
func (e *Engine) Path() string {
	return e.path
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Destroy closes the engine and removes the vault file and its WAL sidecars.
// Used only by migration rollback; never called on a healthy vault.
func (e *Engine) Destroy() error {
	if err := e.Close(); err != nil {
		return err
	}
	if e.path == ":memory:" {
		return nil
	}
	for _, p := range []string{e.path, e.path + "-wal", e.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

func boolMeta(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// timeLayout is RFC3339 with fixed-width nanoseconds so stored timestamps
// sort correctly as strings in ORDER BY clauses.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nowRFC3339() string {
	return time.Now().UTC().Format(timeLayout)
}

func timeOrNow(t time.Time) string {
	if t.IsZero() {
		return nowRFC3339()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
