// ABOUTME: Key rotation: re-encrypts every encrypted row in one transaction
// ABOUTME: Either all rows use the new key afterwards or none do
package storage

import (
	"fmt"

	"github.com/harper/vault-standalone/internal/crypto"
)

// RotateKey re-encrypts all fact objects, message contents, preference
// values, and the key canary under newKey inside a single transaction.
// On success the engine switches to newKey for subsequent operations.
// It implements identity.Rotator.
func (e *Engine) RotateKey(newKey *crypto.Key) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rotation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	reseal := func(table, idCol string) error {
		rows, err := tx.Query(fmt.Sprintf("SELECT %s, %s FROM %s", idCol, encryptedColumn(table), table))
		if err != nil {
			return fmt.Errorf("reading %s: %w", table, err)
		}
		type pending struct{ id, blob string }
		var resealed []pending
		for rows.Next() {
			var id, sealed string
			if err := rows.Scan(&id, &sealed); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scanning %s: %w", table, err)
			}
			plaintext, err := crypto.DecryptField(sealed, e.key)
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("decrypting %s %s: %w", table, id, err)
			}
			blob, err := crypto.EncryptField(plaintext, newKey)
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("re-encrypting %s %s: %w", table, id, err)
			}
			resealed = append(resealed, pending{id, blob})
		}
		if err := rows.Close(); err != nil {
			return err
		}
		for _, p := range resealed {
			if _, err := tx.Exec(
				fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table, encryptedColumn(table), idCol),
				p.blob, p.id,
			); err != nil {
				return fmt.Errorf("updating %s %s: %w", table, p.id, err)
			}
		}
		return nil
	}

	if err := reseal("facts", "id"); err != nil {
		return err
	}
	if err := reseal("messages", "id"); err != nil {
		return err
	}
	if err := reseal("preferences", "key"); err != nil {
		return err
	}

	canary, err := crypto.EncryptField(keyCheckPlaintext, newKey)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, metaKeyCheck, canary); err != nil {
		return fmt.Errorf("updating key canary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}

	e.key = newKey
	e.logger.Info("re-encrypted vault under rotated key")
	return nil
}

func encryptedColumn(table string) string {
	switch table {
	case "facts":
		return "object"
	case "messages":
		return "content"
	case "preferences":
		return "value"
	}
	panic("no encrypted column for table " + table)
}
