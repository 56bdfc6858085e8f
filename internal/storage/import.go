// ABOUTME: Transactional bulk-import surface used by the migration engine
// ABOUTME: Keeps encryption inside storage while one transaction spans all rows
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/models"
)

// ImportTx exposes encrypted inserts bound to one open transaction, so the
// migration engine can land every migrated row and the completion marker in
// a single commit. Nothing is visible to readers until Import returns nil.
type ImportTx struct {
	tx  *sql.Tx
	ctx context.Context
	e   *Engine
}

// Import runs fn inside one transaction. If fn returns an error the
// transaction is rolled back in full; no partial import is ever observable.
func (e *Engine) Import(ctx context.Context, fn func(*ImportTx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning import: %w", err)
	}
	it := &ImportTx{tx: tx, ctx: ctx, e: e}
	if err := fn(it); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}

// InsertFact inserts one fact with an encrypted object value.
func (it *ImportTx) InsertFact(f *models.Fact) error {
	sealed, err := crypto.EncryptField(f.Object, it.e.key)
	if err != nil {
		return fmt.Errorf("encrypting fact object: %w", err)
	}
	id := f.ID
	if id == "" {
		id = "fact_" + uuid.New().String()
	}
	ts := timeOrNow(f.CreatedAt)
	updated := timeOrNow(f.UpdatedAt)
	if _, err := it.tx.ExecContext(it.ctx, `
		INSERT INTO facts (id, category, predicate, object, confidence, pii_level, consent_scope, priority, usage_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (category, predicate) DO UPDATE SET
			object = excluded.object,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
	`, id, f.Category, f.Predicate, sealed, f.Confidence, f.PIILevel,
		string(f.Consent), f.Priority, f.UsageCount, ts, updated); err != nil {
		return fmt.Errorf("importing fact %s/%s: %w", f.Category, f.Predicate, err)
	}
	return nil
}

// InsertSession inserts one session row.
func (it *ImportTx) InsertSession(s *models.Session) error {
	if _, err := it.tx.ExecContext(it.ctx, `
		INSERT INTO sessions (id, title, goal, started_at, message_count)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Title, s.Goal, timeOrNow(s.StartedAt), s.MessageCount); err != nil {
		return fmt.Errorf("importing session %s: %w", s.ID, err)
	}
	return nil
}

// InsertMessage inserts one message with encrypted content.
func (it *ImportTx) InsertMessage(m *models.Message) error {
	sealed, err := crypto.EncryptField(m.Content, it.e.key)
	if err != nil {
		return fmt.Errorf("encrypting message content: %w", err)
	}
	id := m.ID
	if id == "" {
		id = "msg_" + uuid.New().String()
	}
	if _, err := it.tx.ExecContext(it.ctx, `
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, m.SessionID, m.Role, sealed, timeOrNow(m.CreatedAt)); err != nil {
		return fmt.Errorf("importing message %s: %w", id, err)
	}
	return nil
}

// InsertPreference inserts one preference with an encrypted value.
func (it *ImportTx) InsertPreference(p *models.Preference) error {
	sealed, err := crypto.EncryptField(p.Value, it.e.key)
	if err != nil {
		return fmt.Errorf("encrypting preference value: %w", err)
	}
	if _, err := it.tx.ExecContext(it.ctx, `
		INSERT INTO preferences (key, value, scope, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, p.Key, sealed, p.Scope, timeOrNow(p.UpdatedAt)); err != nil {
		return fmt.Errorf("importing preference %s: %w", p.Key, err)
	}
	return nil
}

// SetMeta upserts a meta row inside the import transaction. The migration
// completion marker goes through here so it commits with the data or not
// at all.
func (it *ImportTx) SetMeta(key, value string) error {
	if _, err := it.tx.ExecContext(it.ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("setting meta %s: %w", key, err)
	}
	return nil
}
