// ABOUTME: Fact persistence: upsert, filtered reads, deletion, priority boosts
// ABOUTME: The object column is encrypted; metadata columns stay queryable
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/models"
)

// FactFilter narrows GetFacts. Zero values mean "no constraint".
type FactFilter struct {
	Category string
	MaxPII   int // -1 means no ceiling
}

// NoFilter matches every fact.
var NoFilter = FactFilter{MaxPII: -1}

// SetFact upserts a fact on (category, predicate). A new fact gets a fresh
// id; an update preserves id, priority, usage count, and created_at, so
// reinforcement history survives value edits. Returns the fact id.
func (e *Engine) SetFact(ctx context.Context, f *models.Fact) (string, error) {
	sealed, err := crypto.EncryptField(f.Object, e.key)
	if err != nil {
		return "", fmt.Errorf("encrypting fact object: %w", err)
	}

	id := f.ID
	if id == "" {
		id = "fact_" + uuid.New().String()
	}
	now := nowRFC3339()

	query := `
		INSERT INTO facts (id, category, predicate, object, confidence, pii_level, consent_scope, priority, usage_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (category, predicate) DO UPDATE SET
			object = excluded.object,
			confidence = excluded.confidence,
			pii_level = excluded.pii_level,
			consent_scope = excluded.consent_scope,
			updated_at = excluded.updated_at
	`
	if _, err := e.db.ExecContext(ctx, query,
		id, f.Category, f.Predicate, sealed,
		f.Confidence, f.PIILevel, string(f.Consent), f.Priority,
		now, now,
	); err != nil {
		return "", fmt.Errorf("upserting fact: %w", err)
	}

	// The upsert may have kept an existing id; read back the canonical one.
	var storedID string
	err = e.db.QueryRowContext(ctx,
		"SELECT id FROM facts WHERE category = ? AND predicate = ?",
		f.Category, f.Predicate,
	).Scan(&storedID)
	if err != nil {
		return "", fmt.Errorf("reading fact id: %w", err)
	}

	e.logger.Debug("set fact", "id", storedID, "category", f.Category, "predicate", f.Predicate)
	return storedID, nil
}

// GetFacts returns decrypted facts matching the filter, ordered by priority
// descending then updated_at descending then id ascending.
func (e *Engine) GetFacts(ctx context.Context, filter FactFilter) ([]models.Fact, error) {
	query := `
		SELECT id, category, predicate, object, confidence, pii_level, consent_scope, priority, usage_count, created_at, updated_at
		FROM facts
	`
	var args []any
	where := ""
	if filter.Category != "" {
		where = " WHERE category = ?"
		args = append(args, filter.Category)
	}
	if filter.MaxPII >= 0 {
		if where == "" {
			where = " WHERE pii_level <= ?"
		} else {
			where += " AND pii_level <= ?"
		}
		args = append(args, filter.MaxPII)
	}
	query += where + " ORDER BY priority DESC, updated_at DESC, id ASC"

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var facts []models.Fact
	for rows.Next() {
		f, err := e.scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// GetFact returns one decrypted fact by id, or ErrNotFound.
func (e *Engine) GetFact(ctx context.Context, id string) (*models.Fact, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT id, category, predicate, object, confidence, pii_level, consent_scope, priority, usage_count, created_at, updated_at
		FROM facts WHERE id = ?
	`, id)
	f, err := e.scanFact(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// DeleteFact removes a fact immediately and irreversibly. Only explicit
// user action reaches this path; there are no tombstones.
func (e *Engine) DeleteFact(ctx context.Context, id string) error {
	res, err := e.db.ExecContext(ctx, "DELETE FROM facts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting fact: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	e.logger.Info("deleted fact", "id", id)
	return nil
}

// BoostFacts increments usage counters and bumps priority for the given ids
// inside one transaction. A failure on any row touches zero rows. Priority
// is capped so reinforcement stays bounded.
func (e *Engine) BoostFacts(ctx context.Context, ids []string, bump, cap float64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning boost transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowRFC3339()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			UPDATE facts
			SET usage_count = usage_count + 1,
			    priority = MIN(priority + ?, ?),
			    updated_at = ?
			WHERE id = ?
		`, bump, cap, now, id); err != nil {
			return fmt.Errorf("boosting fact %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing boost: %w", err)
	}
	e.logger.Debug("boosted facts", "count", len(ids))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (e *Engine) scanFact(row rowScanner) (models.Fact, error) {
	var f models.Fact
	var sealed, consent, createdAt, updatedAt string
	if err := row.Scan(&f.ID, &f.Category, &f.Predicate, &sealed,
		&f.Confidence, &f.PIILevel, &consent, &f.Priority, &f.UsageCount,
		&createdAt, &updatedAt); err != nil {
		return f, err
	}
	object, err := crypto.DecryptField(sealed, e.key)
	if err != nil {
		return f, fmt.Errorf("decrypting fact %s: %w", f.ID, err)
	}
	f.Object = object
	f.Consent = models.ConsentScope(consent)
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return f, nil
}
