// ABOUTME: Preference persistence with encrypted values
// ABOUTME: Keyed settings distinguishing explicit user choices from inferred ones
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/models"
)

// SetPreference upserts a preference by key.
func (e *Engine) SetPreference(ctx context.Context, p *models.Preference) error {
	sealed, err := crypto.EncryptField(p.Value, e.key)
	if err != nil {
		return fmt.Errorf("encrypting preference value: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, scope, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			scope = excluded.scope,
			updated_at = excluded.updated_at
	`, p.Key, sealed, p.Scope, nowRFC3339()); err != nil {
		return fmt.Errorf("upserting preference: %w", err)
	}
	e.logger.Debug("set preference", "key", p.Key, "scope", p.Scope)
	return nil
}

// GetPreference returns one decrypted preference, or ErrNotFound.
func (e *Engine) GetPreference(ctx context.Context, key string) (*models.Preference, error) {
	var p models.Preference
	var sealed, updatedAt string
	err := e.db.QueryRowContext(ctx,
		"SELECT key, value, scope, updated_at FROM preferences WHERE key = ?", key,
	).Scan(&p.Key, &sealed, &p.Scope, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying preference: %w", err)
	}
	value, err := crypto.DecryptField(sealed, e.key)
	if err != nil {
		return nil, fmt.Errorf("decrypting preference %s: %w", p.Key, err)
	}
	p.Value = value
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ListPreferences returns all decrypted preferences ordered by key.
func (e *Engine) ListPreferences(ctx context.Context) ([]models.Preference, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT key, value, scope, updated_at FROM preferences ORDER BY key ASC")
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []models.Preference
	for rows.Next() {
		var p models.Preference
		var sealed, updatedAt string
		if err := rows.Scan(&p.Key, &sealed, &p.Scope, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		value, err := crypto.DecryptField(sealed, e.key)
		if err != nil {
			return nil, fmt.Errorf("decrypting preference %s: %w", p.Key, err)
		}
		p.Value = value
		p.UpdatedAt = parseTime(updatedAt)
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}
