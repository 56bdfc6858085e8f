// ABOUTME: Meta table access: schema version, migration state, identity mirror
// ABOUTME: Singleton key-value rows describing the vault itself
package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// GetAllMeta returns every meta row except the key canary, which is an
// implementation detail of the engine.
func (e *Engine) GetAllMeta(ctx context.Context) (map[string]string, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT key, value FROM meta WHERE key != ?", metaKeyCheck)
	if err != nil {
		return nil, fmt.Errorf("querying meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// GetMeta returns one meta value, or ErrNotFound.
func (e *Engine) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := e.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying meta %s: %w", key, err)
	}
	return v, nil
}

// SetMeta upserts one meta row.
func (e *Engine) SetMeta(ctx context.Context, key, value string) error {
	return e.setMetaValue(key, value)
}

func (e *Engine) setMetaValue(key, value string) error {
	if _, err := e.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("setting meta %s: %w", key, err)
	}
	return nil
}

// Stats summarizes the vault for the health surface.
type Stats struct {
	Facts       int    `json:"facts"`
	Messages    int    `json:"messages"`
	Sessions    int    `json:"sessions"`
	Preferences int    `json:"preferences"`
	IntegrityOK bool   `json:"integrity_ok"`
	Path        string `json:"-"`
}

// Stats returns row counts and the recorded integrity state.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{Path: e.path}
	counts := []struct {
		table string
		dest  *int
	}{
		{"facts", &s.Facts},
		{"messages", &s.Messages},
		{"sessions", &s.Sessions},
		{"preferences", &s.Preferences},
	}
	for _, c := range counts {
		if err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	integrity, err := e.GetMeta(ctx, MetaIntegrityOK)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	s.IntegrityOK = integrity == "1"
	return s, nil
}
