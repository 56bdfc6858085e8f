// ABOUTME: Message persistence with encrypted content
// ABOUTME: Messages are immutable once written; deletion only via ClearSession
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harper/vault-standalone/internal/crypto"
	"github.com/harper/vault-standalone/internal/models"
)

// AddMessage appends one turn to a session and bumps the session's message
// count, in a single transaction. The session must exist.
func (e *Engine) AddMessage(ctx context.Context, m *models.Message) (string, error) {
	sealed, err := crypto.EncryptField(m.Content, e.key)
	if err != nil {
		return "", fmt.Errorf("encrypting message content: %w", err)
	}
	id := m.ID
	if id == "" {
		id = "msg_" + uuid.New().String()
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning message transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE sessions SET message_count = message_count + 1 WHERE id = ?", m.SessionID)
	if err != nil {
		return "", fmt.Errorf("bumping session count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("bumping session count: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("session %s: %w", m.SessionID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, m.SessionID, m.Role, sealed, nowRFC3339()); err != nil {
		return "", fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing message: %w", err)
	}
	return id, nil
}

// GetRecentMessages returns the n most recent messages across all sessions,
// decrypted, newest first.
func (e *Engine) GetRecentMessages(ctx context.Context, n int) ([]models.Message, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM messages
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var sealed, createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &sealed, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		content, err := crypto.DecryptField(sealed, e.key)
		if err != nil {
			return nil, fmt.Errorf("decrypting message %s: %w", m.ID, err)
		}
		m.Content = content
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SessionMessages returns every decrypted message in one session, oldest
// first. Message content is never indexed; filtering it means decrypting
// like this and scanning in application code.
func (e *Engine) SessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var sealed, createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &sealed, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		content, err := crypto.DecryptField(sealed, e.key)
		if err != nil {
			return nil, fmt.Errorf("decrypting message %s: %w", m.ID, err)
		}
		m.Content = content
		m.CreatedAt = parseTime(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
