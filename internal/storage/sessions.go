// ABOUTME: Session persistence and full-text search over plaintext columns
// ABOUTME: The FTS index covers only title and goal, never encrypted content
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harper/vault-standalone/internal/models"
)

// CreateSession inserts a new conversation thread. A missing id is filled
// with a fresh UUID; the id is returned either way.
func (e *Engine) CreateSession(ctx context.Context, s *models.Session) (string, error) {
	id := s.ID
	if id == "" {
		id = "session_" + uuid.New().String()
	}
	if _, err := e.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, goal, started_at, message_count)
		VALUES (?, ?, ?, ?, 0)
	`, id, s.Title, s.Goal, timeOrNow(s.StartedAt)); err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	e.logger.Debug("created session", "id", id)
	return id, nil
}

// GetSession returns one session by id, or ErrNotFound.
func (e *Engine) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	var startedAt string
	err := e.db.QueryRowContext(ctx, `
		SELECT id, title, goal, started_at, message_count
		FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Title, &s.Goal, &startedAt, &s.MessageCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	s.StartedAt = parseTime(startedAt)
	return &s, nil
}

// SearchSessions runs a full-text search over session titles and goals.
// The query is reduced to bare terms before reaching FTS so caller input
// cannot smuggle in FTS operators.
func (e *Engine) SearchSessions(ctx context.Context, query string) ([]models.Session, error) {
	terms := ftsTerms(query)
	if terms == "" {
		return nil, nil
	}
	rows, err := e.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.goal, s.started_at, s.message_count
		FROM sessions_fts f
		JOIN sessions s ON s.rowid = f.rowid
		WHERE sessions_fts MATCH ?
		ORDER BY rank
	`, terms)
	if err != nil {
		return nil, fmt.Errorf("searching sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var startedAt string
		if err := rows.Scan(&s.ID, &s.Title, &s.Goal, &startedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.StartedAt = parseTime(startedAt)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ClearSession purges a conversation: the session row and all its messages,
// in one transaction. This is the only path that deletes messages.
func (e *Engine) ClearSession(ctx context.Context, id string) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning clear transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clear: %w", err)
	}
	e.logger.Info("cleared session", "id", id)
	return nil
}

// ftsTerms strips everything but word characters from a search query and
// quotes each term, yielding a safe implicit-AND FTS5 match expression.
func ftsTerms(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !(r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9'))
	})
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}
