package storage

import (
	"context"
	"time"

	"surf-core/internal/coreapi"
)

// InsertChatMessage appends one turn to a session's persisted conversational
// history. Rows are never updated in place, but inserting a message whose ID
// already exists replaces that row (INSERT OR REPLACE).
func (s *Store) InsertChatMessage(ctx context.Context, m coreapi.ChatMessage) error {
	return s.withLock(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO chat_history (id, session_id, role, content, created_at)
			VALUES (?,?,?,?,?)`,
			m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt.UnixNano())
		return err
	})
}

// ChatHistory returns a session's messages oldest-first, for the Planner to
// prune through SessionResetCutoff before handing them to the plan LLM.
func (s *Store) ChatHistory(ctx context.Context, sessionID string) ([]coreapi.ChatMessage, error) {
	var out []coreapi.ChatMessage
	err := s.withLock(func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, session_id, role, content, created_at
			FROM chat_history WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m coreapi.ChatMessage
			var createdNano int64
			if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdNano); err != nil {
				return err
			}
			m.CreatedAt = time.Unix(0, createdNano)
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}
