package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/repository"
)

// compile-time check that *DB implements repository.ChatMessageRepository
var _ repository.ChatMessageRepository = (*DB)(nil)

// SaveMessage persists one chat line.
func (db *DB) SaveMessage(ctx context.Context, msg *model.ChatMessage) error {
	msg.ID = xid.New().String()
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO chat_messages (id, pot_id, sender_id, message, sent_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.PotID, msg.SenderID, msg.Message, msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving chat message: %w", err)
	}
	return nil
}

// History returns a pot's chat lines oldest-first, with the sender's
// nickname joined in for display.
func (db *DB) History(ctx context.Context, potID string) ([]model.ChatMessage, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT m.id, m.pot_id, m.sender_id, u.nickname, m.message, m.sent_at
		 FROM chat_messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.pot_id = ?
		 ORDER BY m.sent_at ASC, m.id ASC`,
		potID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading chat history: %w", err)
	}
	defer rows.Close()

	var history []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.PotID, &m.SenderID, &m.SenderNickname, &m.Message, &m.SentAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning chat row: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating chat history: %w", err)
	}
	return history, nil
}
