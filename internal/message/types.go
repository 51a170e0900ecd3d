// Package message stores per-chat conversation history.
package message

import (
	"context"
	"time"

	"github.com/memohai/supportbot/internal/conversation"
)

// Message is one persisted chat turn.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation converts a stored row into a history entry.
func (m Message) Conversation() conversation.Message {
	return conversation.Message{Role: conversation.NormalizeRole(m.Role), Content: m.Content}
}

// PingResult is returned by the store health probe.
type PingResult struct {
	Status string     `json:"status"`
	Latest *time.Time `json:"latest,omitempty"`
}

// Store reads and appends chat history.
type Store interface {
	// List returns up to limit most recent messages of chatID in chronological order.
	List(ctx context.Context, chatID int64, limit int) ([]Message, error)
	Persist(ctx context.Context, chatID int64, role, content string) (Message, error)
	Ping(ctx context.Context) (PingResult, error)
}

// History maps stored rows into conversation order.
func History(rows []Message) []conversation.Message {
	out := make([]conversation.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Conversation())
	}
	return out
}
