package message

import (
	"context"
	"sync"
	"time"
)

// MemoryService keeps history in process memory. It is used when no
// database is configured. Each chat holds at most maxPerChat rows; older
// rows are dropped on Persist.
type MemoryService struct {
	mu         sync.Mutex
	nextID     int64
	maxPerChat int
	chats      map[int64][]Message
	now        func() time.Time
}

// NewMemoryService creates a store keeping the newest maxPerChat rows per
// chat. A non-positive maxPerChat keeps everything.
func NewMemoryService(maxPerChat int) *MemoryService {
	return &MemoryService{
		maxPerChat: maxPerChat,
		chats:      make(map[int64][]Message),
		now:        time.Now,
	}
}

func (s *MemoryService) List(_ context.Context, chatID int64, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return []Message{}, nil
	}
	rows := s.chats[chatID]
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]Message, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *MemoryService) Persist(_ context.Context, chatID int64, role, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := Message{
		ID:        s.nextID,
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
	rows := append(s.chats[chatID], msg)
	if s.maxPerChat > 0 && len(rows) > s.maxPerChat {
		rows = append([]Message(nil), rows[len(rows)-s.maxPerChat:]...)
	}
	s.chats[chatID] = rows
	return msg, nil
}

func (s *MemoryService) Ping(context.Context) (PingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *time.Time
	for _, rows := range s.chats {
		if n := len(rows); n > 0 {
			ts := rows[n-1].CreatedAt
			if latest == nil || ts.After(*latest) {
				latest = &ts
			}
		}
	}
	return PingResult{Status: "ok", Latest: latest}, nil
}
