package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBService persists chat history in Postgres.
type DBService struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewService creates a Postgres-backed store.
func NewService(log *slog.Logger, pool *pgxpool.Pool) *DBService {
	if log == nil {
		log = slog.Default()
	}
	return &DBService{
		pool:   pool,
		logger: log.With(slog.String("service", "message")),
	}
}

const listMessagesSQL = `
SELECT id, chat_id, role, content, created_at
FROM chat_messages
WHERE chat_id = $1
ORDER BY id DESC
LIMIT $2`

func (s *DBService) List(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		return []Message{}, nil
	}
	rows, err := s.pool.Query(ctx, listMessagesSQL, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	slices.Reverse(items)
	return items, nil
}

const insertMessageSQL = `
INSERT INTO chat_messages (chat_id, role, content)
VALUES ($1, $2, $3)
RETURNING id, chat_id, role, content, created_at`

func (s *DBService) Persist(ctx context.Context, chatID int64, role, content string) (Message, error) {
	rows, err := s.pool.Query(ctx, insertMessageSQL, chatID, role, content)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	msg, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return Message{}, fmt.Errorf("scan inserted message: %w", err)
	}
	return msg, nil
}

func (s *DBService) Ping(ctx context.Context) (PingResult, error) {
	var latest time.Time
	err := s.pool.QueryRow(ctx, `SELECT created_at FROM chat_messages ORDER BY id DESC LIMIT 1`).Scan(&latest)
	if errors.Is(err, pgx.ErrNoRows) {
		return PingResult{Status: "ok"}, nil
	}
	if err != nil {
		s.logger.Warn("history store ping failed", slog.Any("error", err))
		return PingResult{Status: "error"}, fmt.Errorf("ping history store: %w", err)
	}
	return PingResult{Status: "ok", Latest: &latest}, nil
}
