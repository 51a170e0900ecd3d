package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/supportbot/internal/channel/adapters/telegram"
	"github.com/memohai/supportbot/internal/command"
)

const maxUpdateBytes = 1 << 20

// Enqueuer schedules work for a chat without blocking.
type Enqueuer interface {
	Enqueue(chatID int64, name string, fn func(ctx context.Context) error) (string, error)
}

// MessageRouter handles one text message addressed to the support bot.
type MessageRouter interface {
	Handle(ctx context.Context, in command.Incoming) error
}

// WebhookHandler receives support bot updates and hands text messages to
// the command router in the background.
type WebhookHandler struct {
	queue  Enqueuer
	router MessageRouter
	logger *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, queue Enqueuer, router MessageRouter) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		queue:  queue,
		router: router,
		logger: log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.POST("/webhook", h.Handle, mw...)
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxUpdateBytes))
	if err != nil {
		h.logger.Warn("read update failed", slog.Any("error", err))
		return accepted(c)
	}
	update, err := telegram.DecodeUpdate(body)
	if err != nil {
		h.logger.Warn("malformed update", slog.Any("error", err))
		return accepted(c)
	}
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		h.logger.Debug("ignoring non-text update", slog.Int("update_id", update.UpdateID))
		return accepted(c)
	}
	in := command.Incoming{ChatID: msg.Chat.ID, Text: msg.Text}
	if _, err := h.queue.Enqueue(in.ChatID, "message", func(ctx context.Context) error {
		return h.router.Handle(ctx, in)
	}); err != nil {
		h.logger.Warn("update not scheduled", slog.Int64("chat_id", in.ChatID), slog.Any("error", err))
	}
	return accepted(c)
}

func accepted(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}
