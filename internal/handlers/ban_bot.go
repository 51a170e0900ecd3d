package handlers

import (
	"context"
	"io"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/memohai/supportbot/internal/channel/adapters/telegram"
	"github.com/memohai/supportbot/internal/spam"
)

// Moderator acts on messages seen by the spam bot.
type Moderator interface {
	Handle(ctx context.Context, in spam.Incoming) (spam.Outcome, error)
}

// BanBotHandler receives updates for the moderation bot.
type BanBotHandler struct {
	queue     Enqueuer
	moderator Moderator
	logger    *slog.Logger
}

func NewBanBotHandler(log *slog.Logger, queue Enqueuer, moderator Moderator) *BanBotHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BanBotHandler{
		queue:     queue,
		moderator: moderator,
		logger:    log.With(slog.String("handler", "ban_bot")),
	}
}

func (h *BanBotHandler) Register(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.POST("/ban_bot/webhook", h.Handle, mw...)
}

func (h *BanBotHandler) Handle(c echo.Context) error {
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
		return accepted(c)
	}
	in := spam.Incoming{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	if msg.From != nil {
		in.UserID = msg.From.ID
		in.Username = msg.From.UserName
	}
	logger := h.logger.With(slog.Int64("chat_id", in.ChatID), slog.Int("message_id", in.MessageID))
	if _, err := h.queue.Enqueue(in.ChatID, "moderate", func(ctx context.Context) error {
		outcome, err := h.moderator.Handle(ctx, in)
		logger.Debug("moderation finished", slog.String("outcome", outcome.String()))
		return err
	}); err != nil {
		logger.Warn("update not scheduled", slog.Any("error", err))
	}
	return accepted(c)
}
