package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memohai/supportbot/internal/chat"
	"github.com/memohai/supportbot/internal/conversation"
	"github.com/memohai/supportbot/internal/message"
)

func (r *Router) handleStart(ctx context.Context, in Incoming, _ string) error {
	return r.reply(ctx, in.ChatID, helpText, parseModeMDV2)
}

func (r *Router) handleEcho(ctx context.Context, in Incoming, arg string) error {
	return r.reply(ctx, in.ChatID, "Received your message: "+arg, "")
}

func (r *Router) handleSummary(ctx context.Context, in Incoming, arg string) error {
	out, err := r.summarizer.Text(ctx, arg)
	if err != nil {
		return err
	}
	return r.reply(ctx, in.ChatID, out, "")
}

func (r *Router) handleSummaryURL(ctx context.Context, in Incoming, arg string) error {
	out, err := r.summarizer.URL(ctx, arg)
	if err != nil {
		return err
	}
	return r.reply(ctx, in.ChatID, "Summary:\n\n"+out, "")
}

func (r *Router) handleSummaryYouTube(ctx context.Context, in Incoming, arg string) error {
	out, err := r.summarizer.YouTube(ctx, arg)
	if err != nil {
		return err
	}
	return r.reply(ctx, in.ChatID, out.Reply(), "")
}

func (r *Router) handlePrompt(ctx context.Context, in Incoming, arg string) error {
	out, err := chat.Ask(ctx, r.provider, r.cfg.Model, "", arg, 0)
	if err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	return r.reply(ctx, in.ChatID, out, "")
}

// handleChat answers a freeform message using the stored history trimmed to
// the context budget, then persists the exchange.
func (r *Router) handleChat(ctx context.Context, in Incoming) error {
	logger := r.logger.With(slog.Int64("chat_id", in.ChatID))
	rows, err := r.store.List(ctx, in.ChatID, r.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	history := append(message.History(rows), conversation.UserMessage(in.Text))
	window := conversation.Trim(history, r.cfg.ContextSize, r.tokenizer)
	logger.Debug("context window",
		slog.Int("history", len(history)),
		slog.Int("window", len(window)),
		slog.Int("tokens", conversation.TotalTokens(window, r.tokenizer)),
	)

	res, err := r.provider.Complete(ctx, chat.Request{Model: r.cfg.Model, Messages: window})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	answer := strings.TrimSpace(res.Content)
	if err := r.reply(ctx, in.ChatID, answer, ""); err != nil {
		return err
	}
	if _, err := r.store.Persist(ctx, in.ChatID, conversation.RoleUser, in.Text); err != nil {
		logger.Error("persist user message failed", slog.Any("error", err))
		return nil
	}
	if _, err := r.store.Persist(ctx, in.ChatID, conversation.RoleAssistant, answer); err != nil {
		logger.Error("persist assistant message failed", slog.Any("error", err))
	}
	return nil
}
