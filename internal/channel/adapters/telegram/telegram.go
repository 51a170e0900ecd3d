// Package telegram wraps the Telegram Bot API for sending replies, moderating
// chats and decoding webhook updates.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/supportbot/internal/channel"
	"github.com/memohai/supportbot/internal/prune"
)

const (
	MaxMessageLength = 4096

	ParseModeHTML       = tgbotapi.ModeHTML
	ParseModeMarkdownV2 = tgbotapi.ModeMarkdownV2
)

var setBotLoggerOnce sync.Once

var (
	// ErrNoToken is returned when the client was built without a bot token.
	ErrNoToken = errors.New("telegram bot token is not configured")
	// ErrMessageTooLong is returned by Sink for chunks over the Bot API limit.
	ErrMessageTooLong = errors.New("telegram message too long")
)

// Client sends messages through one bot. The underlying BotAPI is created on
// first use so the process can start without network access.
type Client struct {
	token    string
	endpoint string
	logger   *slog.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewClient creates a client for token. endpoint overrides the Bot API URL
// template and may be empty.
func NewClient(log *slog.Logger, token, endpoint string) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		token:    strings.TrimSpace(token),
		endpoint: endpoint,
		logger:   log.With(slog.String("adapter", "telegram")),
	}
	setBotLoggerOnce.Do(func() {
		_ = tgbotapi.SetLogger(&slogBotLogger{log: c.logger})
	})
	return c
}

// Configured reports whether a token is present.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

func (c *Client) getOrCreateBot() (*tgbotapi.BotAPI, error) {
	if !c.Configured() {
		return nil, ErrNoToken
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return c.bot, nil
	}
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(c.token, endpoint)
	if err != nil {
		c.logger.Error("create bot failed", slog.Any("error", err))
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	c.bot = bot
	return bot, nil
}

// SendMessage sends text to target, which is a numeric chat id or an
// @channel username. Text is truncated to the Bot API limit.
func (c *Client) SendMessage(ctx context.Context, target, text, parseMode string) error {
	bot, err := c.getOrCreateBot()
	if err != nil {
		return err
	}
	msg, err := newTextMessage(target, truncateText(sanitizeText(text)), parseMode)
	if err != nil {
		return err
	}
	return c.send(ctx, bot, msg)
}

// Reply sends text to chatID, splitting it at line boundaries when it exceeds
// the Bot API limit.
func (c *Client) Reply(ctx context.Context, chatID int64, text, parseMode string) error {
	bot, err := c.getOrCreateBot()
	if err != nil {
		return err
	}
	for _, chunk := range channel.ChunkText(sanitizeText(text), MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = parseMode
		if err := c.send(ctx, bot, msg); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMessage removes one message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	bot, err := c.getOrCreateBot()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message %d: %w", messageID, err)
	}
	return nil
}

// BanMember bans userID from chatID, optionally deleting their messages.
func (c *Client) BanMember(ctx context.Context, chatID, userID int64, revokeMessages bool) error {
	bot, err := c.getOrCreateBot()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		RevokeMessages:   revokeMessages,
	}
	if _, err := bot.Request(ban); err != nil {
		return fmt.Errorf("ban user %d: %w", userID, err)
	}
	return nil
}

// Sink returns a channel.Sink that posts HTML messages to target. Chunks
// longer than MaxMessageLength UTF-16 code units are rejected, not truncated.
func (c *Client) Sink(target string) channel.Sink {
	return channel.SinkFunc(func(ctx context.Context, text string) error {
		if n := utf16Len(text); n > MaxMessageLength {
			return fmt.Errorf("%w: %d of %d units", ErrMessageTooLong, n, MaxMessageLength)
		}
		return c.SendMessage(ctx, target, text, ParseModeHTML)
	})
}

func (c *Client) send(ctx context.Context, bot *tgbotapi.BotAPI, msg tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := bot.Send(msg)
	if wait := retryAfter(err); wait > 0 {
		c.logger.Warn("telegram rate limited, retrying", slog.Duration("retry_after", wait))
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		_, err = bot.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func newTextMessage(target, text, parseMode string) (tgbotapi.MessageConfig, error) {
	target = strings.TrimSpace(target)
	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(target, "@") {
		msg = tgbotapi.NewMessageToChannel(target, text)
	} else {
		chatID, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return msg, fmt.Errorf("telegram target must be @username or chat_id, got %q", target)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}
	msg.ParseMode = parseMode
	return msg, nil
}

// DecodeUpdate parses a webhook body.
func DecodeUpdate(body []byte) (tgbotapi.Update, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return update, fmt.Errorf("decode telegram update: %w", err)
	}
	return update, nil
}

func retryAfter(err error) time.Duration {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 && apiErr.RetryAfter > 0 {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}

func sanitizeText(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// utf16Len counts text the way the Bot API measures message length.
func utf16Len(text string) int {
	n := 0
	for _, r := range text {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// truncateText cuts text to MaxMessageLength runes, ending with "..." when cut.
func truncateText(text string) string {
	return prune.Fit(text, MaxMessageLength, prune.Ellipsis)
}

type slogBotLogger struct {
	log *slog.Logger
}

func (l *slogBotLogger) Println(v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l *slogBotLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}
