package spam

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Actions removes a message and bans its author.
type Actions interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	BanMember(ctx context.Context, chatID, userID int64, revokeMessages bool) error
}

// Incoming is a text message seen by the moderation bot.
type Incoming struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Text      string
}

// Outcome describes what the moderator did with a message.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeRateLimited
	OutcomeClean
	OutcomeBanned
	// OutcomeDeleted is spam without a known sender: removed, nobody banned.
	OutcomeDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeClean:
		return "clean"
	case OutcomeBanned:
		return "banned"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "ignored"
	}
}

// Moderator rate limits, classifies and acts on incoming messages.
type Moderator struct {
	classifier *Classifier
	limiter    *ChatLimiter
	actions    Actions
	logger     *slog.Logger
	now        func() time.Time
}

func NewModerator(log *slog.Logger, classifier *Classifier, limiter *ChatLimiter, actions Actions) *Moderator {
	if log == nil {
		log = slog.Default()
	}
	return &Moderator{
		classifier: classifier,
		limiter:    limiter,
		actions:    actions,
		logger:     log.With(slog.String("service", "spam")),
		now:        time.Now,
	}
}

// Handle processes one message. Removal continues to the ban even when the
// delete call fails. Messages without a sender (channel posts, anonymous
// admins) are only deleted.
func (m *Moderator) Handle(ctx context.Context, in Incoming) (Outcome, error) {
	if in.Text == "" {
		return OutcomeIgnored, nil
	}
	logger := m.logger.With(slog.Int64("chat_id", in.ChatID), slog.Int64("user_id", in.UserID))
	if !m.limiter.Allow(in.ChatID, m.now()) {
		logger.Info("too many calls from chat")
		return OutcomeRateLimited, nil
	}
	verdict, err := m.classifier.Classify(ctx, in.Text)
	if err != nil {
		return OutcomeIgnored, err
	}
	logger.Info("message classified", slog.Bool("spam", verdict.Spam), slog.String("username", in.Username), slog.String("answer", verdict.Answer))
	if !verdict.Spam {
		return OutcomeClean, nil
	}
	deleteErr := m.actions.DeleteMessage(ctx, in.ChatID, in.MessageID)
	if in.UserID == 0 {
		if deleteErr != nil {
			return OutcomeIgnored, fmt.Errorf("delete message %d: %w", in.MessageID, deleteErr)
		}
		logger.Info("spam without sender deleted")
		return OutcomeDeleted, nil
	}
	if deleteErr != nil {
		logger.Warn("delete spam message failed", slog.Any("error", deleteErr))
	}
	if err := m.actions.BanMember(ctx, in.ChatID, in.UserID, true); err != nil {
		return OutcomeIgnored, fmt.Errorf("ban member %d: %w", in.UserID, err)
	}
	return OutcomeBanned, nil
}
