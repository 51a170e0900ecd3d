package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/supportbot/internal/channel/adapters/telegram"
	"github.com/memohai/supportbot/internal/chat"
	"github.com/memohai/supportbot/internal/config"
	"github.com/memohai/supportbot/internal/conversation"
	"github.com/memohai/supportbot/internal/db"
	"github.com/memohai/supportbot/internal/email"
	emailgeneric "github.com/memohai/supportbot/internal/email/adapters/generic"
	emailgmail "github.com/memohai/supportbot/internal/email/adapters/gmail"
	"github.com/memohai/supportbot/internal/logger"
	"github.com/memohai/supportbot/internal/message"
	"github.com/memohai/supportbot/internal/newsletter"
)

// commonOptions wires the components shared by every subcommand.
func commonOptions(configPath string) fx.Option {
	return fx.Options(
		fx.Provide(
			func() (config.Config, error) { return provideConfig(configPath) },
			provideLogger,
			provideChatProvider,
			provideBots,
			provideFetcher,
			provideNewsletter,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}

func provideConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideChatProvider(log *slog.Logger, cfg config.Config) chat.Provider {
	if cfg.OpenAI.APIKey == "" {
		log.Warn("openai api key is not configured; completions will fail")
	}
	return chat.NewOpenAIProvider(log, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Timeout())
}

func provideTokenizer(log *slog.Logger, cfg config.Config) conversation.Tokenizer {
	return conversation.NewTokenizer(cfg.OpenAI.Model, log)
}

// botClients holds the two Telegram identities the process speaks as.
type botClients struct {
	Support *telegram.Client
	Spam    *telegram.Client
}

func provideBots(log *slog.Logger, cfg config.Config) botClients {
	bots := botClients{
		Support: telegram.NewClient(log, cfg.Telegram.Token, ""),
		Spam:    telegram.NewClient(log, cfg.Spam.Token, ""),
	}
	if !bots.Support.Configured() {
		log.Warn("telegram token is not configured; replies and newsletter delivery are disabled")
	}
	return bots
}

// provideStore uses Postgres when configured and process memory otherwise.
func provideStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (message.Store, error) {
	if !cfg.Postgres.Enabled() {
		log.Warn("postgres is not configured; chat history is kept in memory")
		return message.NewMemoryService(cfg.Conversation.HistoryLimit), nil
	}
	dsn := cfg.Postgres.URL()
	if err := db.Migrate(log, dsn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := db.Open(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return message.NewService(log, pool), nil
}

// unavailableFetcher stands in for a mailbox that could not be configured.
type unavailableFetcher struct {
	err error
}

func (f unavailableFetcher) FetchRecent(context.Context, int) ([]email.Item, error) {
	return nil, f.err
}

func provideFetcher(log *slog.Logger, cfg config.Config) email.Fetcher {
	switch cfg.Mailbox.Provider {
	case "imap":
		if cfg.IMAP.Host == "" {
			log.Warn("imap host is not configured; newsletter is disabled")
			return unavailableFetcher{err: errors.New("imap mailbox is not configured")}
		}
		return emailgeneric.NewFetcher(log, emailgeneric.IMAPConfig{
			Host:       cfg.IMAP.Host,
			Port:       cfg.IMAP.Port,
			Username:   cfg.IMAP.Username,
			Password:   cfg.IMAP.Password,
			Security:   cfg.IMAP.Security,
			MaxResults: cfg.Mailbox.MaxResults,
		})
	default:
		adapter, err := emailgmail.New(context.Background(), log, emailgmail.Config{
			ClientID:     cfg.Gmail.ClientID,
			ClientSecret: cfg.Gmail.ClientSecret,
			TokenBase64:  cfg.Gmail.TokenBase64,
			TokenFile:    cfg.Gmail.TokenFile,
			MaxResults:   cfg.Mailbox.MaxResults,
		})
		if err != nil {
			log.Warn("gmail mailbox is not available; newsletter is disabled", slog.Any("error", err))
			return unavailableFetcher{err: fmt.Errorf("gmail mailbox: %w", err)}
		}
		return adapter
	}
}

func provideNewsletter(log *slog.Logger, cfg config.Config, provider chat.Provider, bots botClients, fetcher email.Fetcher) (*newsletter.Scheduler, error) {
	loc, err := cfg.Newsletter.Location()
	if err != nil {
		return nil, err
	}
	cache, err := newsletter.NewSentCache(cfg.Newsletter.CacheCapacity)
	if err != nil {
		return nil, err
	}
	enabled := cfg.Newsletter.Enabled
	if _, ok := fetcher.(unavailableFetcher); ok {
		enabled = false
	}
	if enabled && cfg.Newsletter.ChannelID == "" {
		log.Warn("newsletter channel id is not configured; scheduled delivery is disabled")
		enabled = false
	}
	if enabled && !bots.Support.Configured() {
		enabled = false
	}

	var mirrors []newsletter.Mirror
	if cfg.SMTP.Host != "" && len(cfg.Newsletter.EmailRecipients) > 0 {
		sender := emailgeneric.NewSender(log, emailgeneric.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Security: cfg.SMTP.Security,
		})
		mirrors = append(mirrors, newsletter.NewEmailMirror(sender, cfg.Newsletter.EmailRecipients))
	}

	composer := newsletter.NewComposer(log, provider, cfg.OpenAI.SummarizerModel, cfg.Newsletter.MaxTokens)
	return newsletter.NewScheduler(log, newsletter.Config{
		Enabled:      enabled,
		Hour:         cfg.Newsletter.Hour,
		Destination:  cfg.Newsletter.ChannelID,
		LookbackDays: cfg.Newsletter.LookbackDays,
		ChunkSize:    cfg.Newsletter.ChunkSize,
		Interval:     cfg.Newsletter.Interval(),
		Location:     loc,
	}, fetcher, composer, bots.Support.Sink(cfg.Newsletter.ChannelID), cache, mirrors...), nil
}
