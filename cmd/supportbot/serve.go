package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/memohai/supportbot/internal/chat"
	"github.com/memohai/supportbot/internal/command"
	"github.com/memohai/supportbot/internal/config"
	"github.com/memohai/supportbot/internal/conversation"
	"github.com/memohai/supportbot/internal/dispatch"
	"github.com/memohai/supportbot/internal/handlers"
	"github.com/memohai/supportbot/internal/healthcheck"
	channelchecker "github.com/memohai/supportbot/internal/healthcheck/checkers/channel"
	storechecker "github.com/memohai/supportbot/internal/healthcheck/checkers/store"
	"github.com/memohai/supportbot/internal/message"
	"github.com/memohai/supportbot/internal/newsletter"
	"github.com/memohai/supportbot/internal/schedule"
	"github.com/memohai/supportbot/internal/server"
	"github.com/memohai/supportbot/internal/spam"
	"github.com/memohai/supportbot/internal/summarize"
	"github.com/memohai/supportbot/internal/telegraph"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server, newsletter scheduler and keepalive job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(serveOptions(opts.configPath))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func serveOptions(configPath string) fx.Option {
	return fx.Options(
		commonOptions(configPath),
		fx.StopTimeout(30*time.Second),
		fx.Provide(
			provideTokenizer,
			provideStore,
			provideDispatcher,
			provideSummarizer,
			provideRouter,
			provideModerator,
			provideKeepalive,
			provideServer,
		),
		fx.Invoke(
			startDispatcher,
			startNewsletter,
			startKeepalive,
			startServer,
		),
	)
}

func provideDispatcher(log *slog.Logger, cfg config.Config) *dispatch.Dispatcher {
	return dispatch.New(log, cfg.Dispatch.QueueSize, cfg.Dispatch.MaxInFlight)
}

func provideSummarizer(log *slog.Logger, cfg config.Config, provider chat.Provider, tok conversation.Tokenizer) *summarize.Service {
	return summarize.NewService(log, provider, tok,
		summarize.NewReadabilityExtractor(cfg.OpenAI.Timeout()),
		summarize.NewYouTubeTranscripts(),
		telegraph.NewClient(log, ""),
		summarize.Options{
			Models: summarize.Models{
				Main:       cfg.OpenAI.Model,
				Summarizer: cfg.OpenAI.SummarizerModel,
				Transcript: cfg.OpenAI.TranscriptModel,
			},
			Languages: cfg.YouTube.Languages,
		},
	)
}

func provideRouter(log *slog.Logger, cfg config.Config, bots botClients, provider chat.Provider, summarizer *summarize.Service, store message.Store, tok conversation.Tokenizer) *command.Router {
	return command.NewRouter(log, command.Config{
		Model:        cfg.OpenAI.Model,
		ContextSize:  cfg.Conversation.ContextSize,
		HistoryLimit: cfg.Conversation.HistoryLimit,
	}, bots.Support, provider, summarizer, store, tok)
}

// provideModerator returns nil when the spam bot is disabled.
func provideModerator(log *slog.Logger, cfg config.Config, bots botClients, provider chat.Provider) (*spam.Moderator, error) {
	if !cfg.Spam.Enabled {
		return nil, nil
	}
	if !bots.Spam.Configured() {
		log.Warn("spam bot token is not configured; moderation is disabled")
		return nil, nil
	}
	limiter, err := spam.NewChatLimiter(cfg.Spam.RateLimit, time.Duration(cfg.Spam.RatePeriodSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	examples := spam.NewExampleSource(log, cfg.Spam.ExamplesURL, time.Duration(cfg.Spam.ExamplesTTLSeconds)*time.Second)
	classifier := spam.NewClassifier(provider, cfg.OpenAI.SpamModel, examples)
	return spam.NewModerator(log, classifier, limiter, bots.Spam), nil
}

func provideKeepalive(log *slog.Logger, cfg config.Config, store message.Store, bots botClients) *schedule.Service {
	channels := map[string]channelchecker.Configurable{"support": bots.Support}
	var optional []string
	if cfg.Spam.Enabled {
		channels["spam"] = bots.Spam
		optional = append(optional, "spam")
	}
	return schedule.NewService(log, cfg.Keepalive.Spec,
		storechecker.NewChecker(log, store, 0),
		channelchecker.NewChecker(log, channels, optional...),
	)
}

func provideServer(log *slog.Logger, cfg config.Config, store message.Store, queue *dispatch.Dispatcher, router *command.Router, moderator *spam.Moderator) *server.Server {
	var banBot *handlers.BanBotHandler
	if moderator != nil {
		banBot = handlers.NewBanBotHandler(log, queue, moderator)
	}
	return server.NewServer(log, server.Options{
		Addr:          cfg.Server.Addr,
		RequireSecret: cfg.IsProd(),
		BotSecret:     cfg.Telegram.WebhookSecret,
		SpamSecret:    cfg.Spam.WebhookSecret,
	},
		handlers.NewPingHandler(log, store),
		handlers.NewWebhookHandler(log, queue, router),
		banBot,
	)
}

func startDispatcher(lc fx.Lifecycle, queue *dispatch.Dispatcher) {
	lc.Append(fx.Hook{OnStop: queue.Stop})
}

func startNewsletter(lc fx.Lifecycle, scheduler *newsletter.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { scheduler.Start(ctx); return nil },
		OnStop:  scheduler.Stop,
	})
}

func startKeepalive(lc fx.Lifecycle, keepalive *schedule.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			keepalive.RunOnce(ctx)
			return keepalive.Start(ctx)
		},
		OnStop: keepalive.Stop,
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, keepalive *schedule.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if status := healthcheck.Overall(keepalive.Last()); status != healthcheck.StatusOK {
				logger.Warn("starting with degraded health", slog.String("status", status))
			}
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
