package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/memohai/supportbot/internal/handlers"
)

// Options configures routing.
type Options struct {
	Addr string
	// RequireSecret enables the webhook secret header check.
	RequireSecret bool
	BotSecret     string
	SpamSecret    string
}

type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

func NewServer(log *slog.Logger, opts Options, pingHandler *handlers.PingHandler, webhookHandler *handlers.WebhookHandler, banBotHandler *handlers.BanBotHandler) *Server {
	if log == nil {
		log = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if webhookHandler != nil {
		webhookHandler.Register(e, secretMiddleware(opts.RequireSecret, opts.BotSecret)...)
	}
	if banBotHandler != nil {
		banBotHandler.Register(e, secretMiddleware(opts.RequireSecret, opts.SpamSecret)...)
	}

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("service", "http")),
	}
}

func secretMiddleware(required bool, secret string) []echo.MiddlewareFunc {
	if !required {
		return nil
	}
	return []echo.MiddlewareFunc{handlers.SecretToken(secret)}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Stop is called. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
