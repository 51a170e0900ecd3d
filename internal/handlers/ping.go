package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/supportbot/internal/message"
)

type PingHandler struct {
	store  message.Store
	logger *slog.Logger
}

func NewPingHandler(log *slog.Logger, store message.Store) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{store: store, logger: log.With(slog.String("handler", "ping"))}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Ping)
	e.HEAD("/health", h.PingHead)
	e.GET("/api/health", h.StorePing)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// StorePing reports the history store probe result.
func (h *PingHandler) StorePing(c echo.Context) error {
	if h.store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history store unavailable")
	}
	res, err := h.store.Ping(c.Request().Context())
	if err != nil {
		h.logger.Error("store ping failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history store unavailable")
	}
	return c.JSON(http.StatusOK, res)
}
