package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SecretHeader carries the webhook secret configured with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// StatusResponse is the body of every accepted webhook call.
type StatusResponse struct {
	Status string `json:"status"`
}

// DetailResponse is returned when a webhook call is rejected.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// SecretToken rejects requests whose secret header is missing or differs
// from secret. Rejections still answer 200 so Telegram does not retry them.
func SecretToken(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			values, ok := c.Request().Header[http.CanonicalHeaderKey(SecretHeader)]
			if !ok || len(values) == 0 {
				return c.JSON(http.StatusOK, DetailResponse{Detail: "Unauthorized"})
			}
			if subtle.ConstantTimeCompare([]byte(values[0]), []byte(secret)) != 1 {
				return c.JSON(http.StatusOK, DetailResponse{Detail: "Invalid token"})
			}
			return next(c)
		}
	}
}
