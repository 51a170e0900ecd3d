package storechecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/memohai/supportbot/internal/healthcheck"
	"github.com/memohai/supportbot/internal/message"
)

const checkTypeStore = "store.ping"

// Pinger probes the history store.
type Pinger interface {
	Ping(ctx context.Context) (message.PingResult, error)
}

// Checker pings the history store. Besides reporting health it keeps hosted
// databases from idling out.
type Checker struct {
	logger  *slog.Logger
	store   Pinger
	timeout time.Duration
}

func NewChecker(log *slog.Logger, store Pinger, timeout time.Duration) *Checker {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Checker{
		logger:  log.With(slog.String("checker", "healthcheck_store")),
		store:   store,
		timeout: timeout,
	}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	item := healthcheck.CheckResult{
		ID:       checkTypeStore,
		Type:     checkTypeStore,
		Metadata: map[string]any{},
	}
	if c.store == nil {
		item.Status = healthcheck.StatusWarn
		item.Summary = "History store is not available."
		return []healthcheck.CheckResult{item}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	res, err := c.store.Ping(ctx)
	item.Metadata["latency_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		item.Status = healthcheck.StatusError
		item.Summary = "History store ping failed."
		item.Detail = err.Error()
		return []healthcheck.CheckResult{item}
	}
	item.Status = healthcheck.StatusOK
	item.Summary = "History store is reachable."
	if res.Latest != nil {
		item.Metadata["latest"] = res.Latest.UTC().Format(time.RFC3339)
	}
	return []healthcheck.CheckResult{item}
}
