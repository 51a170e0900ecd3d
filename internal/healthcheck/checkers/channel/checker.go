package channelchecker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/memohai/supportbot/internal/healthcheck"
)

const checkTypeChannelConfig = "channel.config"

// Configurable reports whether an outbound channel has credentials.
type Configurable interface {
	Configured() bool
}

// Checker reports which bot channels can send messages.
type Checker struct {
	logger   *slog.Logger
	channels map[string]Configurable
	optional map[string]bool
}

// NewChecker creates a channel health checker. Channels listed in optional
// only warn when unconfigured.
func NewChecker(log *slog.Logger, channels map[string]Configurable, optional ...string) *Checker {
	if log == nil {
		log = slog.Default()
	}
	opt := make(map[string]bool, len(optional))
	for _, name := range optional {
		opt[name] = true
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_channel")),
		channels: channels,
		optional: opt,
	}
}

func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	names := make([]string, 0, len(c.channels))
	for name := range c.channels {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make([]healthcheck.CheckResult, 0, len(names))
	for _, name := range names {
		ch := c.channels[name]
		item := healthcheck.CheckResult{
			ID:       checkTypeChannelConfig + "." + name,
			Type:     checkTypeChannelConfig,
			Status:   healthcheck.StatusOK,
			Summary:  fmt.Sprintf("Channel %s is configured.", name),
			Metadata: map[string]any{"channel": name},
		}
		if ch == nil || !ch.Configured() {
			item.Status = healthcheck.StatusError
			if c.optional[name] {
				item.Status = healthcheck.StatusWarn
			}
			item.Summary = fmt.Sprintf("Channel %s has no token.", name)
		}
		checks = append(checks, item)
	}
	return checks
}
