// Package schedule runs periodic maintenance jobs on a cron spec.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/memohai/supportbot/internal/healthcheck"
)

// DefaultKeepaliveSpec pings the store every thirty minutes.
const DefaultKeepaliveSpec = "*/30 * * * *"

// Service runs the keepalive job that evaluates health checks.
type Service struct {
	cron     *cron.Cron
	spec     string
	checkers []healthcheck.Checker
	logger   *slog.Logger

	mu      sync.Mutex
	entryID cron.EntryID
	last    []healthcheck.CheckResult
}

func NewService(log *slog.Logger, spec string, checkers ...healthcheck.Checker) *Service {
	if log == nil {
		log = slog.Default()
	}
	if spec == "" {
		spec = DefaultKeepaliveSpec
	}
	logger := log.With(slog.String("service", "keepalive"))
	cl := cronLogger{log: logger}
	return &Service{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		spec:     spec,
		checkers: checkers,
		logger:   logger,
	}
}

// cronLogger routes cron runner messages to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}

// ParseSpec validates a five field cron spec.
func ParseSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return nil
}

// Start registers the job and starts the cron runner.
func (s *Service) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID != 0 {
		return nil
	}
	id, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("schedule keepalive: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.logger.Info("keepalive scheduled", slog.String("spec", s.spec))
	return nil
}

// Stop waits for a running job until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce evaluates every checker and logs the results.
func (s *Service) RunOnce(ctx context.Context) []healthcheck.CheckResult {
	results := healthcheck.Run(ctx, s.checkers...)
	for _, r := range results {
		attrs := []any{
			slog.String("check", r.ID),
			slog.String("status", r.Status),
			slog.String("summary", r.Summary),
		}
		if r.Detail != "" {
			attrs = append(attrs, slog.String("detail", r.Detail))
		}
		for k, v := range r.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		switch r.Status {
		case healthcheck.StatusError:
			s.logger.Error("keepalive check", attrs...)
		case healthcheck.StatusWarn:
			s.logger.Warn("keepalive check", attrs...)
		default:
			s.logger.Info("keepalive check", attrs...)
		}
	}
	s.mu.Lock()
	s.last = results
	s.mu.Unlock()
	return results
}

// Last returns the results of the most recent run.
func (s *Service) Last() []healthcheck.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]healthcheck.CheckResult, len(s.last))
	copy(out, s.last)
	return out
}
