package newsletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/memohai/supportbot/internal/channel"
	"github.com/memohai/supportbot/internal/email"
)

const (
	DefaultInterval  = time.Hour
	DefaultChunkSize = 4000
	dateLayout       = "2006-01-02"
)

// ErrNoDestination is returned by SendNow when no channel is configured.
var ErrNoDestination = errors.New("newsletter destination is not configured")

// Config controls the delivery gate and batch sizes.
type Config struct {
	Enabled      bool
	Hour         int
	Destination  string
	LookbackDays int
	ChunkSize    int
	Interval     time.Duration
	Location     *time.Location
}

// Result describes one delivery attempt.
type Result struct {
	Fetched int
	New     int
	Senders int
	Units   int
	Skipped string
	Report  channel.Report
}

// Scheduler wakes every Interval and delivers at most one digest per day
// during the configured hour.
type Scheduler struct {
	cfg      Config
	fetcher  email.Fetcher
	composer *Composer
	sink     channel.Sink
	cache    *SentCache
	mirrors  []Mirror
	logger   *slog.Logger
	now      func() time.Time

	// deliverMu serializes delivery attempts and guards lastSentDate.
	deliverMu    sync.Mutex
	lastSentDate string

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(log *slog.Logger, cfg Config, fetcher email.Fetcher, composer *Composer, sink channel.Sink, cache *SentCache, mirrors ...Mirror) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.LookbackDays < 1 {
		cfg.LookbackDays = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:      cfg,
		fetcher:  fetcher,
		composer: composer,
		sink:     sink,
		cache:    cache,
		mirrors:  mirrors,
		logger:   log.With(slog.String("service", "newsletter")),
		now:      time.Now,
	}
}

// Start launches the polling loop. It does nothing when the scheduler is
// already running or disabled.
func (s *Scheduler) Start(ctx context.Context) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.running {
		s.logger.Warn("newsletter scheduler already running")
		return
	}
	if !s.cfg.Enabled {
		s.logger.Info("newsletter scheduler disabled")
		return
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	s.logger.Info("newsletter scheduler started",
		slog.Int("hour", s.cfg.Hour),
		slog.Duration("interval", s.cfg.Interval),
	)
}

// Stop cancels the loop and waits for it to exit or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stateMu.Lock()
	if !s.running {
		s.stateMu.Unlock()
		return nil
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.stateMu.Unlock()

	cancel()
	select {
	case <-done:
		s.logger.Info("newsletter scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.running
}

// LastSentDate returns the local date of the last completed daily attempt.
func (s *Scheduler) LastSentDate() string {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	return s.lastSentDate
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		s.tick(ctx)
		timer := time.NewTimer(s.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick applies the daily gate and runs at most one delivery attempt.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("newsletter tick panicked", slog.Any("panic", r))
		}
	}()

	now := s.now().In(s.cfg.Location)
	if now.Hour() != s.cfg.Hour {
		return
	}
	if s.cfg.Destination == "" {
		s.logger.Warn("no newsletter destination configured, skipping")
		return
	}
	today := now.Format(dateLayout)

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.lastSentDate == today {
		s.logger.Debug("newsletter already sent today", slog.String("date", today))
		return
	}
	res, err := s.deliverLocked(ctx)
	if err != nil {
		s.logger.Error("newsletter delivery failed", slog.Any("error", err))
		return
	}
	s.lastSentDate = today
	s.logResult(res)
}

// SendNow runs one delivery attempt immediately, ignoring the hour and the
// daily gate. It does not update the last sent date.
func (s *Scheduler) SendNow(ctx context.Context) (Result, error) {
	if s.cfg.Destination == "" {
		return Result{}, ErrNoDestination
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	res, err := s.deliverLocked(ctx)
	if err != nil {
		return res, err
	}
	s.logResult(res)
	return res, nil
}

func (s *Scheduler) deliverLocked(ctx context.Context) (Result, error) {
	var res Result
	items, err := s.fetcher.FetchRecent(ctx, s.cfg.LookbackDays)
	if err != nil {
		return res, fmt.Errorf("fetch mailbox: %w", err)
	}
	res.Fetched = len(items)
	if len(items) == 0 {
		res.Skipped = "no items"
		return res, nil
	}

	fresh := make([]email.Item, 0, len(items))
	for _, item := range items {
		if !s.cache.Contains(item.ID) {
			fresh = append(fresh, item)
		}
	}
	res.New = len(fresh)
	if len(fresh) == 0 {
		res.Skipped = "all items already sent"
		return res, nil
	}

	groups := GroupBySender(fresh)
	res.Senders = len(groups)
	units := s.composer.Compose(ctx, groups, s.cfg.LookbackDays)
	res.Units = len(units)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Report = channel.Deliver(ctx, Texts(units), s.cfg.ChunkSize, s.sink)
	if !res.Report.OK() {
		return res, fmt.Errorf("deliver digest: %w", res.Report.Err())
	}
	for _, item := range fresh {
		s.cache.MarkSent(item.ID)
	}
	for _, m := range s.mirrors {
		if err := m.Mirror(ctx, units); err != nil {
			s.logger.Warn("newsletter mirror failed", slog.Any("error", err))
		}
	}
	return res, nil
}

func (s *Scheduler) logResult(res Result) {
	if res.Skipped != "" {
		s.logger.Info("newsletter skipped", slog.String("reason", res.Skipped), slog.Int("fetched", res.Fetched))
		return
	}
	s.logger.Info("newsletter delivered",
		slog.Int("fetched", res.Fetched),
		slog.Int("new", res.New),
		slog.Int("senders", res.Senders),
		slog.Int("units", res.Units),
		slog.Int("chunks", res.Report.Sent),
	)
}
