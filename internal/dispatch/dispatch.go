// Package dispatch runs webhook work in the background, one chat at a time.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultQueueSize   = 16
	DefaultMaxInFlight = 32
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("dispatcher stopped")

// ErrQueueFull is returned when a chat already has QueueSize pending tasks.
var ErrQueueFull = errors.New("chat queue full")

type task struct {
	id     string
	name   string
	chatID int64
	fn     func(ctx context.Context) error
}

type chatQueue struct {
	tasks chan task
}

// Dispatcher executes tasks of the same chat in arrival order and bounds the
// number of tasks running across all chats.
type Dispatcher struct {
	queueSize int
	sem       *semaphore.Weighted
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queues  map[int64]*chatQueue
	stopped bool
}

func New(log *slog.Logger, queueSize, maxInFlight int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queueSize: queueSize,
		sem:       semaphore.NewWeighted(int64(maxInFlight)),
		logger:    log.With(slog.String("service", "dispatch")),
		ctx:       ctx,
		cancel:    cancel,
		queues:    make(map[int64]*chatQueue),
	}
}

// Enqueue schedules fn for chatID and returns the task id. It never blocks;
// when the chat queue is full the task is dropped.
func (d *Dispatcher) Enqueue(chatID int64, name string, fn func(ctx context.Context) error) (string, error) {
	t := task{id: uuid.NewString(), name: name, chatID: chatID, fn: fn}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return "", ErrStopped
	}
	q, ok := d.queues[chatID]
	if !ok {
		q = &chatQueue{tasks: make(chan task, d.queueSize)}
		d.queues[chatID] = q
		d.wg.Add(1)
		go d.worker(chatID, q)
	}
	select {
	case q.tasks <- t:
		return t.id, nil
	default:
		d.logger.Warn("chat queue full, dropping update",
			slog.Int64("chat_id", chatID),
			slog.String("task", name),
		)
		return "", ErrQueueFull
	}
}

// worker drains one chat queue and exits once it is empty.
func (d *Dispatcher) worker(chatID int64, q *chatQueue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.tasks) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		t := <-q.tasks
		d.mu.Unlock()
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	logger := d.logger.With(
		slog.String("task_id", t.id),
		slog.String("task", t.name),
		slog.Int64("chat_id", t.chatID),
	)
	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		logger.Warn("task abandoned", slog.Any("error", err))
		return
	}
	defer d.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", slog.Any("panic", r))
		}
	}()
	if err := t.fn(d.ctx); err != nil {
		logger.Error("task failed", slog.Any("error", err))
		return
	}
	logger.Debug("task done")
}

// Pending reports the number of chats with queued or running work.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Stop rejects new work and waits for queued tasks until ctx is done, then
// cancels whatever is still running.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("stop dispatcher: %w", ctx.Err())
	}
}
