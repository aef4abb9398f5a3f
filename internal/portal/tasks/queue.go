// Package tasks runs side effects (mail, security notifications) off the
// request path. Enqueue never blocks; failed tasks are retried with linear
// backoff and end up in the dead-letter table.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
	"github.com/aussiebroadwan/ledgerdesk/internal/portal/metrics"
	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
)

var (
	ErrQueueFull   = errors.New("tasks: queue full")
	ErrUnknownKind = errors.New("tasks: no handler registered")
	ErrStopped     = errors.New("tasks: queue stopped")
)

const (
	DefaultWorkers     = 4
	DefaultBuffer      = 256
	DefaultMaxAttempts = 5
	DefaultBackoff     = 2 * time.Second
)

type Task struct {
	ID      string
	Kind    string
	Payload json.RawMessage
	Attempt int // 1-based, set by the queue
}

// Decode unmarshals the payload into v.
func (t Task) Decode(v any) error { return json.Unmarshal(t.Payload, v) }

type Handler func(ctx context.Context, t Task) error

// DeadLetterSink persists tasks that exhausted their retries.
type DeadLetterSink interface {
	CreateDeadLetter(ctx context.Context, d domain.DeadLetter) error
}

type Options struct {
	Workers     int
	Buffer      int
	MaxAttempts int
	Backoff     time.Duration // multiplied by the attempt number
}

type Queue struct {
	opts     Options
	sink     DeadLetterSink
	logger   *slog.Logger
	ch       chan Task
	mu       sync.RWMutex
	handlers map[string]Handler
	stopped  bool
	now      func() time.Time
}

func NewQueue(sink DeadLetterSink, logger *slog.Logger, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		opts:     opts,
		sink:     sink,
		logger:   logger.With("component", "tasks"),
		ch:       make(chan Task, opts.Buffer),
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
}

// Register binds a handler to kind. Call before Run.
func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Enqueue marshals payload and hands the task to the workers without
// waiting. A full buffer returns ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any) error {
	q.mu.RLock()
	_, ok := q.handlers[kind]
	stopped := q.stopped
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if stopped {
		return ErrStopped
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tasks: encode %s payload: %w", kind, err)
	}

	t := Task{ID: idx.NewString(), Kind: kind, Payload: raw}
	select {
	case q.ch <- t:
		metrics.TaskQueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Len is the number of tasks waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Run starts the workers and blocks until ctx is cancelled and every
// worker has returned. Tasks still buffered at shutdown are logged and
// dropped.
func (q *Queue) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range q.opts.Workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			q.work(ctx, worker)
		}(i)
	}
	<-ctx.Done()

	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	wg.Wait()
	if n := len(q.ch); n > 0 {
		q.logger.Warn("tasks dropped at shutdown", "count", n)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.ch:
			metrics.TaskQueueDepth.Set(float64(len(q.ch)))
			q.process(ctx, worker, t)
		}
	}
}

func (q *Queue) process(ctx context.Context, worker int, t Task) {
	q.mu.RLock()
	h := q.handlers[t.Kind]
	q.mu.RUnlock()

	l := q.logger.With("task_id", t.ID, "kind", t.Kind, "worker", worker)

	var err error
	for attempt := 1; attempt <= q.opts.MaxAttempts; attempt++ {
		t.Attempt = attempt
		if err = h(ctx, t); err == nil {
			metrics.TasksProcessedTotal.WithLabelValues(t.Kind, "ok").Inc()
			l.Debug("task done", "attempt", attempt)
			return
		}
		metrics.TasksProcessedTotal.WithLabelValues(t.Kind, "error").Inc()
		l.Warn("task attempt failed", "attempt", attempt, "error", err)

		if attempt == q.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			l.Warn("task abandoned at shutdown", "attempt", attempt)
			return
		case <-time.After(q.opts.Backoff * time.Duration(attempt)):
		}
	}

	q.deadLetter(ctx, l, t, err)
}

func (q *Queue) deadLetter(ctx context.Context, l *slog.Logger, t Task, cause error) {
	metrics.DeadLettersTotal.WithLabelValues(t.Kind).Inc()
	l.Error("task dead-lettered", "attempts", t.Attempt, "error", cause)

	if q.sink == nil {
		return
	}
	d := domain.DeadLetter{
		ID:        t.ID,
		Kind:      t.Kind,
		Payload:   string(t.Payload),
		Error:     cause.Error(),
		Attempts:  t.Attempt,
		CreatedAt: q.now().UTC(),
	}
	if err := q.sink.CreateDeadLetter(context.WithoutCancel(ctx), d); err != nil {
		l.Error("failed to persist dead letter", "error", err)
	}
}
