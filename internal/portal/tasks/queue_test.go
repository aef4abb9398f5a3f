package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ledgerdesk/internal/portal/domain"
)

type memSink struct {
	mu   sync.Mutex
	rows []domain.DeadLetter
	got  chan struct{}
}

func (s *memSink) CreateDeadLetter(_ context.Context, d domain.DeadLetter) error {
	s.mu.Lock()
	s.rows = append(s.rows, d)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func runQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestEnqueueRunsHandler(t *testing.T) {
	q := NewQueue(nil, quietLogger(), Options{Workers: 2})
	got := make(chan Email, 1)
	q.Register(KindEmailSend, func(_ context.Context, task Task) error {
		var e Email
		if err := task.Decode(&e); err != nil {
			return err
		}
		got <- e
		return nil
	})
	runQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), KindEmailSend, Email{To: []string{"a@example.com"}, Subject: "hi"}))

	select {
	case e := <-got:
		require.Equal(t, "hi", e.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestEnqueueUnknownKind(t *testing.T) {
	q := NewQueue(nil, quietLogger(), Options{})
	require.ErrorIs(t, q.Enqueue(context.Background(), "nope", nil), ErrUnknownKind)
}

func TestEnqueueFullDoesNotBlock(t *testing.T) {
	q := NewQueue(nil, quietLogger(), Options{Buffer: 1})
	q.Register(KindEmailSend, func(context.Context, Task) error { return nil })

	require.NoError(t, q.Enqueue(context.Background(), KindEmailSend, Email{}))
	require.ErrorIs(t, q.Enqueue(context.Background(), KindEmailSend, Email{}), ErrQueueFull)
	require.Equal(t, 1, q.Len())
}

func TestRetriesThenDeadLetters(t *testing.T) {
	sink := &memSink{got: make(chan struct{}, 1)}
	q := NewQueue(sink, quietLogger(), Options{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond})

	var calls atomic.Int32
	q.Register(KindEmailSend, func(_ context.Context, task Task) error {
		calls.Add(1)
		return errors.New("smtp: connection refused")
	})
	runQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), KindEmailSend, Email{Subject: "x"}))

	select {
	case <-sink.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no dead letter written")
	}
	require.EqualValues(t, 3, calls.Load())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.rows, 1)
	require.Equal(t, KindEmailSend, sink.rows[0].Kind)
	require.Equal(t, 3, sink.rows[0].Attempts)
	require.Contains(t, sink.rows[0].Error, "connection refused")
	require.JSONEq(t, `{"to":null,"subject":"x","body":""}`, sink.rows[0].Payload)
}

func TestRetrySucceeds(t *testing.T) {
	q := NewQueue(nil, quietLogger(), Options{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond})

	done := make(chan int, 1)
	q.Register(KindReplayDetected, func(_ context.Context, task Task) error {
		if task.Attempt < 2 {
			return errors.New("transient")
		}
		done <- task.Attempt
		return nil
	})
	runQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), KindReplayDetected, ReplayEvent{Family: "f"}))
	select {
	case n := <-done:
		require.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not succeed")
	}
}
