package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

type countingLoader struct {
	values map[string]string
	calls  int
	err    error
}

func (l *countingLoader) load(_ context.Context, key string) (string, bool, error) {
	l.calls++
	if l.err != nil {
		return "", false, l.err
	}
	v, ok := l.values[key]
	return v, ok, nil
}

func newTestCache(t *testing.T, l *countingLoader) (*Cache, *stepClock) {
	t.Helper()
	clock := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, err := NewCache(8, time.Minute, clock, l.load)
	require.NoError(t, err)
	return c, clock
}

func TestCacheHitsWithinTTL(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{values: map[string]string{SMTPHost: "mail.example.com"}}
	c, clock := newTestCache(t, l)

	for range 3 {
		v, ok, err := c.Get(ctx, SMTPHost)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "mail.example.com", v)
	}
	require.Equal(t, 1, l.calls)

	clock.t = clock.t.Add(time.Minute)
	_, _, err := c.Get(ctx, SMTPHost)
	require.NoError(t, err)
	require.Equal(t, 2, l.calls, "entry expires at exactly ttl")
}

func TestCacheCachesMisses(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{values: map[string]string{}}
	c, _ := newTestCache(t, l)

	_, ok, err := c.Get(ctx, SMTPPort)
	require.NoError(t, err)
	require.False(t, ok)
	_, _, _ = c.Get(ctx, SMTPPort)
	require.Equal(t, 1, l.calls)
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{values: map[string]string{SMTPHost: "a", SMTPFrom: "b"}}
	c, _ := newTestCache(t, l)

	_, _, _ = c.Get(ctx, SMTPHost)
	_, _, _ = c.Get(ctx, SMTPFrom)
	require.Equal(t, 2, c.Len())

	l.values[SMTPHost] = "changed"
	c.Invalidate(SMTPHost)
	v, _, err := c.Get(ctx, SMTPHost)
	require.NoError(t, err)
	require.Equal(t, "changed", v)

	c.InvalidateAll()
	require.Equal(t, 0, c.Len())
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	l := &countingLoader{err: errors.New("db down")}
	c, _ := newTestCache(t, l)

	_, _, err := c.Get(ctx, SMTPHost)
	require.Error(t, err)
	l.err = nil
	l.values = map[string]string{SMTPHost: "ok"}

	v, ok, err := c.Get(ctx, SMTPHost)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ok", v)
}

func TestKeys(t *testing.T) {
	k, ok := Lookup(SMTPPassword)
	require.True(t, ok)
	require.True(t, k.Secret)

	_, ok = Lookup("nope")
	require.False(t, ok)
	require.Contains(t, Keys(), CalendarClientSecret)
}
