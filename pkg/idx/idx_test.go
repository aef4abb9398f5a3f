package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/ledgerdesk/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
	require.True(t, idx.Valid(idx.NewString()))
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, s)
	}
}

func TestGeneratorUsesClock(t *testing.T) {
	at := time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC)
	g := idx.NewGenerator(func() time.Time { return at })

	id := g.New()
	require.WithinDuration(t, at, id.Time(), time.Millisecond)
}

func TestGeneratorIsMonotonic(t *testing.T) {
	at := time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC)
	g := idx.NewGenerator(func() time.Time { return at })

	prev := g.New()
	for range 1000 {
		next := g.New()
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestGeneratorConcurrent(t *testing.T) {
	g := idx.NewGenerator(nil)

	var mu sync.Mutex
	seen := make(map[idx.ID]struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				id := g.New()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 1600)
}

func TestZeroTime(t *testing.T) {
	require.True(t, idx.Zero.Time().IsZero())
}
