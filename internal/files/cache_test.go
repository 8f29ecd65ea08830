package files

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives cache expiry in tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration, size int) (*LoadCache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLoadCache[string](ttl, size)
	c.now = clock.Now
	return c, clock
}

func TestLoadCache(t *testing.T) {
	t.Run("constructor", func(t *testing.T) {
		tests := []struct {
			name    string
			ttl     time.Duration
			maxSize int
		}{
			{"standard config", 15 * time.Minute, 16},
			{"zero TTL", 0, 4},
			{"zero size", time.Hour, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := NewLoadCache[int](tt.ttl, tt.maxSize)
				require.NotNil(t, c)

				stats := c.Stats()
				assert.Equal(t, tt.maxSize, stats.MaxEntries)
				assert.Equal(t, tt.ttl.Seconds(), stats.TTLSeconds)
				assert.Zero(t, stats.Hits)
				assert.Zero(t, stats.Misses)
				assert.Zero(t, stats.HitRatio)
			})
		}
	})

	t.Run("entry lifecycle", func(t *testing.T) {
		c, clock := newTestCache(time.Minute, 4)

		_, found := c.Get("k")
		assert.False(t, found)

		c.Set("k", "v")
		v, found := c.Get("k")
		require.True(t, found)
		assert.Equal(t, "v", v)

		clock.Advance(2 * time.Minute)
		_, found = c.Get("k")
		assert.False(t, found, "entry expired")

		stats := c.Stats()
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(2), stats.Misses)
		assert.InDelta(t, 1.0/3.0, stats.HitRatio, 1e-9)
		assert.Equal(t, 0, stats.Entries)
	})

	t.Run("evicts oldest when full", func(t *testing.T) {
		c, clock := newTestCache(time.Hour, 2)

		c.Set("a", "1")
		clock.Advance(time.Second)
		c.Set("b", "2")
		clock.Advance(time.Second)
		c.Set("c", "3")

		_, found := c.Get("a")
		assert.False(t, found)
		_, found = c.Get("b")
		assert.True(t, found)
		_, found = c.Get("c")
		assert.True(t, found)
	})

	t.Run("zero size stores nothing", func(t *testing.T) {
		c, _ := newTestCache(time.Hour, 0)
		c.Set("a", "1")
		_, found := c.Get("a")
		assert.False(t, found)
	})

	t.Run("invalidate clears everything", func(t *testing.T) {
		c, _ := newTestCache(time.Hour, 8)
		c.Set("a", "1")
		c.Set("b", "2")
		assert.Equal(t, 2, c.Invalidate())
		assert.Equal(t, 0, c.Stats().Entries)
		assert.Equal(t, 0, c.Invalidate())
	})
}

func TestLoadCacheGetOrLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("memoizes successful loads", func(t *testing.T) {
		c, _ := newTestCache(time.Hour, 8)
		var calls int32
		load := func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "parsed", nil
		}

		v, hit, err := c.GetOrLoad(ctx, "key", load)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "parsed", v)

		v, hit, err = c.GetOrLoad(ctx, "key", load)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, "parsed", v)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("does not cache failures", func(t *testing.T) {
		c, _ := newTestCache(time.Hour, 8)
		boom := errors.New("boom")
		var calls int32
		load := func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", boom
		}

		_, _, err := c.GetOrLoad(ctx, "key", load)
		assert.ErrorIs(t, err, boom)
		_, _, err = c.GetOrLoad(ctx, "key", load)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.Equal(t, 0, c.Stats().Entries)
	})

	t.Run("concurrent misses share one load", func(t *testing.T) {
		c, _ := newTestCache(time.Hour, 8)
		var calls int32
		release := make(chan struct{})
		load := func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			<-release
			return "shared", nil
		}

		const workers = 8
		var wg sync.WaitGroup
		results := make([]string, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, _, err := c.GetOrLoad(ctx, "key", load)
				assert.NoError(t, err)
				results[i] = v
			}(i)
		}

		// let the goroutines pile up on the in-flight load
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		for _, v := range results {
			assert.Equal(t, "shared", v)
		}
		assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	})
}
