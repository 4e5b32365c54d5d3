package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smvora4u/restaurant-management/internal/guard"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

var _ guard.WindowStore = (*WindowStore)(nil)

func newTestStore(t *testing.T) (*WindowStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := New(client, time.Minute)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestTake_UpToLimit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 8; i++ {
		count, ok, err := s.Take(ctx, "auto:o1", 8, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, ok, "take %d", i)
		assert.Equal(t, i, count)
	}

	count, ok, err := s.Take(ctx, "auto:o1", 8, t0.Add(20*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 8, count)
}

func TestTake_ResetsAfterWindow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Take(ctx, "k", 1, t0)
	require.NoError(t, err)

	_, ok, err := s.Take(ctx, "k", 1, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	count, ok, err := s.Take(ctx, "k", 1, t0.Add(time.Minute+time.Millisecond))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, count)
}

func TestTake_Unlimited(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 1; i <= 40; i++ {
		count, ok, err := s.Take(context.Background(), "pressure:o1", 0, t0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, count)
	}
}

func TestTake_PrefixAndExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	_, _, err := s.Take(context.Background(), "user:o1", 20, t0)
	require.NoError(t, err)

	key := DefaultPrefix + "user:o1"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Minute, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(key))
}

func TestTake_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := New(client, time.Minute, WithPrefix("kitchen-2:"))
	defer s.Close()

	_, _, err := s.Take(context.Background(), "auto:o1", 8, t0)
	require.NoError(t, err)
	assert.True(t, mr.Exists("kitchen-2:auto:o1"))
}

func TestTake_ConcurrentNeverExceedsLimit(t *testing.T) {
	s, _ := newTestStore(t)
	const limit = 8

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.Take(context.Background(), "auto:o1", limit, t0)
			if err == nil && ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, limit, granted)
}

func TestTake_ServerDown(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, _, err := s.Take(context.Background(), "auto:o1", 8, t0)
	assert.Error(t, err)
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := Dial(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer s.Close()

	_, err = Dial(context.Background(), "", time.Minute)
	assert.Error(t, err)
	_, err = Dial(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}

func TestGuardWithRedisWindows(t *testing.T) {
	s, _ := newTestStore(t)

	// Two guard processes sharing one budget see a combined count.
	a, _, err := s.Take(context.Background(), guard.BudgetAutomatic.Key("o1"), 8, t0)
	require.NoError(t, err)
	b, _, err := s.Take(context.Background(), guard.BudgetAutomatic.Key("o1"), 8, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}
