package cache

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

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestSingleFlightCache_HitNoIO(t *testing.T) {
	clock := newFakeClock()
	c := NewSingleFlight[string, int]("test", time.Minute, time.Second).WithClock(clock)

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, hit, err := c.Get(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	// TTL 内再次读取不触发拉取
	v, hit, err = c.Get(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestSingleFlightCache_ExpiryRefetch(t *testing.T) {
	clock := newFakeClock()
	c := NewSingleFlight[string, int]("test", time.Minute, time.Second).WithClock(clock)

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, _, _ := c.Get(context.Background(), "k", fetch)
	assert.Equal(t, 1, v)

	// 过期后重新拉取
	clock.Advance(time.Minute + time.Second)
	v, hit, err := c.Get(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, v)
}

func TestSingleFlightCache_StaleOnFailure(t *testing.T) {
	clock := newFakeClock()
	c := NewSingleFlight[string, int]("test", time.Minute, 10*time.Second).WithClock(clock)

	fetchOK := func(ctx context.Context) (int, error) { return 7, nil }
	fetchFail := func(ctx context.Context) (int, error) { return 0, errors.New("upstream down") }

	v, _, err := c.Get(context.Background(), "k", fetchOK)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	// 过期后拉取失败，返回旧值
	clock.Advance(2 * time.Minute)
	v, _, err = c.Get(context.Background(), "k", fetchFail)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	// 旧值以 failureTTL 重新缓存：10 秒内命中，之后再次触发拉取
	clock.Advance(5 * time.Second)
	v, hit, err := c.Get(context.Background(), "k", fetchFail)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, v)

	clock.Advance(10 * time.Second)
	calls := 0
	v, _, err = c.Get(context.Background(), "k", func(ctx context.Context) (int, error) {
		calls++
		return 9, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 9, v)
	assert.Equal(t, 1, calls)
}

func TestSingleFlightCache_NoStalePropagates(t *testing.T) {
	c := NewSingleFlight[string, int]("test", time.Minute, time.Second)

	wantErr := errors.New("upstream down")
	_, _, err := c.Get(context.Background(), "cold", func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestSingleFlightCache_Coalescing(t *testing.T) {
	c := NewSingleFlight[string, int]("test", time.Minute, time.Second)

	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return 100, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, _, err := c.Get(context.Background(), "hot", fetch)
			assert.NoError(t, err)
			results[idx] = v
		}(i)
	}

	// 等第一个拉取开始后放行，确保其余调用者处于等待状态
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// 冷 key 的并发请求只触发一次上游拉取
	assert.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 100, v)
	}
}

func TestSingleFlightCache_EmptyIsMiss(t *testing.T) {
	clock := newFakeClock()
	c := NewSingleFlight[string, map[string]float64]("test", time.Minute, time.Second).
		WithClock(clock).
		WithEmptyIsMiss(func(m map[string]float64) bool { return len(m) == 0 })

	calls := 0
	empty := func(ctx context.Context) (map[string]float64, error) {
		calls++
		return map[string]float64{}, nil
	}

	_, _, err := c.Get(context.Background(), "k", empty)
	require.NoError(t, err)

	// 空集合不算命中，TTL 内也会再次拉取
	_, hit, err := c.Get(context.Background(), "k", empty)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestSingleFlightCache_Invalidate(t *testing.T) {
	clock := newFakeClock()
	c := NewSingleFlight[string, int]("test", time.Minute, time.Second).WithClock(clock)

	c.Put("k", 5, "manual")
	v, hit, _ := c.Get(context.Background(), "k", func(ctx context.Context) (int, error) { return 0, errors.New("no") })
	assert.True(t, hit)
	assert.Equal(t, 5, v)

	// 失效后下次读取触发拉取，失败时仍可降级到旧值
	c.Invalidate("k")
	v, hit, err := c.Get(context.Background(), "k", func(ctx context.Context) (int, error) { return 0, errors.New("no") })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5, v)
}

func TestSingleFlightCache_Age(t *testing.T) {
	clock := newFakeClock()
	c := NewSingleFlight[string, int]("test", time.Minute, time.Second).WithClock(clock)

	_, ok := c.Age("missing")
	assert.False(t, ok)

	c.Put("k", 1, "manual")
	clock.Advance(30 * time.Second)

	age, ok := c.Age("k")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, age)
}

func BenchmarkSingleFlightCache_Hit(b *testing.B) {
	c := NewSingleFlight[string, int]("bench", time.Hour, time.Second)
	c.Put("k", 1, "bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(context.Background(), "k", func(ctx context.Context) (int, error) { return 0, nil })
	}
}
