package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(s Store) (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewLimiter(s, "").WithClock(c.Now), c
}

func TestCheckLimitTwo(t *testing.T) {
	t.Parallel()

	l, c := newTestLimiter(NewMemoryStore())
	limits := Limits{PerMinute: 2, PerHour: 100, PerDay: 100}
	ctx := context.Background()

	var allowed []bool
	var last Decision
	for i := 0; i < 3; i++ {
		d, err := l.Check(ctx, "t1", "c1", limits)
		require.NoError(t, err)
		allowed = append(allowed, d.Allowed)
		last = d
		c.Advance(time.Second)
	}

	assert.Equal(t, []bool{true, true, false}, allowed)
	assert.Greater(t, last.RetryAfter, time.Duration(0))
	assert.Equal(t, Minute, last.Governing.Window)
	assert.Equal(t, int64(2), last.Governing.Limit)
	assert.Equal(t, int64(0), last.Minute().Remaining)
}

func TestCheckWindowsAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	// minuto agotado con hora/día holgados: bloquea igual
	limits := Limits{PerMinute: 1, PerHour: 1000, PerDay: 1000}
	_, err := l.Check(ctx, "t", "c", limits)
	require.NoError(t, err)
	d, err := l.Check(ctx, "t", "c", limits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, Minute, d.Governing.Window)
	assert.Equal(t, 60*time.Second, d.RetryAfter)

	// hora agotada con minuto holgado: gobierna la hora
	limits = Limits{PerMinute: 100, PerHour: 1, PerDay: 1000}
	_, err = l.Check(ctx, "t", "c2", limits)
	require.NoError(t, err)
	d, err = l.Check(ctx, "t", "c2", limits)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, Hour, d.Governing.Window)
	assert.Equal(t, time.Hour, d.RetryAfter)
	assert.Equal(t, int64(98), d.Minute().Remaining)
}

func TestCheckKeysAreScopedPerTenantAndClient(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	limits := Limits{PerMinute: 1, PerHour: 10, PerDay: 10}

	d, _ := l.Check(ctx, "t1", "c1", limits)
	assert.True(t, d.Allowed)
	d, _ = l.Check(ctx, "t2", "c1", limits)
	assert.True(t, d.Allowed)
	d, _ = l.Check(ctx, "t1", "c2", limits)
	assert.True(t, d.Allowed)
	d, _ = l.Check(ctx, "t1", "c1", limits)
	assert.False(t, d.Allowed)

	assert.Equal(t, "ratelimit:t1:c1:minute", l.Key("t1", "c1", Minute))
}

// Con requests repartidos uniformemente en 2 ventanas, en ningún instante
// hay más de limit requests permitidos dentro de la ventana que termina ahí.
func TestSlidingWindowHasNoBoundaryBurst(t *testing.T) {
	t.Parallel()

	const limit = 5
	l, c := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	limits := Limits{PerMinute: limit, PerHour: 1 << 20, PerDay: 1 << 20}

	step := 3 * time.Second // 40 requests en 2 minutos
	var admitted []time.Time
	for i := 0; i < 40; i++ {
		now := c.Now()
		d, err := l.Check(ctx, "t", "c", limits)
		require.NoError(t, err)
		if d.Allowed {
			admitted = append(admitted, now)
		}

		inWindow := 0
		for _, ts := range admitted {
			if ts.After(now.Add(-time.Minute)) {
				inWindow++
			}
		}
		require.LessOrEqual(t, inWindow, limit, "at step %d", i)
		c.Advance(step)
	}
	assert.NotEmpty(t, admitted)
}

func TestSlidingWindowRecoversAfterWindow(t *testing.T) {
	t.Parallel()

	l, c := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	limits := Limits{PerMinute: 1, PerHour: 100, PerDay: 100}

	d, _ := l.Check(ctx, "t", "c", limits)
	require.True(t, d.Allowed)
	c.Advance(61 * time.Second)
	d, _ = l.Check(ctx, "t", "c", limits)
	assert.True(t, d.Allowed)
}

func TestUsageDoesNotConsume(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	limits := Limits{PerMinute: 3, PerHour: 3, PerDay: 3}

	_, err := l.Check(ctx, "t", "c", limits)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		u, err := l.Usage(ctx, "t", "c", limits)
		require.NoError(t, err)
		assert.Equal(t, int64(1), u[0].Count)
		assert.Equal(t, int64(2), u[2].Remaining)
	}
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Count(context.Context, string, time.Time, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (failingStore) Name() string { return "failing" }

func TestCheckPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	l := NewLimiter(failingStore{}, "")
	_, err := l.Check(context.Background(), "t", "c", TierFree.Limits())
	assert.Error(t, err)
	_, err = l.Usage(context.Background(), "t", "c", TierFree.Limits())
	assert.Error(t, err)
}

func TestMemoryStoreConcurrentHits(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	now := time.Now()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Hit(ctx, "k", now, time.Minute)
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx, "k", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}

func TestMemoryStoreConcurrentHitsAfterExpiry(t *testing.T) {
	t.Parallel()

	const window = 200 * time.Millisecond
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Hit(ctx, "k", time.Now(), window)
	require.NoError(t, err)
	time.Sleep(window + 50*time.Millisecond)

	now := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Hit(ctx, "k", now, window)
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx, "k", now, window)
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}
