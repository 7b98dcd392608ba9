package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client)
}

func TestRedisStoreHitEvictsAndExpires(t *testing.T) {
	mr, s := newMiniRedis(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	n, err := s.Hit(ctx, "ratelimit:t:c:minute", base, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Hit(ctx, "ratelimit:t:c:minute", base.Add(30*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.Equal(t, time.Minute, mr.TTL("ratelimit:t:c:minute"))

	// el primer hit queda fuera de (now-60s, now]
	n, err = s.Hit(ctx, "ratelimit:t:c:minute", base.Add(61*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	c, err := s.Count(ctx, "ratelimit:t:c:minute", base.Add(95*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c)
}

func TestRedisAndMemoryAgree(t *testing.T) {
	_, rs := newMiniRedis(t)
	ms := NewMemoryStore()

	lr, cr := newTestLimiter(rs)
	lm, cm := newTestLimiter(ms)
	ctx := context.Background()
	limits := Limits{PerMinute: 3, PerHour: 5, PerDay: 100}

	for i := 0; i < 12; i++ {
		dr, err := lr.Check(ctx, "t", "c", limits)
		require.NoError(t, err)
		dm, err := lm.Check(ctx, "t", "c", limits)
		require.NoError(t, err)

		assert.Equal(t, dm.Allowed, dr.Allowed, "step %d", i)
		assert.Equal(t, dm.Governing.Window, dr.Governing.Window, "step %d", i)
		cr.Advance(10 * time.Second)
		cm.Advance(10 * time.Second)
	}
}

func TestRedisStoreErrorWhenDown(t *testing.T) {
	mr, s := newMiniRedis(t)
	mr.Close()

	_, err := s.Hit(context.Background(), "k", time.Now(), time.Minute)
	assert.Error(t, err)
}
