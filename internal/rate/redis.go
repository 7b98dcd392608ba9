package rate

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"
)

// RedisStore implementa el log deslizante con sorted sets.
// score = unix ms; cada hit es un miembro único.
type RedisStore struct {
	Client rdb.Cmdable
}

func NewRedisStore(client rdb.Cmdable) *RedisStore {
	return &RedisStore{Client: client}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	// MULTI/EXEC: add + evict + count + expire en un solo bloque
	pipe := s.Client.TxPipeline()
	pipe.ZAdd(ctx, key, rdb.Z{Score: float64(nowMs), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(nowMs-window.Milliseconds(), 10))
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func (s *RedisStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	lo := "(" + strconv.FormatInt(now.UnixMilli()-window.Milliseconds(), 10)
	hi := strconv.FormatInt(now.UnixMilli(), 10)
	return s.Client.ZCount(ctx, key, lo, hi).Result()
}
