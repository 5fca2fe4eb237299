package redisdb

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const quotaKeyFmt = "quota:%d:%s"

// IncrDailyMessages bumps the user's message counter for the current UTC day
// and returns the new value. Keys expire shortly after the day ends.
func IncrDailyMessages(ctx context.Context, rdb *redis.Client, userID uint, now time.Time) (int64, error) {
	day := now.UTC().Format("2006-01-02")
	key := fmt.Sprintf(quotaKeyFmt, userID, day)

	pipe := rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 25*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// DailyMessages returns today's counter without changing it.
func DailyMessages(ctx context.Context, rdb *redis.Client, userID uint, now time.Time) (int64, error) {
	key := fmt.Sprintf(quotaKeyFmt, userID, now.UTC().Format("2006-01-02"))
	n, err := rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
