package redisdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const caseLockKeyFmt = "caselock:%d"

// ErrLocked is returned when another request holds the user's case lock.
var ErrLocked = errors.New("case is locked by another request")

// Release only deletes the key if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// CaseLock serializes case writes for one user across server instances.
type CaseLock struct {
	rdb   *redis.Client
	key   string
	token string
}

// AcquireCaseLock tries to take the lock, retrying every 50ms until ctx is
// done or wait elapses.
func AcquireCaseLock(ctx context.Context, rdb *redis.Client, userID uint, ttl, wait time.Duration) (*CaseLock, error) {
	l := &CaseLock{
		rdb:   rdb,
		key:   fmt.Sprintf(caseLockKeyFmt, userID),
		token: uuid.NewString(),
	}
	deadline := time.Now().Add(wait)
	for {
		ok, err := rdb.SetNX(ctx, l.key, l.token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (l *CaseLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
}
