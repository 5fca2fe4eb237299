package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyFmt = "session:%d"

// SessionIdle is the inactivity window refreshed on every authenticated request.
const SessionIdle = 30 * time.Minute

func SetSession(ctx context.Context, rdb *redis.Client, userId uint, token string, duration time.Duration) error {
	return rdb.Set(ctx, fmt.Sprintf(sessionKeyFmt, userId), token, duration).Err()
}

func GetSession(ctx context.Context, rdb *redis.Client, userId uint) (string, error) {
	return rdb.Get(ctx, fmt.Sprintf(sessionKeyFmt, userId)).Result()
}

func DeleteSession(ctx context.Context, rdb *redis.Client, userId uint) error {
	return rdb.Del(ctx, fmt.Sprintf(sessionKeyFmt, userId)).Err()
}

// OnlineUserCount returns the number of unique users with active sessions.
func OnlineUserCount(ctx context.Context, rdb *redis.Client) (int, error) {
	var cursor uint64
	userIds := make(map[string]struct{})
	for {
		keys, newCursor, err := rdb.Scan(ctx, cursor, "session:*", 100).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			parts := strings.Split(key, ":")
			if len(parts) == 2 && parts[0] == "session" && parts[1] != "" {
				userIds[parts[1]] = struct{}{}
			}
		}
		if newCursor == 0 {
			break
		}
		cursor = newCursor
	}
	return len(userIds), nil
}
