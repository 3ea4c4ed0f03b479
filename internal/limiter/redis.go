package limiter

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "magasin:attempts:"

// Redis shares attempt counters between server instances. The window starts
// at a key's first attempt.
type Redis struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRedis(addr string, password string, db int, max int, window time.Duration) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{client: client, max: max, window: window}
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Redis) Close() error {
	return l.client.Close()
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	key = redisKeyPrefix + key

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.max), nil
}
