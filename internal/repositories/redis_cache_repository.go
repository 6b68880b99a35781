package repositories

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Удаление блокировки только её владельцем, атомарно на стороне Redis.
var delIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCacheRepository struct {
	client *redis.Client
}

func NewRedisCacheRepository(client *redis.Client) CacheRepositoryInterface {
	return &RedisCacheRepository{client: client}
}

func (r *RedisCacheRepository) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, expiration).Result()
}

func (r *RedisCacheRepository) DelIfEquals(ctx context.Context, key, expected string) (bool, error) {
	n, err := delIfEqualsScript.Run(ctx, r.client, []string{key}, expected).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
