package cache

import (
	"context"
	"log"
	"time"

	"examgrade/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

func ConnectRedis() {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx := context.Background()
	if _, err := RDB.Ping(ctx).Result(); err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
	}
}

// LinkCache resolves test link tokens to test ids without a DB round trip.
// Link rows are immutable once issued, so a plain TTL is enough.
type LinkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLinkCache(rdb *redis.Client, ttl time.Duration) *LinkCache {
	return &LinkCache{rdb: rdb, ttl: ttl}
}

func (c *LinkCache) GetTestID(ctx context.Context, token string) (string, bool) {
	val, err := c.rdb.Get(ctx, linkKey(token)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *LinkCache) SetTestID(ctx context.Context, token, testID string) error {
	return c.rdb.Set(ctx, linkKey(token), testID, c.ttl).Err()
}

func linkKey(token string) string {
	return "test_link:" + token
}
