package infra

import (
	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a redis client for the notification channel. Returns
// nil when REDIS_ADDR is unset; notifications are optional.
func NewRedisClient(cfg *Config) *redis.Client {
	if cfg == nil || cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
}
