package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ArtJustine/scheduler-sub001/config"
)

var (
	redisClient *redis.Client
	redisMu     sync.Mutex
)

// InitRedis connects to Redis when REDIS_HOST is set. It returns nil when
// Redis is not configured or not reachable; callers then keep their state in
// process memory, which only holds for a single instance.
func InitRedis(cfg config.AppConfig) *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisClient != nil {
		return redisClient
	}
	if cfg.RedisHost == "" {
		return nil
	}

	rc := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		Sugar.Warnw("redis unreachable, using in-memory state", "addr", rc.Options().Addr, "error", err)
		_ = rc.Close()
		return nil
	}
	redisClient = rc
	return redisClient
}

