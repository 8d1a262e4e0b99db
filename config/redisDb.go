package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

// GetRedisDB returns nil when redis is not configured; callers fall back to the database.
func GetRedisDB() *redis.Client {
	return rdb
}

// GetRedisLock returns nil until ConnectRedisWithRetry succeeds.
func GetRedisLock() *redislock.Client {
	return locker
}

// GetCachedObject decodes key into dest. The bool reports a cache hit.
func GetCachedObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dest)
}

func SetCachedObject(ctx context.Context, key string, obj interface{}, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, raw, ttl).Err()
}

func redisOptions() *redis.Options {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
	}
	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intFromEnv("REDIS_DB", 0),
		PoolSize: intFromEnv("REDIS_POOL_SIZE", 50),
	}
}

// ConnectRedisWithRetry blocks until redis answers a PING, then installs the
// shared client and the order lock client.
func ConnectRedisWithRetry() {
	opts := redisOptions()
	logger := GetLogger().WithField("addr", opts.Addr)

	for attempt := 1; ; attempt++ {
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			rdb = client
			locker = redislock.New(client)
			logger.WithField("attempt", attempt).Info("connected to redis")
			return
		}
		_ = client.Close()

		wait := min(time.Second<<min(attempt, 5), 30*time.Second)
		logger.WithFields(logrus.Fields{"attempt": attempt, "retry_in": wait.String()}).WithError(err).Warn("redis unavailable")
		time.Sleep(wait)
	}
}
