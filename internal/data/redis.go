// Package data provides data access layer implementations.
package data

import (
	"context"
	"time"

	"ScoutFeed/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates the Redis client backing the state mirror.
// Redis being down never prevents startup; the mirror degrades to
// warnings and the pipeline keeps running on in-memory state.
func NewRedisClient(c *conf.Data, logger log.Logger) (*redis.Client, func()) {
	helper := log.NewHelper(logger)

	if c == nil || c.Redis == nil || c.Redis.Addr == "" {
		helper.Warn("redis not configured, state mirror disabled")
		return nil, func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            c.Redis.Addr,
		PoolSize:        100,
		MinIdleConns:    10,
		DialTimeout:     3 * time.Second,
		ReadTimeout:     c.Redis.ReadTimeout.AsDuration(),
		WriteTimeout:    c.Redis.WriteTimeout.AsDuration(),
		ConnMaxIdleTime: 5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		helper.Warnf("failed to connect to redis at %s: %v (continuing without state mirror)", c.Redis.Addr, err)
	} else {
		helper.Infof("connected to redis at %s", c.Redis.Addr)
	}

	cleanup := func() {
		helper.Info("closing redis client")
		if err := rdb.Close(); err != nil {
			helper.Errorf("failed to close redis client: %v", err)
		}
	}
	return rdb, cleanup
}
