// Package database connects to the Redis instance that backs shared sessions.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/valpere/nebo/internal/config"
)

const pingTimeout = 5 * time.Second

func redisOptions(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// ConnectRedis opens a client and fails if the server does not answer a ping
func ConnectRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(redisOptions(cfg))

	if err := CheckRedis(context.Background(), rdb); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// CheckRedis pings the server, bounded by a short timeout
func CheckRedis(ctx context.Context, rdb redis.Cmdable) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}
