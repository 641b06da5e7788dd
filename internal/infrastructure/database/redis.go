package database

import (
	"context"
	"fmt"
	"time"

	"github.com/gdugdh24/mpit2026-matchqueue/internal/config"
	"github.com/redis/go-redis/v9"
)

const redisClientName = "matchqueue-notify"

// NewRedisClient connects the client used for notification fan-out and
// checks it with a PING.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	opts := redisOptions(cfg)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}

func redisOptions(cfg *config.RedisConfig) *redis.Options {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	minIdle := min(cfg.MinIdleConns, poolSize)

	return &redis.Options{
		Addr:         cfg.GetAddr(),
		ClientName:   redisClientName,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
		MinIdleConns: minIdle,
	}
}
