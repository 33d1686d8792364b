package redis

import (
	"context"
	"time"

	"qr-code-tracker/config"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// NewClient builds the client for the remote authoritative tier. A failed
// initial ping is not fatal: the service starts in local-tier mode and the
// connectivity monitor flips state once Redis becomes reachable.
func NewClient(cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Warn().Err(err).Str("address", cfg.Address).
			Msg("Redis unreachable at startup, remote tier offline")
	} else {
		log.Info().Str("address", cfg.Address).Msg("Connected to Redis successfully")
	}

	return rdb
}
