// Package redis builds the shared go-redis client.
package redis

import (
	"context"
	"fmt"
	"time"

	"civicconnect_backend/internal/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects to REDIS_URL. It returns a nil client when Redis is not configured.
func NewClient(cfg *config.Config, logger *zap.Logger) (*goredis.Client, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set; issue rate limiting disabled")
		return nil, func() {}, nil
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	return client, cleanup, nil
}
