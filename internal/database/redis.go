package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/klture/creditwallet/internal/config"
	"go.uber.org/zap"
)

// OpenRedis returns nil when Redis cannot be reached. Callers run without
// the balance cache then, and voucher endpoints report unavailable.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connection failed, continuing without redis", zap.Error(err))
		rdb.Close()
		return nil
	}

	logger.Info("redis connection established", zap.String("addr", cfg.Addr()))
	return rdb
}
