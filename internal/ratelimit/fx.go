package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/estatebill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewFromConfig),
)

// NewFromConfig falls back to Unlimited when rate limiting is off or Redis is missing.
func NewFromConfig(cfg config.Config, client *redis.Client, log *zap.Logger) (Limiter, error) {
	log = log.Named("rate.limit")
	if !cfg.RateLimit.Enabled {
		return Unlimited{}, nil
	}
	if client == nil {
		log.Warn("rate limiting enabled without redis, readings are not limited")
		return Unlimited{}, nil
	}

	limiter, err := NewReadingLimiter(NewTokenBucket(client), cfg.RateLimit.ReadingRate, cfg.RateLimit.ReadingBurst)
	if err != nil {
		return nil, err
	}
	log.Info("reading rate limit enabled",
		zap.Float64("rate", cfg.RateLimit.ReadingRate),
		zap.Int("burst", cfg.RateLimit.ReadingBurst),
	)
	return limiter, nil
}
