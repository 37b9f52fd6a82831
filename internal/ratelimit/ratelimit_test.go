package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/estatebill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokenBucketValidatesBeforeNetwork(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	_, err := bucket.Allow(ctx, "", 1, 1)
	assert.ErrorIs(t, err, ErrLimiterKeyEmpty)

	_, err = bucket.Allow(ctx, "k", 0, 1)
	assert.ErrorIs(t, err, ErrLimiterRateInvalid)

	_, err = bucket.Allow(ctx, "k", 1, 0)
	assert.ErrorIs(t, err, ErrLimiterRateInvalid)

	var missing *TokenBucket
	_, err = missing.Allow(ctx, "k", 1, 1)
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)
}

func TestReadingLimiter(t *testing.T) {
	_, err := NewReadingLimiter(nil, 0, 10)
	assert.ErrorIs(t, err, ErrLimiterRateInvalid)

	limiter, err := NewReadingLimiter(nil, 1, 10)
	require.NoError(t, err)
	_, err = limiter.Allow(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrLimiterKeyEmpty)

	_, err = limiter.Allow(context.Background(), "10.0.0.1")
	assert.ErrorIs(t, err, ErrLimiterNotConfigured)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, retryAfter(0.5, 1))
	assert.Equal(t, 250*time.Millisecond, retryAfter(0, 4))
	assert.Zero(t, retryAfter(1, 5))
	assert.Equal(t, 40*time.Second, bucketTTL(0.5, 10))
}

func TestNewFromConfigFallsBack(t *testing.T) {
	limiter, err := NewFromConfig(config.Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Unlimited{}, limiter)

	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, ReadingRate: 1, ReadingBurst: 1}}
	limiter, err = NewFromConfig(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Unlimited{}, limiter)

	res, err := limiter.Allow(context.Background(), "any")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
