package ratelimit

import (
	"context"
	"fmt"
	"strings"
)

const keyReadingIngest = "estatebill:ratelimit:readings:%s"

// Limiter decides whether a caller identified by key may submit another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// ReadingLimiter bounds meter reading submissions per client.
type ReadingLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewReadingLimiter(bucket *TokenBucket, rate float64, burst int) (*ReadingLimiter, error) {
	if rate <= 0 || burst <= 0 {
		return nil, ErrLimiterRateInvalid
	}
	return &ReadingLimiter{bucket: bucket, rate: rate, burst: burst}, nil
}

func (l *ReadingLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrLimiterKeyEmpty
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyReadingIngest, key), l.rate, l.burst)
}

// Unlimited allows every request.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (*Result, error) {
	return &Result{Allowed: true}, nil
}
