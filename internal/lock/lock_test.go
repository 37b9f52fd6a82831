package lock

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/estatebill/internal/billingperiod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillingRunKey(t *testing.T) {
	key := BillingRunKey(snowflake.ID(7), billingperiod.MustParse("2024-05"))
	assert.Equal(t, "estatebill:billing_run:7:2024-05", key)
}

func TestNoopLockerAlwaysGrants(t *testing.T) {
	var l Locker = NoopLocker{}

	_, ok, err := l.TryLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background(), "k", ""))

	_, _, err = l.TryLock(context.Background(), "", time.Minute)
	require.ErrorIs(t, err, ErrLockKeyEmpty)
}

func TestRedisLockerValidatesBeforeNetwork(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLocker(client)

	_, _, err := l.TryLock(context.Background(), "", time.Minute)
	require.ErrorIs(t, err, ErrLockKeyEmpty)

	_, _, err = l.TryLock(context.Background(), "k", 0)
	require.ErrorIs(t, err, ErrLockTTLInvalid)

	require.NoError(t, l.Release(context.Background(), "k", ""))

	var missing *RedisLocker
	_, _, err = missing.TryLock(context.Background(), "k", time.Minute)
	require.ErrorIs(t, err, ErrLockNotConfigured)
}
