package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/prediction-market-poc/internal/market"
	"github.com/radieske/prediction-market-poc/internal/market-service/lease"
)

func setup(t *testing.T) (*miniredis.Miniredis, *lease.Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, lease.NewRedis(rdb)
}

func TestAcquire_Exclusive(t *testing.T) {
	_, l := setup(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "lease:m1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "lease:m1", time.Minute)
	assert.ErrorIs(t, err, market.ErrLeaseHeld)

	// outro mercado não é afetado
	r2, err := l.Acquire(ctx, "lease:m2", time.Minute)
	require.NoError(t, err)
	r2()

	release()
	release()

	again, err := l.Acquire(ctx, "lease:m1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestAcquire_ExpiresAfterTTL(t *testing.T) {
	mr, l := setup(t)
	ctx := context.Background()

	_, err := l.Acquire(ctx, "lease:m1", 30*time.Second)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	release, err := l.Acquire(ctx, "lease:m1", 30*time.Second)
	require.NoError(t, err)
	release()
}

func TestRelease_DoesNotDropSomeoneElsesLease(t *testing.T) {
	mr, l := setup(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "lease:m1", 10*time.Second)
	require.NoError(t, err)
	mr.FastForward(11 * time.Second)

	_, err = l.Acquire(ctx, "lease:m1", time.Minute)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("lease:m1"))

	_, err = l.Acquire(ctx, "lease:m1", time.Minute)
	assert.ErrorIs(t, err, market.ErrLeaseHeld)
}
