package redisrate

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "test:", max, time.Minute), mr
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	l, _ := newTestLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i+1)
	}
	ok, retry, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	ok, _, _ := l.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _, _ = l.Allow(ctx, "b")
	assert.True(t, ok)
	ok, _, _ = l.Allow(ctx, "a")
	assert.False(t, ok)
}

func TestLimiter_SetsWindowExpiry(t *testing.T) {
	l, mr := newTestLimiter(t, 5)
	fixed := time.Date(2026, 5, 1, 10, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	_, _, err := l.Allow(context.Background(), "ip")
	require.NoError(t, err)

	key := "test:ip:" + itoa(fixed.Truncate(time.Minute).Unix())
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))
}

func TestLimiter_RedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 5)
	mr.Close()

	_, _, err := l.Allow(context.Background(), "ip")
	assert.Error(t, err)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
