package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return s, client
}

func TestRedis_Window(t *testing.T) {
	s, client := newMiniredis(t)
	lim := NewRedis(client, 2, 500*time.Millisecond, "test:")
	ctx := context.Background()

	for i := range 2 {
		ok, _, err := lim.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i)
	}

	ok, retry, err := lim.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, 500*time.Millisecond)
	assert.True(t, s.Exists("test:ip"))

	s.FastForward(600 * time.Millisecond)
	ok, _, err = lim.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_DefaultPrefix(t *testing.T) {
	s, client := newMiniredis(t)
	lim := NewRedis(client, 1, time.Second, "")

	_, _, err := lim.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, s.Exists(defaultRedisPrefix+"10.0.0.1"))
}

func TestRedis_Errors(t *testing.T) {
	s, client := newMiniredis(t)

	_, _, err := NewRedis(client, 1, 0, "").Allow(context.Background(), "k")
	require.Error(t, err)

	s.Close()
	_, _, err = NewRedis(client, 1, time.Second, "").Allow(context.Background(), "k")
	require.Error(t, err)
}
