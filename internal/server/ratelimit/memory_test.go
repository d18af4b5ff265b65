package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(perMinute, burst int, now *time.Time) *Memory {
	m := NewMemory(perMinute, burst, time.Minute)
	m.now = func() time.Time { return *now }
	return m
}

func TestMemory_BurstThenThrottle(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lim := newTestMemory(60, 2, &now)
	ctx := context.Background()

	for i := range 2 {
		ok, retry, err := lim.Allow(ctx, "1.1.1.1")
		require.NoError(t, err)
		assert.True(t, ok, "call %d", i)
		assert.Zero(t, retry)
	}

	ok, retry, err := lim.Allow(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)

	// a denied call does not consume a token
	now = now.Add(time.Second)
	ok, _, err = lim.Allow(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	now := time.Now()
	lim := newTestMemory(1, 1, &now)
	ctx := context.Background()

	ok, _, _ := lim.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _, _ = lim.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _, _ = lim.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestMemory_EvictsIdleBuckets(t *testing.T) {
	now := time.Now()
	lim := newTestMemory(10, 1, &now)
	ctx := context.Background()

	_, _, _ = lim.Allow(ctx, "1.1.1.1")
	require.Equal(t, 1, lim.size())

	now = now.Add(2 * time.Minute)
	_, _, _ = lim.Allow(ctx, "2.2.2.2")
	assert.Equal(t, 1, lim.size())
}

func TestUnlimited(t *testing.T) {
	ok, retry, err := Unlimited{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, retry)
}
