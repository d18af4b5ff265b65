// Package ratelimit throttles credential endpoints per client key.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request for key may proceed. When it
// may not, retryAfter says how long the caller should wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// Unlimited lets every request through.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}
