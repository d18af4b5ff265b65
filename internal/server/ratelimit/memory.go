package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Memory keeps one token bucket per key in process memory. Buckets not
// seen for idleTTL are evicted.
type Memory struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	buckets map[string]*bucket

	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewMemory allows perMinute requests per key with the given burst.
func NewMemory(perMinute, burst int, idleTTL time.Duration) *Memory {
	if burst < 1 {
		burst = 1
	}
	return &Memory{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.idleTTL {
		for k, b := range m.buckets {
			if now.Sub(b.lastSeen) > m.idleTTL {
				delete(m.buckets, k)
			}
		}
		m.lastSweep = now
	}

	b := m.buckets[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, nil
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0, nil
	}
	r.CancelAt(now)
	return false, delay, nil
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
