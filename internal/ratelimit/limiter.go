package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per upstream host.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	defaults RateLimitConfig
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
	}
}

// Enabled reports whether the config limits anything at all.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0 && c.BurstSize > 0
}

func NewHostLimiter(config RateLimitConfig) *HostLimiter {
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		defaults: config,
	}
}

func (h *HostLimiter) GetLimiter(host string) *rate.Limiter {
	h.mu.RLock()
	limiter, exists := h.limiters[host]
	h.mu.RUnlock()

	if exists {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if limiter, exists = h.limiters[host]; exists {
		return limiter
	}

	limit := rate.Inf
	if h.defaults.Enabled() {
		limit = rate.Limit(h.defaults.RequestsPerSecond)
	}
	limiter = rate.NewLimiter(limit, h.defaults.BurstSize)
	h.limiters[host] = limiter
	return limiter
}

// SetHostLimit gives host its own bucket instead of the default one.
func (h *HostLimiter) SetHostLimit(host string, rps float64, burst int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.limiters[host] = rate.NewLimiter(rate.Limit(rps), burst)
}

func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	return h.GetLimiter(host).Wait(ctx)
}
