package notifier

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter for notification dispatch, keyed
// by device so one noisy wearable cannot starve the others.
type RateLimiter struct {
	mu           sync.Mutex
	maxPerWindow int
	window       time.Duration
	windows      map[string][]time.Time
	dropped      int64
	enabled      bool
	now          func() time.Time
}

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	MaxPerWindow int           // Maximum dispatches per device per window (default: 10)
	Window       time.Duration // Time window (default: 1 minute)
	Enabled      bool
}

// DefaultRateLimitConfig returns default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPerWindow: 10,
		Window:       time.Minute,
		Enabled:      true,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.MaxPerWindow <= 0 {
		config.MaxPerWindow = 10
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		maxPerWindow: config.MaxPerWindow,
		window:       config.Window,
		windows:      make(map[string][]time.Time),
		enabled:      config.Enabled,
		now:          time.Now,
	}
}

// Allow records a dispatch for key and reports whether it is under the limit.
func (r *RateLimiter) Allow(key string) bool {
	if !r.enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stamps := trimBefore(r.windows[key], now.Add(-r.window))

	if len(stamps) >= r.maxPerWindow {
		r.windows[key] = stamps
		r.dropped++
		return false
	}

	r.windows[key] = append(stamps, now)
	return true
}

// Release refunds the most recent token for key. Call it when every channel
// failed after Allow returned true.
func (r *RateLimiter) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamps := r.windows[key]
	if len(stamps) == 0 {
		return
	}
	if len(stamps) == 1 {
		delete(r.windows, key)
		return
	}
	r.windows[key] = stamps[:len(stamps)-1]
}

// trimBefore drops timestamps older than cutoff. Timestamps are ascending.
func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && stamps[idx].Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	n := copy(stamps, stamps[idx:])
	return stamps[:n]
}

// Stats returns rate limiter statistics.
func (r *RateLimiter) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	current := 0
	for key, stamps := range r.windows {
		stamps = trimBefore(stamps, cutoff)
		if len(stamps) == 0 {
			delete(r.windows, key)
			continue
		}
		r.windows[key] = stamps
		current += len(stamps)
	}

	return RateLimitStats{
		Dropped:      r.dropped,
		CurrentCount: current,
		Keys:         len(r.windows),
		MaxPerWindow: r.maxPerWindow,
		Window:       r.window,
		Enabled:      r.enabled,
	}
}

// RateLimitStats contains rate limiter statistics.
type RateLimitStats struct {
	Dropped      int64         // Total dispatches dropped
	CurrentCount int           // Tokens held across all keys in the current window
	Keys         int           // Keys with tokens in the current window
	MaxPerWindow int           // Maximum allowed per key per window
	Window       time.Duration // Window duration
	Enabled      bool
}
