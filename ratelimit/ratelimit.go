package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MaxRequests     int           // Maximum number of requests allowed
	WindowSize      time.Duration // Time window for rate limiting
	CleanupInterval time.Duration // How often to clean up expired entries
}

// DefaultConfig returns a default configuration
func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     10,              // 10 requests
		WindowSize:      time.Second,     // per second
		CleanupInterval: 5 * time.Minute, // cleanup every 5 minutes
	}
}

// RateLimiter implements sliding window rate limiting
type RateLimiter struct {
	config      *RateLimiterConfig
	requests    map[string][]time.Time // key -> request timestamps inside the window
	mu          sync.Mutex
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	rl := &RateLimiter{
		config:      config,
		requests:    make(map[string][]time.Time),
		stopCleanup: make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go rl.cleanupExpiredEntries()
	}

	return rl
}

// Allow checks if a request from the given key is allowed
func (rl *RateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *RateLimiter) allowAt(key string, now time.Time) bool {
	cutoff := now.Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := expire(rl.requests[key], cutoff)
	if len(valid) >= rl.config.MaxRequests {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// Count returns how many requests key made inside the current window.
func (rl *RateLimiter) Count(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(expire(rl.requests[key], time.Now().Add(-rl.config.WindowSize)))
}

// Reset removes all entries for a given key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

// expire drops timestamps at or before cutoff. Timestamps are appended in
// order, so the survivors are a suffix.
func expire(requests []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(cutoff) {
		i++
	}
	return requests[i:]
}

// cleanupExpiredEntries periodically removes expired entries to prevent memory leaks
func (rl *RateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, requests := range rl.requests {
		valid := expire(requests, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// SubmissionLimiter guards transaction submission per client IP and per
// sender, plus a node-wide ceiling.
type SubmissionLimiter struct {
	ipLimiter     *RateLimiter
	senderLimiter *RateLimiter
	globalLimiter *RateLimiter
}

// NewSubmissionLimiter allows perSecond submissions per IP and per sender and
// ten times that across the node.
func NewSubmissionLimiter(perSecond int) *SubmissionLimiter {
	cfg := func(max int) *RateLimiterConfig {
		return &RateLimiterConfig{MaxRequests: max, WindowSize: time.Second, CleanupInterval: 5 * time.Minute}
	}
	return &SubmissionLimiter{
		ipLimiter:     NewRateLimiter(cfg(perSecond)),
		senderLimiter: NewRateLimiter(cfg(perSecond)),
		globalLimiter: NewRateLimiter(cfg(perSecond * 10)),
	}
}

// Allow reports whether a submission from ip signed by sender may proceed. A
// nil limiter allows everything.
func (sl *SubmissionLimiter) Allow(ip, sender string) error {
	if err := sl.AllowIP(ip); err != nil {
		return err
	}
	return sl.AllowSender(sender)
}

// AllowIP applies the per-IP window only.
func (sl *SubmissionLimiter) AllowIP(ip string) error {
	if sl == nil {
		return nil
	}
	if !sl.ipLimiter.Allow(ip) {
		return NewRateLimitError("ip", ip, "too many submissions")
	}
	return nil
}

// AllowSender applies the per-sender window and the node-wide ceiling.
func (sl *SubmissionLimiter) AllowSender(sender string) error {
	if sl == nil {
		return nil
	}
	if !sl.senderLimiter.Allow(sender) {
		return NewRateLimitError("sender", sender, "too many submissions")
	}
	if !sl.globalLimiter.Allow("global") {
		return NewRateLimitError("global", "node", "node is at capacity")
	}
	return nil
}

// Stop stops all rate limiters
func (sl *SubmissionLimiter) Stop() {
	if sl == nil {
		return
	}
	sl.ipLimiter.Stop()
	sl.senderLimiter.Stop()
	sl.globalLimiter.Stop()
}

// RateLimitError represents a rate limit error
type RateLimitError struct {
	Type    string
	Key     string
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s '%s': %s", e.Type, e.Key, e.Message)
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(rateType, key, message string) *RateLimitError {
	return &RateLimitError{
		Type:    rateType,
		Key:     key,
		Message: message,
	}
}
