// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package nettls

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default handshake-limiter settings.
const (
	// DefaultHandshakeRate is the token refill rate (handshakes per
	// second per peer).
	DefaultHandshakeRate = 10.0

	// DefaultHandshakeBurst is the maximum burst size per peer.
	DefaultHandshakeBurst = 20

	// DefaultLimiterStaleAge is how long an idle peer entry survives.
	DefaultLimiterStaleAge = 10 * time.Minute

	// DefaultLimiterCleanupInterval is how often idle entries are
	// evicted.
	DefaultLimiterCleanupInterval = time.Minute
)

// limiterEntry holds a per-peer limiter and the last time it was used.
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// HandshakeLimiter implements per-peer token-bucket limiting for server
// accept loops, so a misbehaving peer cannot monopolize handshake work.
// The endpoint layer does not call it; callers consult Allow before
// driving Hello for a new connection.
type HandshakeLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	stopCh   chan struct{}
	stopOnce sync.Once
	staleAge time.Duration
	interval time.Duration
}

// NewHandshakeLimiter creates a per-peer limiter that evicts idle
// entries. Non-positive arguments select the package defaults.
func NewHandshakeLimiter(r float64, burst int, staleAge, cleanupInterval time.Duration) *HandshakeLimiter {
	if r <= 0 {
		r = DefaultHandshakeRate
	}
	if burst <= 0 {
		burst = DefaultHandshakeBurst
	}
	if staleAge <= 0 {
		staleAge = DefaultLimiterStaleAge
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultLimiterCleanupInterval
	}

	hl := &HandshakeLimiter{
		entries:  make(map[string]*limiterEntry),
		rate:     rate.Limit(r),
		burst:    burst,
		stopCh:   make(chan struct{}),
		staleAge: staleAge,
		interval: cleanupInterval,
	}
	go hl.cleanup()
	return hl
}

// Allow reports whether a handshake from the given peer (usually its
// address) should be permitted now.
func (hl *HandshakeLimiter) Allow(peer string) bool {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	e, ok := hl.entries[peer]
	if !ok {
		e = &limiterEntry{
			limiter: rate.NewLimiter(hl.rate, hl.burst),
		}
		hl.entries[peer] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// Stop halts the background eviction goroutine.
func (hl *HandshakeLimiter) Stop() {
	hl.stopOnce.Do(func() { close(hl.stopCh) })
}

// cleanup periodically evicts entries idle longer than staleAge.
func (hl *HandshakeLimiter) cleanup() {
	ticker := time.NewTicker(hl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-hl.stopCh:
			return
		case <-ticker.C:
			hl.mu.Lock()
			now := time.Now()
			for peer, e := range hl.entries {
				if now.Sub(e.lastSeen) > hl.staleAge {
					delete(hl.entries, peer)
				}
			}
			hl.mu.Unlock()
		}
	}
}
