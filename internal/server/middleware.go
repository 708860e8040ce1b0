package server

import (
	"sync"
	"time"
)

// RateLimiter caps inbound message rate per connection with a sliding
// window of timestamps. One abusive client does not affect others;
// over-limit messages are answered with an error frame and dropped, the
// connection itself is left alone.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	requests map[uint64][]time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[uint64][]time.Time),
	}
}

// Allow records one request for the connection and reports whether it
// falls within the limit.
func (r *RateLimiter) Allow(connectionID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.window)

	// Drop timestamps that fell out of the window.
	recent := r.requests[connectionID][:0]
	for _, ts := range r.requests[connectionID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= r.maxRequests {
		r.requests[connectionID] = recent
		return false
	}

	r.requests[connectionID] = append(recent, time.Now())
	return true
}

// Forget releases the window for a connection that went away.
func (r *RateLimiter) Forget(connectionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}
