// Package ratelimit implements the per-connection sliding-window and burst
// limiter applied to inbound room messages.
package ratelimit

import (
	"container/list"
	"sync"
	"time"

	"github.com/nimbusroom/roomsrv/internal/v1/metrics"
)

// Config holds the limiter's tunable parameters, sourced from the server's
// --rate-limit-messages-per-second and --rate-limit-burst flags.
type Config struct {
	// MessagesPerWindow is the maximum number of admitted messages within
	// any rolling Window.
	MessagesPerWindow int
	// Window is the sliding window duration (default 1 second).
	Window time.Duration
	// BurstLimit caps admissions within any single 1-second slice on top
	// of the sliding window.
	BurstLimit int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MessagesPerWindow: 10,
		Window:            time.Second,
		BurstLimit:        5,
	}
}

type connState struct {
	sends          *list.List // of time.Time, oldest at Front
	burstCount     int
	lastBurstReset time.Time
	lastSeen       time.Time
}

// Limiter enforces a per-connection sliding window with a secondary burst
// counter. It is safe for concurrent use.
type Limiter struct {
	cfg Config

	mu    sync.Mutex
	conns map[string]*connState
}

// New creates a Limiter using cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:   cfg,
		conns: make(map[string]*connState),
	}
}

// Allow performs one admission check for connID at time now. It implements:
//  1. Drop recorded send times older than now-Window from the connection's deque.
//  2. If now-lastBurstReset >= 1s, reset the burst counter and lastBurstReset.
//  3. If burst counter >= BurstLimit, deny.
//  4. If deque length >= MessagesPerWindow, deny.
//  5. Otherwise append now, increment burst counter, and allow.
func (l *Limiter) Allow(connID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.conns[connID]
	if !ok {
		state = &connState{
			sends:          list.New(),
			lastBurstReset: now,
		}
		l.conns[connID] = state
	}
	state.lastSeen = now

	cutoff := now.Add(-l.cfg.Window)
	for front := state.sends.Front(); front != nil; {
		next := front.Next()
		if front.Value.(time.Time).Before(cutoff) {
			state.sends.Remove(front)
		}
		front = next
	}

	if now.Sub(state.lastBurstReset) >= time.Second {
		state.burstCount = 0
		state.lastBurstReset = now
	}

	if state.burstCount >= l.cfg.BurstLimit {
		metrics.RateLimitExceeded.WithLabelValues("burst").Inc()
		return false
	}
	if state.sends.Len() >= l.cfg.MessagesPerWindow {
		metrics.RateLimitExceeded.WithLabelValues("window").Inc()
		return false
	}

	state.sends.PushBack(now)
	state.burstCount++
	return true
}

// Remove drops all limiter state for a connection, called on disconnect.
func (l *Limiter) Remove(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, connID)
}

// Sweep discards connection entries whose most recent send is older than
// staleAfter. Intended to run on a periodic background schedule (see
// internal/v1/sweeper) so that long-idle connections don't leak memory.
func (l *Limiter) Sweep(now time.Time, staleAfter time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-staleAfter)
	evicted := 0
	for id, state := range l.conns {
		if state.lastSeen.Before(cutoff) {
			delete(l.conns, id)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.RateLimitSweptConnections.Add(float64(evicted))
	}
	return evicted
}

// TrackedConnections reports how many connections currently hold limiter
// state. Exposed for tests and diagnostics.
func (l *Limiter) TrackedConnections() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}
