// Package ratelimit throttles repeated attempts per key, such as logins for one username.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused key keeps its bucket
const DefaultIdleTTL = 10 * time.Minute

// sweepEvery controls how often idle keys are evicted, counted in Allow calls
const sweepEvery = 256

// KeyLimiter applies a token bucket per key and evicts keys that stay idle.
// A nil *KeyLimiter allows everything.
type KeyLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*bucket
	calls uint64
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter allowing rps attempts per second per key with the
// given burst. It returns nil, which never throttles, when rps or burst is not positive.
func New(rps float64, burst int, idleTTL time.Duration) *KeyLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &KeyLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byKey:   make(map[string]*bucket),
	}
}

// Allow reports whether an attempt for key may proceed at now and consumes a token if so
func (l *KeyLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.evictLocked(now)
	}
	return allowed
}

// Window is how long an emptied bucket takes to refill. Attempts older than
// this no longer affect Allow.
func (l *KeyLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))
}

// Tracks reports whether key has a bucket in this limiter
func (l *KeyLimiter) Tracks(key string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.byKey[strings.TrimSpace(key)]
	return ok
}

// Seed builds the bucket for a key not yet tracked by replaying earlier
// attempts, oldest first, so a fresh process starts where a previous one
// left off. Keys that already have a bucket are left alone.
func (l *KeyLimiter) Seed(key string, attempts []time.Time, now time.Time) {
	if l == nil {
		return
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byKey[key]; ok {
		return
	}
	b := &bucket{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
	for _, at := range attempts {
		b.limiter.AllowN(at, 1)
	}
	l.byKey[key] = b
}

// Reset forgets the bucket for key, e.g. after a successful login
func (l *KeyLimiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.byKey, strings.TrimSpace(key))
	l.mu.Unlock()
}

// Len returns the number of tracked keys
func (l *KeyLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

// Evict drops keys idle since before now minus the idle TTL
func (l *KeyLimiter) Evict(now time.Time) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.evictLocked(now)
	l.mu.Unlock()
}

func (l *KeyLimiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.byKey {
		if b.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}
