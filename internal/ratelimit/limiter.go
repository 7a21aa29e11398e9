// Package ratelimit implements a token bucket limiter keyed by client.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTTL           = 10 * time.Minute
	defaultSweepInterval = time.Minute
)

// Config holds rate limiter configuration.
type Config struct {
	RPS   float64
	Burst int
	// TTL controls how long an idle client's bucket survives before the
	// sweep removes it.
	TTL time.Duration
	// SweepInterval controls how often the stale-entry sweep runs.
	SweepInterval time.Duration
}

// Limiter manages per-client rate limits. Buckets are created on first use
// and swept after TTL of inactivity so the map stays bounded.
type Limiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time

	clientRate  rate.Limit
	clientBurst int
	ttl         time.Duration
	sweepEvery  time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	sweepEvery := cfg.SweepInterval
	if sweepEvery <= 0 {
		sweepEvery = defaultSweepInterval
	}
	return &Limiter{
		clients:     make(map[string]*clientLimiter),
		lastSweep:   time.Now(),
		clientRate:  r,
		clientBurst: burst,
		ttl:         ttl,
		sweepEvery:  sweepEvery,
	}
}

// Allow reports whether the client may proceed and, when denied, how long
// to wait before the next token frees up.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	entry, ok := l.clients[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.clientRate, l.clientBurst)}
		l.clients[key] = entry
	}
	entry.lastSeen = now

	if entry.limiter.Allow() {
		return true, 0
	}
	res := entry.limiter.Reserve()
	delay := res.Delay()
	res.Cancel()
	return false, delay
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepEvery {
		return
	}
	l.lastSweep = now
	for key, entry := range l.clients {
		if now.Sub(entry.lastSeen) > l.ttl {
			delete(l.clients, key)
		}
	}
}
