package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter throttles requests per source address using a token bucket for
// each client. Idle entries are evicted after a fixed period so the map does
// not grow without bound.
type ipLimiter struct {
	mu       sync.Mutex
	perSec   rate.Limit
	burst    int
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const visitorTTL = 10 * time.Minute

func newIPLimiter(perMinute float64, burst int) *ipLimiter {
	perSec := perMinute / 60.0
	if perSec <= 0 {
		perSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		perSec:   rate.Limit(perSec),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	entry, ok := l.visitors[ip]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(l.perSec, l.burst)}
		l.visitors[ip] = entry
	}
	entry.lastSeen = now
	l.evictStale(now)
	return entry.limiter.Allow()
}

func (l *ipLimiter) evictStale(now time.Time) {
	for ip, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > visitorTTL {
			delete(l.visitors, ip)
		}
	}
}
