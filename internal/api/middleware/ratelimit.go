// Package middleware holds gin middleware shared by the HTTP and WebSocket routes.
package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultRPS   = 5
	defaultBurst = 10
	// minIdleTTL is the shortest time a limiter stays in the pool without traffic.
	minIdleTTL = 10 * time.Minute
)

type pooledLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per client key. Buckets idle for longer
// than idleTTL are dropped on the next sweep; idleTTL is never shorter than a
// full refill, so a recreated bucket behaves like the dropped one.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*pooledLimiter
	rps       float64
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	ttl := time.Duration(float64(burst) / rps * float64(time.Second))
	if ttl < minIdleTTL {
		ttl = minIdleTTL
	}
	return &limiterPool{
		m:       make(map[string]*pooledLimiter),
		rps:     rps,
		burst:   burst,
		idleTTL: ttl,
		now:     time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= p.idleTTL {
		p.sweep(now)
	}
	if l, ok := p.m[key]; ok {
		l.lastSeen = now
		return l.lim
	}
	l := &pooledLimiter{lim: rate.NewLimiter(rate.Limit(p.rps), p.burst), lastSeen: now}
	p.m[key] = l
	return l.lim
}

// sweep drops idle limiters. Callers hold p.mu.
func (p *limiterPool) sweep(now time.Time) {
	for key, l := range p.m {
		if now.Sub(l.lastSeen) >= p.idleTTL {
			delete(p.m, key)
		}
	}
	p.lastSweep = now
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// RateLimit rejects requests with 429 once a client exceeds rps sustained
// requests per second. Non-positive values use the defaults.
//
// Clients are keyed by X-User-ID when present and by remote IP otherwise. The
// header is trusted as is, so the gateway in front of the server must set or
// strip it on every request; a client that can pick its own X-User-ID gets a
// fresh bucket per value.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	limiters := newLimiterPool(rps, burst)
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			key = "user:" + userID
		}
		if !limiters.Allow(key) {
			log.Printf("WARNING: Rate limited %s on %s", key, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
