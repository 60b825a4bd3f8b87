// Package ratelimit throttles API clients by IP over a fixed window.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"treasury/internal/log"
)

// Config tunes a Limiter. Zero fields fall back to DefaultConfig.
type Config struct {
	// Budget is the number of requests a client may make per Window.
	Budget int
	Window time.Duration
	// Buckets idle for longer than StaleAfter are dropped on each sweep.
	StaleAfter    time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
}

// DefaultConfig allows 60 requests per minute.
func DefaultConfig() Config {
	return Config{
		Budget:        60,
		Window:        time.Minute,
		StaleAfter:    10 * time.Minute,
		SweepInterval: 5 * time.Minute,
		Now:           time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Budget <= 0 {
		c.Budget = d.Budget
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.StaleAfter < c.Window {
		c.StaleAfter = max(d.StaleAfter, c.Window)
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// bucket counts the requests a client made since its window opened.
type bucket struct {
	opened time.Time
	seen   time.Time
	used   int
}

// Decision is the outcome of one request against a client's budget.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter keeps one fixed-window bucket per client IP.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	buckets map[string]*bucket

	done     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts a limiter and its background sweeper. Call Stop to end it.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg.withDefaults(),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Take charges one request to ip.
func (l *Limiter) Take(ip string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.Now()
	b, ok := l.buckets[ip]
	if !ok || now.Sub(b.opened) >= l.cfg.Window {
		b = &bucket{opened: now}
		l.buckets[ip] = b
	}
	b.seen = now
	b.used++

	return Decision{
		Allowed:   b.used <= l.cfg.Budget,
		Remaining: max(l.cfg.Budget-b.used, 0),
		ResetIn:   b.opened.Add(l.cfg.Window).Sub(now),
	}
}

// Allow reports whether ip is still within its budget.
func (l *Limiter) Allow(ip string) bool {
	return l.Take(ip).Allowed
}

// ActiveClients returns the number of tracked client buckets.
func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

func (l *Limiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.cfg.Now().Add(-l.cfg.StaleAfter)
	dropped := 0
	for ip, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, ip)
			dropped++
		}
	}
	return dropped
}

// Stop ends the sweeper. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Middleware rejects clients over budget with 429 and reports the budget in
// X-RateLimit-* headers on every response.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		d := l.Take(ip)
		reset := strconv.Itoa(int(math.Ceil(d.ResetIn.Seconds())))

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.Budget))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", reset)
		if !d.Allowed {
			ctx := c.Request.Context()
			log.FromContext(ctx).WithComponent(log.ComponentRateLimit).WarnContext(ctx, "Client over request budget",
				log.FieldClientIP, ip, log.FieldPath, c.Request.URL.Path, "reset_s", reset)
			c.Header("Retry-After", reset)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, please try again later"})
			return
		}
		c.Next()
	}
}
