package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	RequestsPerSecond float64       // Sustained requests per second per IP
	BurstSize         int           // Maximum burst size
	CleanupInterval   time.Duration // How often idle limiters are dropped
}

// LoginRateLimit guards the admin login endpoint, which runs bcrypt on every
// request.
var LoginRateLimit = RateLimitConfig{
	RequestsPerSecond: 1,
	BurstSize:         5,
	CleanupInterval:   5 * time.Minute,
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	config   RateLimitConfig
	stop     chan struct{}
	stopOnce sync.Once
}

func NewIPRateLimiter(config RateLimitConfig) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
		stop:     make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go limiter.cleanupRoutine()
	}
	return limiter
}

// GetLimiter returns the rate limiter for a specific IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(i.config.RequestsPerSecond), i.config.BurstSize)
		i.limiters[ip] = limiter
	}
	return limiter
}

// Len is the number of IPs currently tracked.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.limiters)
}

// Stop ends the cleanup goroutine.
func (i *IPRateLimiter) Stop() {
	i.stopOnce.Do(func() { close(i.stop) })
}

func (i *IPRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(i.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			i.cleanup()
		case <-i.stop:
			return
		}
	}
}

// cleanup drops limiters whose bucket has refilled, i.e. idle IPs.
func (i *IPRateLimiter) cleanup() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for ip, limiter := range i.limiters {
		if limiter.Tokens() >= float64(i.config.BurstSize) {
			delete(i.limiters, ip)
		}
	}
}

// RateLimitMiddleware rejects requests over the per-IP budget with 429.
// The IP comes from gin's ClientIP, so X-Forwarded-For is only honoured
// for the engine's trusted proxies.
func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}
