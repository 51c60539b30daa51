package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mir-codes/PhoSocial/pkg/errors"
	"github.com/mir-codes/PhoSocial/pkg/logger"
	"golang.org/x/time/rate"
)

// IPRateLimiter manages rate limiters for each IP
type IPRateLimiter struct {
	ips   map[string]*rateLimiterEntry
	mu    sync.RWMutex
	r     rate.Limit
	burst int
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
// r = requests per second, burst = max burst size
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		ips:   make(map[string]*rateLimiterEntry),
		r:     r,
		burst: burst,
	}

	// Cleanup old entries every minute
	go rl.cleanup()

	return rl
}

func (rl *IPRateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, entry := range rl.ips {
			if time.Since(entry.lastSeen) > 3*time.Minute {
				delete(rl.ips, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// GetLimiter returns the rate limiter for the given IP
func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.ips[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.r, rl.burst)
		rl.ips[ip] = &rateLimiterEntry{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}

	entry.lastSeen = time.Now()
	return entry.limiter
}

var generalLimiter = NewIPRateLimiter(10, 30)

// GeneralRateLimit limits requests per client IP across the API surface.
func GeneralRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := generalLimiter.GetLimiter(c.ClientIP())
		if !limiter.Allow() {
			logger.Warn().Str("ip", c.ClientIP()).Msg("Rate limit exceeded")
			AbortWithAppError(c, errors.TooManyRequests("Too many requests"))
			return
		}
		c.Next()
	}
}
