package auth

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/linkyapp/linky/internal/config"
	"golang.org/x/time/rate"
)

const limiterIdleTimeout = 10 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	clients     map[string]*clientLimiter
	lastCleanup time.Time
}

// NewLoginRateLimiter creates the rate limiter for login attempts.
func NewLoginRateLimiter(cfg *config.AuthConfig) *RateLimiter {
	return &RateLimiter{
		limit:       rate.Limit(float64(cfg.LoginRateLimit) / 60.0),
		burst:       cfg.LoginBurst,
		clients:     make(map[string]*clientLimiter),
		lastCleanup: time.Now(),
	}
}

// Middleware rejects requests of clients over their limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.allow(ip, time.Now()) {
			log.Warn("rate limit exceeded", "ip", ip, "path", c.FullPath())
			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			abortStatus(c, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later")
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) > limiterIdleTimeout {
		for k, cl := range rl.clients {
			if now.Sub(cl.lastAccess) > limiterIdleTimeout {
				delete(rl.clients, k)
			}
		}
		rl.lastCleanup = now
	}

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastAccess = now
	return cl.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) retryAfter() int {
	if rl.limit <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(rl.limit)))
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
