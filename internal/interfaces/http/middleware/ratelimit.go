package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a small in-memory fixed-window limiter keyed by
// caller. Good enough for a single-instance deployment; a multi-node
// setup would move this into Redis.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
	stopCh  chan struct{}
}

type clientWindow struct {
	tokens      int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window
// and starts its janitor goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
		stopCh:  make(chan struct{}),
	}
	go rl.janitor()
	return rl
}

// janitor drops clients idle for two full windows.
func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, c := range rl.clients {
				if now.Sub(c.windowStart) > rl.window*2 {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop terminates the janitor goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Allow consumes one token for key, resetting the window when it has
// elapsed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &clientWindow{
			tokens:      rl.limit - 1,
			windowStart: now,
		}
		return true
	}

	if now.Sub(c.windowStart) >= rl.window {
		c.tokens = rl.limit - 1
		c.windowStart = now
		return true
	}

	if c.tokens > 0 {
		c.tokens--
		return true
	}
	return false
}

// Remaining reports how many requests key has left in its window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, exists := rl.clients[key]
	if !exists || time.Since(c.windowStart) >= rl.window {
		return rl.limit
	}
	return c.tokens
}

// RateLimit limits by actor name when the actor middleware has already
// identified the caller, falling back to client IP. Over-limit
// requests get a 429 in the standard error envelope.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(ActorNameKey)
		if key == "" {
			key = c.ClientIP()
		}

		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", limiter.Remaining(key)))

		c.Next()
	}
}
