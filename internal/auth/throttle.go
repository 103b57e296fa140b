package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/mrlokans/locallibrary/internal/config"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a token bucket per client IP shared by every route.
type Throttle struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	idle    time.Duration
	stop    chan struct{}
}

func NewThrottle(cfg config.Throttle) *Throttle {
	t := &Throttle{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		idle:    5 * time.Minute,
		stop:    make(chan struct{}),
	}
	if t.burst <= 0 {
		t.burst = 1
	}

	go t.cleanupLoop()
	return t
}

func (t *Throttle) Stop() {
	close(t.stop)
}

func (t *Throttle) cleanupLoop() {
	ticker := time.NewTicker(t.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			for ip, c := range t.clients {
				if time.Since(c.lastSeen) > t.idle {
					delete(t.clients, ip)
				}
			}
			t.mu.Unlock()
		case <-t.stop:
			return
		}
	}
}

// Allow takes one token from ip's bucket.
func (t *Throttle) Allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, found := t.clients[ip]
	if !found {
		c = &clientLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			if IsAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
				return
			}
			c.String(http.StatusTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
