package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/locallibrary/internal/config"
)

// LoginLimiter counts failed logins per client IP and login name inside a
// fixed window and blocks the pair once the limit is reached. It sits in
// front of the per-account lockout kept in the users table.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord

	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
	stop        chan struct{}
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// NewLoginLimiter builds a limiter from the auth settings. Call Stop when done.
func NewLoginLimiter(cfg config.Auth) *LoginLimiter {
	l := &LoginLimiter{
		attempts:    make(map[string]*attemptRecord),
		maxAttempts: cfg.MaxLoginAttempts,
		window:      cfg.RateLimitWindow,
		lockout:     cfg.LockoutDuration,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = defaultMaxLoginAttempts
	}
	if l.window <= 0 {
		l.window = 15 * time.Minute
	}
	if l.lockout <= 0 {
		l.lockout = defaultLockoutDuration
	}

	go l.cleanupLoop(5 * time.Minute)

	return l
}

func (l *LoginLimiter) Stop() {
	close(l.stop)
}

func attemptKey(ip, login string) string {
	return ip + ":" + login
}

// Allow reports whether another attempt may be made, and if not, for how long
// the pair stays blocked.
func (l *LoginLimiter) Allow(ip, login string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.attempts[attemptKey(ip, login)]
	if !exists {
		return true, 0
	}
	if now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	if now.Sub(record.firstAttempt) > l.window {
		return true, 0
	}
	return record.count < l.maxAttempts, 0
}

// RecordFailure counts a failed attempt and reports whether the pair is now blocked.
func (l *LoginLimiter) RecordFailure(ip, login string) bool {
	now := l.now()
	key := attemptKey(ip, login)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.attempts[key]
	if !exists || now.Sub(record.firstAttempt) > l.window {
		record = &attemptRecord{firstAttempt: now}
		l.attempts[key] = record
	}

	record.count++
	if record.count >= l.maxAttempts {
		record.lockedUntil = now.Add(l.lockout)
		return true
	}
	return false
}

// RecordSuccess forgets the failures of a pair after a good login.
func (l *LoginLimiter) RecordSuccess(ip, login string) {
	l.mu.Lock()
	delete(l.attempts, attemptKey(ip, login))
	l.mu.Unlock()
}

func (l *LoginLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *LoginLimiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, record := range l.attempts {
		if now.Sub(record.firstAttempt) > l.window && !now.Before(record.lockedUntil) {
			delete(l.attempts, key)
		}
	}
}

// Middleware rejects login posts from a blocked IP and login pair with 429.
func (l *LoginLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		login := c.PostForm("username")
		if login == "" {
			c.Next()
			return
		}

		allowed, retryAfter := l.Allow(c.ClientIP(), login)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
			if IsAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error":       "too many login attempts",
					"retry_after": retryAfter.Round(time.Second).String(),
				})
				return
			}
			c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
			c.Abort()
			return
		}

		c.Next()
	}
}
