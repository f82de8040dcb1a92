package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/hospital-api/internal/handler"
)

type LockoutConfig struct {
	MaxFailures int
	Window      time.Duration
}

// Lockout blocks a client IP after MaxFailures unsuccessful code
// validations within Window. The window starts at the first failure; a
// successful validation clears the count.
type Lockout struct {
	config   LockoutConfig
	mu       sync.Mutex
	failures *cache.Cache
}

func NewLockout(config LockoutConfig) *Lockout {
	return &Lockout{
		config:   config,
		failures: cache.New(config.Window, config.Window),
	}
}

// Failures returns the current failure count for key.
func (l *Lockout) Failures(key string) int {
	if v, found := l.failures.Get(key); found {
		return v.(int)
	}
	return 0
}

func (l *Lockout) recordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.failures.IncrementInt(key, 1); err != nil {
		l.failures.SetDefault(key, 1)
	}
}

func (l *Lockout) Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		if l.config.MaxFailures > 0 && l.Failures(key) >= l.config.MaxFailures {
			if _, expires, found := l.failures.GetWithExpiration(key); found && !expires.IsZero() {
				retry := int(time.Until(expires).Seconds()) + 1
				c.Header("Retry-After", strconv.Itoa(retry))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("too many failed attempts, try again later"))
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusNotFound:
			l.recordFailure(key)
		case http.StatusOK:
			l.failures.Delete(key)
		}
	}
}
