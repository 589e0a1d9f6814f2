package http

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vogiaan1904/barberqueue/internal/session"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
	"github.com/vogiaan1904/barberqueue/pkg/response"
	"golang.org/x/time/rate"
)

const (
	headerRequestID = "X-Request-ID"
	ctxAdminClaims  = "adminClaims"

	maxTrackedIPs = 4096
)

// requestLogger tags the request context with a request id and logs one
// line per request.
func requestLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		ctx := logger.WithFields(c.Request.Context(), l, "request_id", reqID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		l.Infof(ctx, "%s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func adminAuth(tokens *session.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errInvalidToken)
			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			response.Error(c, mapError(err))
			return
		}

		c.Set(ctxAdminClaims, claims)
		c.Next()
	}
}

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newIPLimiter(perMinute, burst int) *ipLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &ipLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (il *ipLimiter) get(ip string) *rate.Limiter {
	il.mu.Lock()
	defer il.mu.Unlock()
	lim, ok := il.limiters[ip]
	if !ok {
		if len(il.limiters) >= maxTrackedIPs {
			il.pruneLocked()
		}
		lim = rate.NewLimiter(il.limit, il.burst)
		il.limiters[ip] = lim
	}
	return lim
}

// pruneLocked drops limiters that have refilled completely.
func (il *ipLimiter) pruneLocked() {
	now := time.Now()
	for ip, lim := range il.limiters {
		if lim.TokensAt(now) >= float64(il.burst) {
			delete(il.limiters, ip)
		}
	}
}

func (il *ipLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !il.get(c.ClientIP()).Allow() {
			response.Error(c, errTooManyRequests)
			return
		}
		c.Next()
	}
}
