package middleware

import (
	"math"
	"strconv"

	"github.com/fatflowers/subsync/pkg/apperr"
	"github.com/fatflowers/subsync/pkg/logctx"
	"github.com/fatflowers/subsync/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware limits requests per client IP. A nil limiter admits everything,
// and a failing store fails open.
func RateLimitMiddleware(l *ratelimit.Limiter, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		res, err := l.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if err != nil {
			logctx.FromGin(c, base).Warnw("rate_limit_store_error", "error", err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		if !res.Allowed() {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			abortWithError(c, apperr.RateLimited("too many requests from %s", c.ClientIP()))
			return
		}
		c.Next()
	}
}
