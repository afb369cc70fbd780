package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/batch-ledger/internal/api/errors"
	"github.com/feral-file/batch-ledger/internal/logger"
	"github.com/feral-file/batch-ledger/internal/ratelimit"
)

const RATE_LIMIT_REMAINING_HEADER = "X-RateLimit-Remaining"

// RateLimit limits requests per authenticated subject, or per client IP before authentication.
// Requests pass when the limiter itself fails.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString(AUTH_SUBJECT_KEY)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.ErrorCtx(c.Request.Context(), err, zap.String("component", "ratelimit"))
			c.Next()
			return
		}

		if !res.Allowed {
			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierrors.Response{
				Error: apierrors.NewRateLimitedError(),
			})
			return
		}

		c.Header(RATE_LIMIT_REMAINING_HEADER, strconv.Itoa(res.Remaining))
		c.Next()
	}
}
