package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/cardiolab/heart-xai/internal/errors"
	"github.com/cardiolab/heart-xai/internal/monitoring"
)

// Middleware enforces the per-IP request limit on every request it wraps.
func Middleware(rl *RateLimiter, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := rl.AllowIP(c.Request.Context(), c.ClientIP())
		if err != nil {
			// A broken limiter must not take the API down with it.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitIPBlock()
			}
			retryAfter := fmt.Sprintf("%.0f", result.RetryAfter.Seconds())
			c.Header("Retry-After", retryAfter)

			appErr := apperrors.NewRateLimitError(retryAfter)
			apperrors.LogError(c, appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
			return
		}

		c.Next()
	}
}
