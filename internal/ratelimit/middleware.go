package ratelimit

import (
	"fmt"
	"net/http"

	"voice-server/internal/observability"

	"github.com/gin-gonic/gin"
)

// Middleware limits requests per client IP. A store failure lets the request through.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clientIP := observability.GetRealClientIP(c)

		ctx = observability.WithFields(ctx,
			observability.Field{Key: "rate_limit_subject", Value: clientIP},
			observability.Field{Key: "rate_limit_rpm", Value: s.limit},
		)

		result, err := s.CheckRateLimit(ctx, clientIP)
		if err != nil {
			s.logger.Warn(ctx, "rate limit check failed, allowing request",
				observability.Field{Key: "error", Value: err.Error()})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetAt.Unix()))

		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", result.RetryAfterMs/1000))
			s.logger.Warn(ctx, "rate limit exceeded",
				observability.Field{Key: "limit", Value: result.Limit},
				observability.Field{Key: "retry_after_ms", Value: result.RetryAfterMs},
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"code":        "RATE_LIMIT_EXCEEDED",
				"limit":       result.Limit,
				"retry_after": result.RetryAfterMs / 1000,
				"reset_at":    result.ResetAt.Unix(),
			})
			return
		}

		c.Next()
	}
}
