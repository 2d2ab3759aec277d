package ratelimit

import (
	"github.com/didip/tollbooth/v7"
	"github.com/didip/tollbooth/v7/limiter"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mehmetcc/campaign-auth-service/internal/response"
)

// NewBurstLimiter returns an in-process token bucket allowing maxRPS requests
// per second per key.
func NewBurstLimiter(maxRPS float64) *limiter.Limiter {
	return tollbooth.NewLimiter(maxRPS, nil)
}

// BurstGuard throttles floods from a single client before any store work is
// done. It keys on gin's ClientIP, which only trusts forwarding headers from
// the router's trusted proxies.
func BurstGuard(lmt *limiter.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if httpErr := tollbooth.LimitByKeys(lmt, []string{ip}); httpErr != nil {
			logger.Warn("burst limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			c.Header(HeaderRetryAfter, "1")
			response.Throttled(c, response.CodeRateLimited, "Too many requests. Please try again later.", 1)
			return
		}
		c.Next()
	}
}
