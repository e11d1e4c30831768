package server

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/giftpool/internal/observability/logger"
	settlementdomain "github.com/smallbiznis/giftpool/internal/settlement/domain"
	"go.uber.org/zap"
)

// SettlementRateLimit bounds settlement attempts per gift. It is a no-op
// when Redis is not configured.
func (s *Server) SettlementRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		id, ok := giftID(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		result, err := s.limiter.Allow(ctx, id.String())
		if err != nil {
			logger.FromContext(ctx).Warn("settlement rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denySettlement(ctx, c, result.RetryAfter.Seconds())
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Next()
	}
}

func denySettlement(ctx context.Context, c *gin.Context, retryAfter float64) {
	logger.FromContext(ctx).Warn("settlement rate limit exceeded",
		zap.String("endpoint", normalizeRateLimitEndpoint(c)),
		zap.Float64("retry_after_seconds", retryAfter),
	)
	c.Header("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(retryAfter)))))
	AbortWithError(c, settlementdomain.ErrRateLimited)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = c.Request.URL.Path
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
