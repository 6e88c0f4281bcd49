package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/perkhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/perkhub/internal/observability/metrics"
	"go.uber.org/zap"
)

// RedeemRateLimit throttles the token endpoints per client address. Without a
// configured limiter every request passes.
func (s *Server) RedeemRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.redeemLimits.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		result, err := s.redeemLimits.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("redeem rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			denyRedeemRateLimit(c, endpoint, result.RetryAfter, s.obsMetrics)
			return
		}

		c.Next()
	}
}

func denyRedeemRateLimit(c *gin.Context, endpoint string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("redeem rate limit exceeded",
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, metrics)

	c.Header("Retry-After", retryAfterSeconds(retryAfter))
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitDenied(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint)
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
