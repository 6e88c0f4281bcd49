package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/perkhub/internal/config"
	"go.uber.org/fx"
)

const keyRedeemClient = "redeem:client:%s"

// RedeemLimiter throttles the unauthenticated redeem endpoints per client address.
// A nil limiter allows every request.
type RedeemLimiter struct {
	bucket *TokenBucket
	client *redis.Client
	rate   float64
	burst  int
}

func NewRedeemLimiter(lc fx.Lifecycle, cfg config.Config) (*RedeemLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.RedeemRate <= 0 || limitCfg.RedeemBurst <= 0 {
		return nil, errors.New("redeem rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}

	return &RedeemLimiter{
		bucket: NewTokenBucket(client),
		client: client,
		rate:   limitCfg.RedeemRate,
		burst:  limitCfg.RedeemBurst,
	}, nil
}

func (l *RedeemLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow consumes one token for clientKey.
func (l *RedeemLimiter) Allow(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyRedeemClient, clientKey), l.rate, l.burst)
}
