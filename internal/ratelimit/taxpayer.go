package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/redevance/internal/config"
)

const keyTaxpayerWrites = "redevance:ratelimit:taxpayer:%s"

// TaxpayerLimiter throttles mutating requests per taxpayer identity.
type TaxpayerLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewTaxpayerLimiter(cfg config.Config, client *redis.Client) (*TaxpayerLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	if limitCfg.TaxpayerRate <= 0 || limitCfg.TaxpayerBurst <= 0 {
		return nil, fmt.Errorf("taxpayer rate limit: %w", ErrLimiterInvalidRate)
	}
	return &TaxpayerLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.TaxpayerRate,
		burst:  limitCfg.TaxpayerBurst,
	}, nil
}

func (l *TaxpayerLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *TaxpayerLimiter) Allow(ctx context.Context, taxpayerID string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyTaxpayerWrites, strings.TrimSpace(taxpayerID)), l.rate, l.burst)
}
