package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/vocaldesk/vocaldesk/internal/config"
)

const keyWebhookDelivery = "webhook:delivery:%s"

// DeliveryLimiter throttles the billing webhook endpoint per source
// address. Disabled limiters allow everything, so the endpoint works
// without redis in local setups.
type DeliveryLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewDeliveryLimiter(cfg config.Config) (*DeliveryLimiter, error) {
	if !cfg.RateLimitEnabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.RateLimitRedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if cfg.WebhookDeliveryRate <= 0 || cfg.WebhookDeliveryBurst <= 0 {
		return nil, errors.New("webhook delivery rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RateLimitRedisPass,
		DB:       cfg.RateLimitRedisDB,
	})

	return &DeliveryLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    cfg.WebhookDeliveryRate,
		burst:   cfg.WebhookDeliveryBurst,
	}, nil
}

func (l *DeliveryLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow reports whether one more delivery from source may proceed. On
// redis failure the delivery is allowed; throttling is best-effort and
// must not break webhook ingestion.
func (l *DeliveryLimiter) Allow(ctx context.Context, source string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookDelivery, strings.TrimSpace(source)), l.rate, l.burst)
	if err != nil {
		return true, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}
