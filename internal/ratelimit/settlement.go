package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/giftpool/internal/config"
)

const keySettlementCreate = "giftpool:settlement:create:%s"

// SettlementLimiter bounds settlement attempts per gift. A nil limiter, or
// one built without Redis, allows everything.
type SettlementLimiter struct {
	bucket *bucket
	policy *config.SettlementPolicyHolder
}

func NewSettlementLimiter(client *redis.Client, policy *config.SettlementPolicyHolder) *SettlementLimiter {
	b := newBucket(client)
	if b == nil {
		return nil
	}
	return &SettlementLimiter{bucket: b, policy: policy}
}

func (l *SettlementLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *SettlementLimiter) Allow(ctx context.Context, giftID string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	perMinute := l.policy.Get().SettlementRateLimit
	if perMinute <= 0 {
		return Decision{Allowed: true}, nil
	}
	key := fmt.Sprintf(keySettlementCreate, strings.TrimSpace(giftID))
	return l.bucket.take(ctx, key, Rule{PerSecond: float64(perMinute) / 60, Capacity: perMinute})
}
