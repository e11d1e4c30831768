package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"go.uber.org/zap"
)

// ProductCache stores gift-card catalogs per country. Backend errors are
// logged and reported as misses so the catalog falls through to the provider.
type ProductCache interface {
	Get(ctx context.Context, countryCode string) ([]gateway.Product, bool)
	Set(ctx context.Context, countryCode string, products []gateway.Product, ttl time.Duration)
	Invalidate(ctx context.Context, countryCode string)
}

type productCache struct {
	store Store
	log   *zap.Logger
}

func NewProductCache(store Store, log *zap.Logger) ProductCache {
	return &productCache{store: store, log: log.Named("cache.catalog")}
}

func (c *productCache) Get(ctx context.Context, countryCode string) ([]gateway.Product, bool) {
	raw, ok, err := c.store.Get(ctx, catalogKey(countryCode))
	if err != nil {
		c.log.Warn("catalog cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var products []gateway.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		c.log.Warn("catalog cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return products, true
}

func (c *productCache) Set(ctx context.Context, countryCode string, products []gateway.Product, ttl time.Duration) {
	if products == nil {
		return
	}
	raw, err := json.Marshal(products)
	if err != nil {
		c.log.Warn("catalog cache encode failed", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, catalogKey(countryCode), raw, ttl); err != nil {
		c.log.Warn("catalog cache write failed", zap.Error(err))
	}
}

func (c *productCache) Invalidate(ctx context.Context, countryCode string) {
	if err := c.store.Delete(ctx, catalogKey(countryCode)); err != nil {
		c.log.Warn("catalog cache delete failed", zap.Error(err))
	}
}

func catalogKey(countryCode string) string {
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	if country == "" {
		country = "ALL"
	}
	return "catalog:" + country
}
