// Package catalog serves the gift-card product catalog through a TTL cache.
package catalog

import (
	"context"
	"strings"

	"github.com/smallbiznis/giftpool/internal/cache"
	"github.com/smallbiznis/giftpool/internal/config"
	"github.com/smallbiznis/giftpool/internal/providers/gateway"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Params struct {
	fx.In

	Provider gateway.GiftCardProvider
	Cache    cache.ProductCache
	Policy   *config.SettlementPolicyHolder
	Log      *zap.Logger
}

type Service struct {
	provider gateway.GiftCardProvider
	cache    cache.ProductCache
	policy   *config.SettlementPolicyHolder
	log      *zap.Logger
	group    singleflight.Group
}

var Module = fx.Module("catalog",
	fx.Provide(NewService),
)

func NewService(p Params) *Service {
	return &Service{
		provider: p.Provider,
		cache:    p.Cache,
		policy:   p.Policy,
		log:      p.Log.Named("catalog.service"),
	}
}

// Products returns the catalog for countryCode, hitting the provider at most
// once per TTL window. Concurrent misses share one upstream call.
func (s *Service) Products(ctx context.Context, countryCode string) ([]gateway.Product, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	if products, ok := s.cache.Get(ctx, countryCode); ok {
		return products, nil
	}

	v, err, _ := s.group.Do(countryCode, func() (any, error) {
		if products, ok := s.cache.Get(ctx, countryCode); ok {
			return products, nil
		}
		products, err := s.provider.Catalog(ctx, countryCode)
		if err != nil {
			return nil, err
		}
		if products == nil {
			products = []gateway.Product{}
		}
		s.cache.Set(ctx, countryCode, products, s.policy.Get().CatalogTTL)
		s.log.Info("catalog refreshed",
			zap.String("country_code", countryCode),
			zap.Int("products", len(products)),
		)
		return products, nil
	})
	if err != nil {
		s.log.Warn("catalog fetch failed", zap.String("country_code", countryCode), zap.Error(err))
		return nil, err
	}
	return v.([]gateway.Product), nil
}

// Invalidate drops the cached catalog for countryCode.
func (s *Service) Invalidate(ctx context.Context, countryCode string) {
	s.cache.Invalidate(ctx, strings.ToUpper(strings.TrimSpace(countryCode)))
}
