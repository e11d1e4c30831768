package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SettlementPolicy carries the tunables of the settlement engine. It is read
// from settlement.yml and may change at runtime.
type SettlementPolicy struct {
	MinGiftCardAmount   decimal.Decimal
	CharityFeeRate      decimal.Decimal
	CharityFixedFee     decimal.Decimal
	CatalogTTL          time.Duration
	TokenRefreshBuffer  time.Duration
	ProviderTimeout     time.Duration
	SettlementLockTTL   time.Duration
	SettlementRateLimit int
}

// settlementPolicyFile mirrors the yaml; money values stay strings so they
// never pass through float64.
type settlementPolicyFile struct {
	MinGiftCardAmount   string        `mapstructure:"minGiftCardAmount"`
	CharityFeeRate      string        `mapstructure:"charityFeeRate"`
	CharityFixedFee     string        `mapstructure:"charityFixedFee"`
	CatalogTTL          time.Duration `mapstructure:"catalogTTL"`
	TokenRefreshBuffer  time.Duration `mapstructure:"tokenRefreshBuffer"`
	ProviderTimeout     time.Duration `mapstructure:"providerTimeout"`
	SettlementLockTTL   time.Duration `mapstructure:"settlementLockTTL"`
	SettlementRateLimit int           `mapstructure:"settlementRateLimit"`
}

func DefaultSettlementPolicy() SettlementPolicy {
	return SettlementPolicy{
		MinGiftCardAmount:   decimal.NewFromInt(1),
		CharityFeeRate:      decimal.RequireFromString("0.029"),
		CharityFixedFee:     decimal.RequireFromString("0.30"),
		CatalogTTL:          15 * time.Minute,
		TokenRefreshBuffer:  60 * time.Second,
		ProviderTimeout:     15 * time.Second,
		SettlementLockTTL:   30 * time.Second,
		SettlementRateLimit: 10,
	}
}

type SettlementPolicyHolder struct {
	current atomic.Value // holds SettlementPolicy
}

// NewStaticPolicyHolder pins a policy; used by tests and tools.
func NewStaticPolicyHolder(policy SettlementPolicy) *SettlementPolicyHolder {
	holder := &SettlementPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewSettlementPolicyHolder(log *zap.Logger) (*SettlementPolicyHolder, error) {
	log = log.Named("config.settlement")
	v := viper.New()

	v.SetConfigName("settlement")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/giftpool")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GIFTPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSettlementPolicy()
	v.SetDefault("settlement.minGiftCardAmount", defaults.MinGiftCardAmount.String())
	v.SetDefault("settlement.charityFeeRate", defaults.CharityFeeRate.String())
	v.SetDefault("settlement.charityFixedFee", defaults.CharityFixedFee.String())
	v.SetDefault("settlement.catalogTTL", defaults.CatalogTTL)
	v.SetDefault("settlement.tokenRefreshBuffer", defaults.TokenRefreshBuffer)
	v.SetDefault("settlement.providerTimeout", defaults.ProviderTimeout)
	v.SetDefault("settlement.settlementLockTTL", defaults.SettlementLockTTL)
	v.SetDefault("settlement.settlementRateLimit", defaults.SettlementRateLimit)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	policy, err := decodeSettlementPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileFound {
		log.Info("settlement.yml not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeSettlementPolicy(v)
		if err != nil {
			log.Warn("settlement policy reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("settlement policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SettlementPolicyHolder) Get() SettlementPolicy {
	if h == nil {
		return DefaultSettlementPolicy()
	}
	return h.current.Load().(SettlementPolicy)
}

func decodeSettlementPolicy(v *viper.Viper) (SettlementPolicy, error) {
	var raw settlementPolicyFile
	if err := v.UnmarshalKey("settlement", &raw); err != nil {
		return SettlementPolicy{}, err
	}

	minAmount, err := decimal.NewFromString(strings.TrimSpace(raw.MinGiftCardAmount))
	if err != nil {
		return SettlementPolicy{}, errors.New("settlement.minGiftCardAmount must be a decimal")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(raw.CharityFeeRate))
	if err != nil {
		return SettlementPolicy{}, errors.New("settlement.charityFeeRate must be a decimal")
	}
	fixed, err := decimal.NewFromString(strings.TrimSpace(raw.CharityFixedFee))
	if err != nil {
		return SettlementPolicy{}, errors.New("settlement.charityFixedFee must be a decimal")
	}

	policy := SettlementPolicy{
		MinGiftCardAmount:   minAmount,
		CharityFeeRate:      rate,
		CharityFixedFee:     fixed,
		CatalogTTL:          raw.CatalogTTL,
		TokenRefreshBuffer:  raw.TokenRefreshBuffer,
		ProviderTimeout:     raw.ProviderTimeout,
		SettlementLockTTL:   raw.SettlementLockTTL,
		SettlementRateLimit: raw.SettlementRateLimit,
	}
	return policy, validateSettlementPolicy(policy)
}

func validateSettlementPolicy(p SettlementPolicy) error {
	if !p.MinGiftCardAmount.IsPositive() {
		return errors.New("settlement.minGiftCardAmount must be positive")
	}
	if p.CharityFeeRate.IsNegative() || !p.CharityFeeRate.LessThan(decimal.NewFromInt(1)) {
		return errors.New("settlement.charityFeeRate must be in [0, 1)")
	}
	if p.CharityFixedFee.IsNegative() {
		return errors.New("settlement.charityFixedFee cannot be negative")
	}
	if p.CatalogTTL <= 0 {
		return errors.New("settlement.catalogTTL must be positive")
	}
	if p.ProviderTimeout <= 0 {
		return errors.New("settlement.providerTimeout must be positive")
	}
	if p.SettlementLockTTL <= 0 {
		return errors.New("settlement.settlementLockTTL must be positive")
	}
	if p.TokenRefreshBuffer < 0 {
		return errors.New("settlement.tokenRefreshBuffer cannot be negative")
	}
	return nil
}
