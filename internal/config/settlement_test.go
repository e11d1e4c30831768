package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSettlementPolicy(t *testing.T) {
	v := viper.New()
	v.Set("settlement.minGiftCardAmount", "5.00")
	v.Set("settlement.charityFeeRate", "0.022")
	v.Set("settlement.charityFixedFee", "0.30")
	v.Set("settlement.catalogTTL", "10m")
	v.Set("settlement.tokenRefreshBuffer", "30s")
	v.Set("settlement.providerTimeout", "5s")
	v.Set("settlement.settlementLockTTL", "20s")
	v.Set("settlement.settlementRateLimit", 3)

	policy, err := decodeSettlementPolicy(v)
	require.NoError(t, err)
	assert.True(t, policy.MinGiftCardAmount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "0.022", policy.CharityFeeRate.String())
	assert.Equal(t, 10*time.Minute, policy.CatalogTTL)
	assert.Equal(t, 30*time.Second, policy.TokenRefreshBuffer)
	assert.Equal(t, 3, policy.SettlementRateLimit)
}

func TestDecodeSettlementPolicyRejectsBadRate(t *testing.T) {
	v := viper.New()
	v.Set("settlement.minGiftCardAmount", "1")
	v.Set("settlement.charityFeeRate", "1.5")
	v.Set("settlement.charityFixedFee", "0")
	v.Set("settlement.catalogTTL", "1m")
	v.Set("settlement.providerTimeout", "1s")
	v.Set("settlement.settlementLockTTL", "1s")

	_, err := decodeSettlementPolicy(v)
	assert.Error(t, err)
}

func TestHolderNilFallsBackToDefaults(t *testing.T) {
	var h *SettlementPolicyHolder
	assert.True(t, h.Get().MinGiftCardAmount.Equal(decimal.NewFromInt(1)))
}
