package refund

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/giftpool/internal/providers/gateway/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	ctrl := gomock.NewController(t)
	stripe := mocks.NewMockRefundProcessor(ctrl)
	stripe.EXPECT().Provider().Return("Stripe").AnyTimes()
	blank := mocks.NewMockRefundProcessor(ctrl)
	blank.EXPECT().Provider().Return(" ").AnyTimes()

	registry := NewRegistry(stripe, nil, blank)

	got, err := registry.Processor(" STRIPE ")
	require.NoError(t, err)
	assert.Same(t, stripe, got)
	assert.True(t, registry.ProviderExists("stripe"))

	_, err = registry.Processor("paypal")
	assert.ErrorIs(t, err, ErrProcessorNotFound)

	var nilRegistry *Registry
	assert.False(t, nilRegistry.ProviderExists("stripe"))
}
