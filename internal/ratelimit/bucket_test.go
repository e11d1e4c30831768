package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideGranted(t *testing.T) {
	rule := Rule{PerSecond: 0.5, Capacity: 5}
	d, err := decide([]any{int64(1), "3.75", int64(1_700_000_000_000)}, rule)
	require.NoError(t, err)

	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, 3, d.Remaining)
	assert.Zero(t, d.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000), d.ResetTime)
}

func TestDecideDeniedComputesRetryAfter(t *testing.T) {
	rule := Rule{PerSecond: 0.5, Capacity: 5}
	d, err := decide([]any{int64(0), "0.5", int64(1_000)}, rule)
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Second, d.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_000).Add(time.Second), d.ResetTime)
}

func TestDecideRejectsMalformedReply(t *testing.T) {
	rule := Rule{PerSecond: 1, Capacity: 1}
	for _, reply := range [][]any{
		nil,
		{int64(1), "x", int64(0)},
		{"1", "1", int64(0)},
		{int64(1), 2.0, int64(0)},
	} {
		_, err := decide(reply, rule)
		assert.ErrorIs(t, err, errBadScriptReply)
	}
}

func TestRuleValidation(t *testing.T) {
	assert.Error(t, Rule{PerSecond: 0, Capacity: 1}.validate())
	assert.Error(t, Rule{PerSecond: 1, Capacity: 0}.validate())
	assert.NoError(t, Rule{PerSecond: 1, Capacity: 1}.validate())
	assert.Equal(t, 10*time.Second, Rule{PerSecond: 1, Capacity: 5}.idleTTL())
	assert.Equal(t, time.Second, Rule{PerSecond: 100, Capacity: 1}.idleTTL())
}
