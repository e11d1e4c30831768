package money

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRoundCentsHalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1",
		"2.675":  "2.68",
		"0.125":  "0.13",
		"10":     "10",
		"56.275": "56.28",
	}
	for in, want := range cases {
		assert.True(t, RoundCents(d(in)).Equal(d(want)), "round %s", in)
	}
}

func TestFromFloatRejectsNaN(t *testing.T) {
	_, err := FromFloat(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = FromFloat(math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	v, err := FromFloat(0.1 + 0.2)
	require.NoError(t, err)
	assert.Equal(t, "0.30", v.StringFixed(2))
}

func TestParse(t *testing.T) {
	v, err := Parse("25")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("25.00")))

	for _, raw := range []string{"", "abc", "NaN", "inf"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidAmount, raw)
	}
}

func TestValidate(t *testing.T) {
	min := d("1.00")
	assert.NoError(t, Validate(d("1.00"), min))
	assert.True(t, errors.Is(Validate(d("0.50"), min), ErrBelowMinimum))
	assert.True(t, errors.Is(Validate(d("0.50"), min), ErrInvalidAmount))
	assert.True(t, errors.Is(Validate(d("-1"), decimal.Zero), ErrNegative))
}

func TestComputeFee(t *testing.T) {
	rate, fixed := d("0.029"), d("0.30")
	assert.Equal(t, "3.20", ComputeFee(d("100"), rate, fixed).StringFixed(2))
	assert.Equal(t, "1.03", ComputeFee(d("25"), rate, fixed).StringFixed(2))
	assert.True(t, ComputeFee(decimal.Zero, rate, fixed).IsZero())
}

func TestGrossUpCoversFee(t *testing.T) {
	rate, fixed := d("0.029"), d("0.30")
	for _, raw := range []string{"1", "10", "25", "99.99", "250"} {
		net := d(raw)
		g := GrossUp(net, rate, fixed)
		assert.True(t, g.Sub(ComputeFee(g, rate, fixed)).GreaterThanOrEqual(net), raw)
		prev := g.Sub(Cent)
		assert.True(t, prev.Sub(ComputeFee(prev, rate, fixed)).LessThan(net), raw)
	}
}

func TestNetOfFitsWithinGross(t *testing.T) {
	rate, fixed := d("0.029"), d("0.30")
	assert.Equal(t, "28.83", NetOf(d("30"), rate, fixed).StringFixed(2))
	assert.True(t, NetOf(d("0.20"), rate, fixed).IsZero())
	for _, raw := range []string{"1", "10", "30", "99.99", "250"} {
		gross := d(raw)
		net := NetOf(gross, rate, fixed)
		assert.True(t, GrossUp(net, rate, fixed).LessThanOrEqual(gross), raw)
		assert.True(t, GrossUp(net.Add(Cent), rate, fixed).GreaterThan(gross), raw)
	}
}

func TestMinorUnitsAndJSON(t *testing.T) {
	assert.Equal(t, int64(2550), ToMinorUnits(d("25.5")))
	assert.True(t, FromMinorUnits(2550).Equal(d("25.50")))
	assert.Equal(t, "25.50", JSON(d("25.5")).String())
}

func TestSurplusFloorsAtZero(t *testing.T) {
	assert.True(t, Surplus(d("90"), d("100")).IsZero())
	assert.Equal(t, "12.35", Surplus(d("112.345"), d("100")).StringFixed(2))
}
