// Package money holds the currency arithmetic used by settlement. Amounts are
// decimal currency units; every amount that is persisted or sent to a provider
// goes through RoundCents first.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrBelowMinimum  = fmt.Errorf("%w: below minimum", ErrInvalidAmount)
	ErrNegative      = fmt.Errorf("%w: negative", ErrInvalidAmount)
)

// Cent is the smallest distributable amount.
var Cent = decimal.New(1, -2)

// RoundCents rounds to 2 decimal places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a float amount, rejecting NaN and infinities.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	return RoundCents(decimal.NewFromFloat(f)), nil
}

// Parse reads a decimal amount from its textual form ("25", "25.5", "25.50").
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	switch strings.ToLower(raw) {
	case "nan", "inf", "+inf", "-inf", "infinity":
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return RoundCents(d), nil
}

// Validate rejects negative amounts and amounts below min.
func Validate(d, min decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegative
	}
	if d.LessThan(min) {
		return ErrBelowMinimum
	}
	return nil
}

// ComputeFee returns the processing fee for a gross amount: gross*rate + fixed.
// A zero gross carries no fee.
func ComputeFee(gross, rate, fixed decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}
	fee := RoundCents(gross.Mul(rate).Add(fixed))
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

// GrossUp returns the smallest amount g such that g - ComputeFee(g) >= net.
func GrossUp(net, rate, fixed decimal.Decimal) decimal.Decimal {
	if !net.IsPositive() {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	if !rate.LessThan(one) {
		return decimal.Zero
	}
	g := net.Add(fixed).Div(one.Sub(rate)).RoundCeil(2)
	for g.Sub(ComputeFee(g, rate, fixed)).LessThan(net) {
		g = g.Add(Cent)
	}
	for {
		prev := g.Sub(Cent)
		if prev.Sub(ComputeFee(prev, rate, fixed)).LessThan(net) {
			return g
		}
		g = prev
	}
}

// NetOf is what remains of gross after its processing fee, floored at zero.
// GrossUp(NetOf(gross)) never exceeds gross.
func NetOf(gross, rate, fixed decimal.Decimal) decimal.Decimal {
	net := RoundCents(gross).Sub(ComputeFee(gross, rate, fixed))
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// ToMinorUnits converts to integer cents for providers that denominate that way.
func ToMinorUnits(d decimal.Decimal) int64 {
	return RoundCents(d).Shift(2).IntPart()
}

func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

// JSON renders an amount for the wire: a decimal number with 2 places.
func JSON(d decimal.Decimal) json.Number {
	return json.Number(RoundCents(d).StringFixed(2))
}

// Surplus is current - target floored at zero.
func Surplus(current, target decimal.Decimal) decimal.Decimal {
	s := RoundCents(current.Sub(target))
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}
