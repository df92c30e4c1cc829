package helper

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	priceSignificant = 5
	priceDecimals    = 6
	spotMaxDecimals  = 8
	wireDecimals     = 8
)

var wireTolerance = decimal.New(1, -12)

// Truncate returns the largest multiple of 10^-decimals that is <= v.
func Truncate(v decimal.Decimal, decimals int32) decimal.Decimal {
	if decimals < 0 {
		decimals = 0
	}
	return v.RoundFloor(decimals)
}

// RoundSignificant rounds v to n significant digits, ties to even (the %g rule).
func RoundSignificant(v decimal.Decimal, n int32) decimal.Decimal {
	if v.IsZero() || n <= 0 {
		return v
	}
	coef := new(big.Int).Abs(v.Coefficient())
	magnitude := int32(len(coef.String())) + v.Exponent() - 1
	return v.RoundBank(n - 1 - magnitude)
}

// RoundPrice: 5 significant digits, then at most 6 fractional digits.
func RoundPrice(v decimal.Decimal) decimal.Decimal {
	return RoundSignificant(v, priceSignificant).RoundBank(priceDecimals)
}

// SpotPrice is RoundPrice additionally capped at 8-szDecimals fractional
// digits, the finest tick a spot pair accepts.
func SpotPrice(v decimal.Decimal, szDecimals int32) decimal.Decimal {
	px := RoundPrice(v)
	if places := spotPlaces(szDecimals); places < priceDecimals {
		px = px.RoundBank(places)
	}
	return px
}

func spotPlaces(szDecimals int32) int32 {
	places := spotMaxDecimals - szDecimals
	if places < 0 {
		places = 0
	}
	return places
}

// SlippagePrice is the limit price of an aggressive IOC order standing in for
// a market order on a spot pair.
func SlippagePrice(mid decimal.Decimal, isBuy bool, slippage decimal.Decimal, szDecimals int32) decimal.Decimal {
	px := mid.Mul(decimal.NewFromInt(1).Add(slippage))
	if !isBuy {
		px = mid.Mul(decimal.NewFromInt(1).Sub(slippage))
	}
	return RoundSignificant(px, priceSignificant).RoundBank(spotPlaces(szDecimals))
}

// FloatToWire renders a price/size the way the exchange hashes it: at most
// 8 decimals, no trailing zeros. Values that need more precision are refused.
func FloatToWire(v decimal.Decimal) (string, error) {
	rounded := v.Round(wireDecimals)
	if rounded.Sub(v).Abs().GreaterThanOrEqual(wireTolerance) {
		return "", fmt.Errorf("float_to_wire causes rounding: %s", v)
	}
	if rounded.IsZero() {
		return "0", nil
	}
	return rounded.String(), nil
}
