// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedpoint implements the deterministic integer arithmetic used by
// the farm. Ratios are scaled by RAY (1e18); every division truncates toward
// zero and subtraction below zero clamps instead of wrapping.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// RAY is the fixed point unit (1e18)
var RAY = uint256.NewInt(1_000_000_000_000_000_000)

var (
	ErrNegativeRatio  = errors.New("fixedpoint: negative ratio")
	ErrRatioPrecision = errors.New("fixedpoint: ratio exceeds 18 decimals")
	ErrRatioOverflow  = errors.New("fixedpoint: ratio overflows 256 bits")
)

// Zero returns a fresh zero value
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// New returns v as a uint256
func New(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// OrZero returns a copy of x, treating nil as zero
func OrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x.Clone()
}

// Min returns a copy of the smaller operand
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x.Clone()
	}
	return y.Clone()
}

// Max returns a copy of the larger operand
func Max(x, y *uint256.Int) *uint256.Int {
	if x.Gt(y) {
		return x.Clone()
	}
	return y.Clone()
}

// SubFloor returns x - y, or zero when y > x
func SubFloor(x, y *uint256.Int) *uint256.Int {
	if y.Gt(x) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(x, y)
}

// Mul returns x * y
func Mul(x, y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Mul(x, y)
}

// MulUint64 returns x * y
func MulUint64(x *uint256.Int, y uint64) *uint256.Int {
	return new(uint256.Int).Mul(x, uint256.NewInt(y))
}

// Div returns x / y truncated, zero when y is zero
func Div(x, y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(x, y)
}

// MulDiv returns x * y / d with a 512 bit intermediate product.
// The result is zero when d is zero.
func MulDiv(x, y, d *uint256.Int) *uint256.Int {
	if d.IsZero() {
		return new(uint256.Int)
	}
	z, _ := new(uint256.Int).MulDivOverflow(x, y, d)
	return z
}

// MulDivRoundUp returns ceil(x * y / d)
func MulDivRoundUp(x, y, d *uint256.Int) *uint256.Int {
	if d.IsZero() {
		return new(uint256.Int)
	}
	z := MulDiv(x, y, d)
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return z
	}
	return z.AddUint64(z, 1)
}

// Ratio returns num / den scaled by RAY
func Ratio(num, den *uint256.Int) *uint256.Int {
	return MulDiv(num, RAY, den)
}

// MulRatio returns x * ratio / RAY
func MulRatio(x, ratio *uint256.Int) *uint256.Int {
	return MulDiv(x, ratio, RAY)
}

// AddPercent returns amount * (100 + pct) / 100
func AddPercent(amount *uint256.Int, pct uint32) *uint256.Int {
	return MulDiv(amount, uint256.NewInt(100+uint64(pct)), uint256.NewInt(100))
}

// RemovePercent returns amount * 100 / (100 + pct), the inverse of AddPercent
func RemovePercent(amount *uint256.Int, pct uint32) *uint256.Int {
	return MulDiv(amount, uint256.NewInt(100), uint256.NewInt(100+uint64(pct)))
}

// Sqrt returns floor(sqrt(x))
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// Pow returns base^n where base is RAY scaled, using exponentiation by squaring.
// Each intermediate product is truncated back to RAY precision.
func Pow(base *uint256.Int, n uint64) *uint256.Int {
	result := RAY.Clone()
	b := base.Clone()
	for n > 0 {
		if n&1 == 1 {
			result = MulDiv(result, b, RAY)
		}
		b = MulDiv(b, b, RAY)
		n >>= 1
	}
	return result
}

// FracExp returns amount * (1 + rate)^n where rate is RAY scaled
func FracExp(amount, rate *uint256.Int, n uint64) *uint256.Int {
	factor := Pow(new(uint256.Int).Add(RAY, rate), n)
	return MulDiv(amount, factor, RAY)
}

// ParseRatio parses a decimal string such as "0.5" into a RAY scaled value.
// Values with more than 18 fractional digits are rejected rather than rounded.
func ParseRatio(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("fixedpoint: parse %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeRatio, s)
	}
	scaled := d.Shift(18)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s", ErrRatioPrecision, s)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %s", ErrRatioOverflow, s)
	}
	return v, nil
}

// FormatRatio renders a RAY scaled value as a decimal string
func FormatRatio(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return decimal.NewFromBigInt(x.ToBig(), -18).String()
}

// ToBig returns x as a big.Int, nil treated as zero
func ToBig(x *uint256.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x.ToBig()
}

// SignedDelta returns to - from as a signed big.Int
func SignedDelta(from, to *uint256.Int) *big.Int {
	return new(big.Int).Sub(ToBig(to), ToBig(from))
}
