// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/farm/fixedpoint"
)

// curve holds the constants of a pool fee convention.
//
// swapInAmount solves for the part s of an amount a to sell into a pool
// with reserve r so that a-s pairs exactly with the proceeds:
//
//	s = (sqrt(r * (a*mulA + r*mulR)) - r*sub) / div
type curve struct {
	mulA, mulR, sub, div uint64
	pegNum, pegDen       uint64
}

var curves = map[Formula]curve{
	FormulaPancake: {mulA: 399_000_000, mulR: 399_000_625, sub: 19_975, div: 19_950, pegNum: 100_000, pegDen: 99_875},
	FormulaUniswap: {mulA: 3_988_000, mulR: 3_988_009, sub: 1_997, div: 1_994, pegNum: 10_000, pegDen: 9_985},
}

// lpPegOffset is the fee adjusted constant of the LP-to-peg solution
var lpPegOffset = uint256.NewInt(1_502_253_380_070_105)

var sqrtRay = uint256.NewInt(1_000_000_000)

func (c curve) swapInAmount(reserveIn, amountIn *uint256.Int) *uint256.Int {
	inner := new(uint256.Int).Add(
		fixedpoint.MulUint64(amountIn, c.mulA),
		fixedpoint.MulUint64(reserveIn, c.mulR),
	)
	root := fixedpoint.Sqrt(fixedpoint.Mul(reserveIn, inner))
	num := fixedpoint.SubFloor(root, fixedpoint.MulUint64(reserveIn, c.sub))
	return fixedpoint.Div(num, uint256.NewInt(c.div))
}

// stablecoinToPeg returns the stablecoin to sell into the pool to bring its
// price down to the peg, or zero when the price is at or below it
func (c curve) stablecoinToPeg(stable, other, pegUSD, pegOther *uint256.Int) *uint256.Int {
	if pegOther.IsZero() {
		return fixedpoint.Zero()
	}
	target := fixedpoint.Sqrt(fixedpoint.MulDiv(fixedpoint.Mul(other, stable), pegUSD, pegOther))
	if !target.Gt(stable) {
		return fixedpoint.Zero()
	}
	excess := new(uint256.Int).Sub(target, stable)
	return fixedpoint.MulDiv(excess, uint256.NewInt(c.pegNum), uint256.NewInt(c.pegDen))
}

// lpToPeg returns the LP to unwind, buying stablecoin with the other asset
// it releases, to bring the pool price up to the peg. Zero when the price
// is at or above it.
func lpToPeg(stable, other, lpSupply, pegUSD, pegOther *uint256.Int) *uint256.Int {
	den := fixedpoint.Mul(pegOther, other)
	if den.IsZero() || other.IsZero() {
		return fixedpoint.Zero()
	}
	c := fixedpoint.Mul(
		fixedpoint.Sqrt(fixedpoint.MulDiv(fixedpoint.Mul(pegUSD, stable), fixedpoint.RAY, den)),
		sqrtRay,
	)
	if !c.Gt(fixedpoint.RAY) || !c.Gt(lpPegOffset) {
		return fixedpoint.Zero()
	}
	num := fixedpoint.Mul(other, new(uint256.Int).Sub(c, fixedpoint.RAY))
	released := fixedpoint.Div(num, new(uint256.Int).Sub(c, lpPegOffset))
	return fixedpoint.MulDiv(released, lpSupply, other)
}

// depositAge converts grown stalk carried by a convert into a crate age in
// seasons for a deposit earning seedsPerSeason. The crate season stays at
// or above one.
func depositAge(grown, seedsPerSeason *uint256.Int, season uint32) uint32 {
	age := fixedpoint.Div(grown, seedsPerSeason)
	if !age.IsUint64() || age.Uint64() >= uint64(season) {
		return season - 1
	}
	return uint32(age.Uint64())
}

// =========================================================================
// Views
// =========================================================================

// StablecoinToPeg returns how much stablecoin can be sold into the pool
// before its price falls to the peg
func (f *Farm) StablecoinToPeg() *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stablecoinToPeg()
}

// LPToPeg returns how much LP can be converted before the pool price
// rises to the peg
func (f *Farm) LPToPeg() *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lpToPeg()
}

func (f *Farm) curve() curve {
	return curves[f.p.cfg.Formula]
}

func (f *Farm) stablecoinToPeg() *uint256.Int {
	stable, other := f.pool.Reserves()
	pegUSD, pegOther := f.peg.Reserves()
	return f.curve().stablecoinToPeg(stable, other, pegUSD, pegOther)
}

func (f *Farm) lpToPeg() *uint256.Int {
	stable, other := f.pool.Reserves()
	pegUSD, pegOther := f.peg.Reserves()
	return lpToPeg(stable, other, f.pool.LPSupply(), pegUSD, pegOther)
}
