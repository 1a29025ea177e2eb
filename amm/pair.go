// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements a constant-product liquidity pair over the shared
// state store. The pair address doubles as its LP token address.
package amm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/farm/fixedpoint"
	"github.com/luxfi/farm/state"
)

// Swap fee conventions in basis points
const (
	PancakeFeeBps uint64 = 25
	UniswapFeeBps uint64 = 30

	bpsDenominator uint64 = 10_000
)

// Storage key prefixes for pair state
var (
	reserve0Key   = state.Key([]byte("pair/r0"))
	reserve1Key   = state.Key([]byte("pair/r1"))
	cumulativeKey = state.Key([]byte("pair/cum0"))
	timestampKey  = state.Key([]byte("pair/ts"))
)

var (
	ErrInsufficientInput     = errors.New("amm: insufficient input amount")
	ErrInsufficientOutput    = errors.New("amm: insufficient output amount")
	ErrInsufficientLiquidity = errors.New("amm: insufficient liquidity")
	ErrLiquidityMinted       = errors.New("amm: insufficient liquidity minted")
	ErrLiquidityBurned       = errors.New("amm: insufficient liquidity burned")
)

// Clock supplies the current unix time in seconds
type Clock interface {
	Now() uint64
}

// Ledger is the token capability the pair moves balances through
type Ledger interface {
	TotalSupply(token common.Address) *uint256.Int
	Mint(ctx context.Context, token, to common.Address, amount *uint256.Int) error
	Burn(ctx context.Context, token, from common.Address, amount *uint256.Int) error
	Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error
}

// Config describes a pair
type Config struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
	FeeBps  uint64
}

// Pair is a two-asset constant-product pool
type Pair struct {
	mu sync.Mutex

	cfg     Config
	ledger  Ledger
	stateDB state.StateDB
	clock   Clock
}

// NewPair creates a pair. Reserves start empty.
func NewPair(stateDB state.StateDB, ledger Ledger, clock Clock, cfg Config) *Pair {
	return &Pair{
		cfg:     cfg,
		ledger:  ledger,
		stateDB: stateDB,
		clock:   clock,
	}
}

// Address returns the pair address, which is also the LP token
func (p *Pair) Address() common.Address { return p.cfg.Address }

// Token0 returns the first asset
func (p *Pair) Token0() common.Address { return p.cfg.Token0 }

// Token1 returns the second asset
func (p *Pair) Token1() common.Address { return p.cfg.Token1 }

// FeeBps returns the swap fee in basis points
func (p *Pair) FeeBps() uint64 { return p.cfg.FeeBps }

// Reserves returns the pooled amounts of token0 and token1
func (p *Pair) Reserves() (*uint256.Int, *uint256.Int) {
	return state.GetUint(p.stateDB, p.cfg.Address, reserve0Key),
		state.GetUint(p.stateDB, p.cfg.Address, reserve1Key)
}

// LPSupply returns the outstanding LP tokens
func (p *Pair) LPSupply() *uint256.Int {
	return p.ledger.TotalSupply(p.cfg.Address)
}

// CumulativePrice returns the time-integrated price of token0 in token1
// (RAY scaled, summed per second) extrapolated to now, and the timestamp.
func (p *Pair) CumulativePrice() (*uint256.Int, uint64) {
	now := p.clock.Now()
	cum := state.GetUint(p.stateDB, p.cfg.Address, cumulativeKey)
	last := state.GetUint64(p.stateDB, p.cfg.Address, timestampKey)
	r0, r1 := p.Reserves()
	if now > last && !r0.IsZero() && !r1.IsZero() {
		price := fixedpoint.Ratio(r1, r0)
		cum.Add(cum, fixedpoint.MulUint64(price, now-last))
	}
	return cum, now
}

// =========================================================================
// Pricing
// =========================================================================

// GetAmountOut returns the output for an exact input after fees
func (p *Pair) GetAmountOut(amountIn *uint256.Int, zeroForOne bool) *uint256.Int {
	rIn, rOut := p.directional(zeroForOne)
	return amountOut(amountIn, rIn, rOut, p.cfg.FeeBps)
}

// GetAmountIn returns the input needed to receive exactly amountOut
func (p *Pair) GetAmountIn(amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	rIn, rOut := p.directional(zeroForOne)
	if amountOut.IsZero() {
		return nil, ErrInsufficientOutput
	}
	if rIn.IsZero() || !amountOut.Lt(rOut) {
		return nil, ErrInsufficientLiquidity
	}
	num := fixedpoint.MulUint64(fixedpoint.Mul(rIn, amountOut), bpsDenominator)
	den := fixedpoint.MulUint64(new(uint256.Int).Sub(rOut, amountOut), bpsDenominator-p.cfg.FeeBps)
	in := fixedpoint.Div(num, den)
	return in.AddUint64(in, 1), nil
}

func amountOut(amountIn, rIn, rOut *uint256.Int, feeBps uint64) *uint256.Int {
	if amountIn.IsZero() || rIn.IsZero() || rOut.IsZero() {
		return new(uint256.Int)
	}
	inWithFee := fixedpoint.MulUint64(amountIn, bpsDenominator-feeBps)
	num := fixedpoint.Mul(inWithFee, rOut)
	den := new(uint256.Int).Add(fixedpoint.MulUint64(rIn, bpsDenominator), inWithFee)
	return fixedpoint.Div(num, den)
}

func (p *Pair) directional(zeroForOne bool) (*uint256.Int, *uint256.Int) {
	r0, r1 := p.Reserves()
	if zeroForOne {
		return r0, r1
	}
	return r1, r0
}

// =========================================================================
// Core Operations
// =========================================================================

// SwapExactIn sells amountIn of one asset, pulled from `from`, and pays the
// output to `to`
func (p *Pair) SwapExactIn(
	ctx context.Context,
	from common.Address,
	zeroForOne bool,
	amountIn *uint256.Int,
	to common.Address,
) (*uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amountIn.IsZero() {
		return nil, ErrInsufficientInput
	}
	r0, r1 := p.Reserves()
	tokenIn, tokenOut := p.cfg.Token0, p.cfg.Token1
	rIn, rOut := r0, r1
	if !zeroForOne {
		tokenIn, tokenOut = tokenOut, tokenIn
		rIn, rOut = rOut, rIn
	}

	out := amountOut(amountIn, rIn, rOut, p.cfg.FeeBps)
	if out.IsZero() {
		return nil, ErrInsufficientOutput
	}

	if err := p.ledger.Transfer(ctx, tokenIn, from, p.cfg.Address, amountIn); err != nil {
		return nil, err
	}
	if err := p.ledger.Transfer(ctx, tokenOut, p.cfg.Address, to, out); err != nil {
		return nil, err
	}

	newIn := new(uint256.Int).Add(rIn, amountIn)
	newOut := new(uint256.Int).Sub(rOut, out)
	if zeroForOne {
		p.update(r0, r1, newIn, newOut)
	} else {
		p.update(r0, r1, newOut, newIn)
	}
	return out, nil
}

// AddLiquidity deposits at the current ratio, using at most the desired
// amounts. Only the amounts actually used are pulled from `from`.
func (p *Pair) AddLiquidity(
	ctx context.Context,
	from common.Address,
	amount0Desired, amount1Desired *uint256.Int,
	to common.Address,
) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r0, r1 := p.Reserves()
	supply := p.LPSupply()

	var amount0, amount1, liquidity *uint256.Int
	if supply.IsZero() {
		amount0, amount1 = amount0Desired.Clone(), amount1Desired.Clone()
		liquidity = fixedpoint.Sqrt(fixedpoint.Mul(amount0, amount1))
	} else {
		amount1Optimal := fixedpoint.MulDiv(amount0Desired, r1, r0)
		if !amount1Optimal.Gt(amount1Desired) {
			amount0, amount1 = amount0Desired.Clone(), amount1Optimal
		} else {
			amount0, amount1 = fixedpoint.MulDiv(amount1Desired, r0, r1), amount1Desired.Clone()
		}
		liquidity = fixedpoint.Min(
			fixedpoint.MulDiv(amount0, supply, r0),
			fixedpoint.MulDiv(amount1, supply, r1),
		)
	}
	if liquidity.IsZero() {
		return nil, nil, nil, ErrLiquidityMinted
	}

	if err := p.ledger.Transfer(ctx, p.cfg.Token0, from, p.cfg.Address, amount0); err != nil {
		return nil, nil, nil, err
	}
	if err := p.ledger.Transfer(ctx, p.cfg.Token1, from, p.cfg.Address, amount1); err != nil {
		return nil, nil, nil, err
	}
	if err := p.ledger.Mint(ctx, p.cfg.Address, to, liquidity); err != nil {
		return nil, nil, nil, err
	}

	p.update(r0, r1, new(uint256.Int).Add(r0, amount0), new(uint256.Int).Add(r1, amount1))
	return amount0, amount1, liquidity, nil
}

// RemoveLiquidity burns LP held by `from` and pays both assets to `to`
func (p *Pair) RemoveLiquidity(
	ctx context.Context,
	from common.Address,
	liquidity *uint256.Int,
	to common.Address,
) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r0, r1 := p.Reserves()
	supply := p.LPSupply()
	if supply.IsZero() {
		return nil, nil, ErrInsufficientLiquidity
	}

	amount0 := fixedpoint.MulDiv(liquidity, r0, supply)
	amount1 := fixedpoint.MulDiv(liquidity, r1, supply)
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, ErrLiquidityBurned
	}

	if err := p.ledger.Burn(ctx, p.cfg.Address, from, liquidity); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(ctx, p.cfg.Token0, p.cfg.Address, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Transfer(ctx, p.cfg.Token1, p.cfg.Address, to, amount1); err != nil {
		return nil, nil, err
	}

	p.update(r0, r1, new(uint256.Int).Sub(r0, amount0), new(uint256.Int).Sub(r1, amount1))
	return amount0, amount1, nil
}

// update accrues the cumulative price at the old reserves and stores the new ones
func (p *Pair) update(old0, old1, new0, new1 *uint256.Int) {
	now := p.clock.Now()
	last := state.GetUint64(p.stateDB, p.cfg.Address, timestampKey)
	if now > last && !old0.IsZero() && !old1.IsZero() {
		cum := state.GetUint(p.stateDB, p.cfg.Address, cumulativeKey)
		price := fixedpoint.Ratio(old1, old0)
		cum.Add(cum, fixedpoint.MulUint64(price, now-last))
		state.SetUint(p.stateDB, p.cfg.Address, cumulativeKey, cum)
	}
	state.SetUint64(p.stateDB, p.cfg.Address, timestampKey, now)
	state.SetUint(p.stateDB, p.cfg.Address, reserve0Key, new0)
	state.SetUint(p.stateDB, p.cfg.Address, reserve1Key, new1)
}

// String implements fmt.Stringer
func (p *Pair) String() string {
	r0, r1 := p.Reserves()
	return fmt.Sprintf("pair(%s reserves=%s/%s fee=%dbps)", p.cfg.Address.Hex(), r0.Dec(), r1.Dec(), p.cfg.FeeBps)
}
