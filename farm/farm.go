// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package farm implements a credit-based algorithmic stablecoin farm.
//
// A Season is a fixed-length epoch. At each transition the farm compares the
// time-weighted stablecoin price with a USD reference and either mints new
// stablecoin (to pay down the pod line and reward the silo) or offers soil,
// a debt instrument sold at the current weather, to pull supply back to the
// peg. Depositors in the silo earn stalk and seeds; sowers in the field earn
// pods that become redeemable as the line is paid down.
//
// All state lives in a shared state.StateDB. Each mutating call runs in its
// own snapshot and is either applied in full or not at all.
package farm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/farm/fixedpoint"
	"github.com/luxfi/farm/state"
)

// Ledger moves fungible balances. The farm holds protocol custody at its own
// address.
type Ledger interface {
	BalanceOf(token, account common.Address) *uint256.Int
	TotalSupply(token common.Address) *uint256.Int
	Mint(ctx context.Context, token, to common.Address, amount *uint256.Int) error
	Burn(ctx context.Context, token, from common.Address, amount *uint256.Int) error
	Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error
}

// Pool is the stablecoin liquidity pool. Token0 is the stablecoin and the
// pool address is its LP token.
type Pool interface {
	Address() common.Address
	Token0() common.Address
	Token1() common.Address
	Reserves() (*uint256.Int, *uint256.Int)
	LPSupply() *uint256.Int
	GetAmountIn(amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error)
	SwapExactIn(ctx context.Context, from common.Address, zeroForOne bool, amountIn *uint256.Int, to common.Address) (*uint256.Int, error)
	AddLiquidity(ctx context.Context, from common.Address, amount0, amount1 *uint256.Int, to common.Address) (*uint256.Int, *uint256.Int, *uint256.Int, error)
	RemoveLiquidity(ctx context.Context, from common.Address, liquidity *uint256.Int, to common.Address) (*uint256.Int, *uint256.Int, error)
}

// PriceReference is the peg pair. Token0 is the USD reference and token1
// the pool's other asset.
type PriceReference interface {
	Address() common.Address
	Reserves() (*uint256.Int, *uint256.Int)
}

// Oracle reports cumulative prices per pair
type Oracle interface {
	CumulativePrice(pair common.Address) (*uint256.Int, uint64, error)
}

// Clock supplies the current unix time in seconds
type Clock interface {
	Now() uint64
}

// Deps are the capabilities a farm runs against
type Deps struct {
	StateDB state.StateDB
	Ledger  Ledger
	Pool    Pool
	Peg     PriceReference
	Oracle  Oracle
	Clock   Clock
}

// Option configures a Farm
type Option func(*Farm)

// WithLogger sets the logger
func WithLogger(l log.Logger) Option {
	return func(f *Farm) { f.log = l }
}

// WithMetrics enables metrics
func WithMetrics(m *Metrics) Option {
	return func(f *Farm) { f.metrics = m }
}

// WithEventSink sets where events of successful calls are published
func WithEventSink(s EventSink) Option {
	return func(f *Farm) { f.sink = s }
}

var (
	ErrNilDependency   = errors.New("farm: missing dependency")
	ErrPoolTokenLayout = errors.New("farm: pool token0 must be the stablecoin")
)

// Farm is the protocol state machine.
//
// One mutating call executes at a time. Any mutating call made while
// another is executing fails with ErrReentrant, whether it comes from a
// token transfer hook or another goroutine; calls do not queue.
type Farm struct {
	mu        sync.RWMutex
	executing atomic.Bool

	addr       common.Address
	stablecoin common.Address
	other      common.Address

	p       *params
	stateDB state.StateDB
	ledger  Ledger
	pool    Pool
	peg     PriceReference
	oracle  Oracle
	clock   Clock

	log     log.Logger
	metrics *Metrics
	sink    EventSink
	pending []Event
}

// New creates a farm with custody and storage at addr. A store that has not
// been initialized gets its genesis season, which samples the oracle.
func New(addr, stablecoin common.Address, cfg Config, deps Deps, opts ...Option) (*Farm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p, err := cfg.params()
	if err != nil {
		return nil, err
	}
	if deps.StateDB == nil || deps.Ledger == nil || deps.Pool == nil ||
		deps.Peg == nil || deps.Oracle == nil || deps.Clock == nil {
		return nil, ErrNilDependency
	}
	if deps.Pool.Token0() != stablecoin {
		return nil, fmt.Errorf("%w: token0=%s, stablecoin=%s",
			ErrPoolTokenLayout, deps.Pool.Token0().Hex(), stablecoin.Hex())
	}

	f := &Farm{
		addr:       addr,
		stablecoin: stablecoin,
		other:      deps.Pool.Token1(),
		p:          p,
		stateDB:    deps.StateDB,
		ledger:     deps.Ledger,
		pool:       deps.Pool,
		peg:        deps.Peg,
		oracle:     deps.Oracle,
		clock:      deps.Clock,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = log.NewTestLogger(log.InfoLevel)
	}
	if f.sink == nil {
		f.sink = logSink{log: f.log}
	}

	if !state.GetBool(f.stateDB, f.addr, initializedKey) {
		if err := f.execute(context.Background(), "genesis", f.genesis); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *Farm) genesis(context.Context) error {
	stable, peg, err := f.sampleOracle()
	if err != nil {
		return err
	}
	f.saveSamples(stable, peg)
	f.saveSeason(Season{
		Current:         f.p.cfg.GenesisSeason,
		Timestamp:       f.clock.Now(),
		Weather:         f.p.cfg.Weather.Initial,
		NextSowTime:     MaxSowTime,
		LastSowTime:     MaxSowTime,
		StartSoil:       fixedpoint.Zero(),
		LastDSoil:       fixedpoint.Zero(),
		WithdrawSeasons: f.p.cfg.WithdrawSeasons,
	})
	state.SetBool(f.stateDB, f.addr, initializedKey, true)
	f.log.Info("farm genesis",
		"address", f.addr.Hex(),
		"season", f.p.cfg.GenesisSeason,
		"weather", f.p.cfg.Weather.Initial,
	)
	return nil
}

// Address returns the farm's custody and storage address
func (f *Farm) Address() common.Address { return f.addr }

// Stablecoin returns the stablecoin token address
func (f *Farm) Stablecoin() common.Address { return f.stablecoin }

// Config returns the configuration the farm was built with
func (f *Farm) Config() Config { return f.p.cfg }

// =========================================================================
// Call Execution
// =========================================================================

// execute runs fn as one all-or-nothing call. The executing flag is taken
// before the lock so a nested call fails instead of waiting on its caller.
func (f *Farm) execute(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if !f.executing.CompareAndSwap(false, true) {
		f.metrics.failed(op, KindReentrancy)
		return ErrReentrant
	}
	defer f.executing.Store(false)

	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.stateDB.Snapshot()
	f.pending = f.pending[:0]

	err := fn(ctx)
	if err == nil {
		if c, ok := f.stateDB.(state.Committer); ok {
			if cerr := c.Commit(); cerr != nil {
				err = fmt.Errorf("farm: commit: %w", cerr)
			}
		}
	}
	if err != nil {
		f.stateDB.RevertToSnapshot(snap)
		f.pending = f.pending[:0]
		f.metrics.failed(op, KindOf(err))
		f.log.Debug("call reverted", "op", op, "kind", KindOf(err), "err", err)
		return err
	}

	events := append([]Event(nil), f.pending...)
	f.pending = f.pending[:0]
	f.metrics.succeeded(op)
	f.metrics.observe(f.loadSeason(), f.loadSilo(), f.loadField())
	for _, ev := range events {
		if adv, ok := ev.(SeasonAdvanced); ok {
			f.metrics.transition(adv.Case)
		}
	}
	if len(events) > 0 {
		f.sink.Publish(events)
	}
	return nil
}

func (f *Farm) emit(ev Event) {
	f.pending = append(f.pending, ev)
}

// =========================================================================
// Token Movements
// =========================================================================

func ledgerErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrLedger, err)
}

// pull moves amount of token from an account into custody
func (f *Farm) pull(ctx context.Context, token, from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return ledgerErr(f.ledger.Transfer(ctx, token, from, f.addr, amount))
}

// push moves amount of token out of custody
func (f *Farm) push(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return ledgerErr(f.ledger.Transfer(ctx, token, f.addr, to, amount))
}

func (f *Farm) mintStablecoin(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return ledgerErr(f.ledger.Mint(ctx, f.stablecoin, to, amount))
}

func (f *Farm) burnStablecoin(ctx context.Context, from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return ledgerErr(f.ledger.Burn(ctx, f.stablecoin, from, amount))
}

// =========================================================================
// Views
// =========================================================================

// Season returns the season singleton
func (f *Farm) Season() Season {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadSeason()
}

// Silo returns the silo totals
func (f *Farm) Silo() Silo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadSilo()
}

// Field returns the field totals
func (f *Farm) Field() Field {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadField()
}

// AccountSilo is an account's stored silo ledger plus what it would gain
// from an update now
type AccountSilo struct {
	Account
	GrownStalk         *uint256.Int
	FarmableStablecoin *uint256.Int
}

// AccountSilo returns account's silo position without mutating it
func (f *Farm) AccountSilo(account common.Address) AccountSilo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a := f.loadAccount(account)
	return AccountSilo{
		Account:            a,
		GrownStalk:         f.grownStalk(a, f.currentSeason()),
		FarmableStablecoin: f.farmableStablecoin(a, f.loadSilo()),
	}
}

// StablecoinCrate returns the amount deposited by account in season
func (f *Farm) StablecoinCrate(account common.Address, season uint32) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stableCrate(account, season)
}

// LPCrate returns the LP amount and seeds deposited by account in season
func (f *Farm) LPCrate(account common.Address, season uint32) (*uint256.Int, *uint256.Int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lpCrate(account, season)
}

// Withdrawal returns the amount of asset account can claim at season
func (f *Farm) Withdrawal(account common.Address, asset AssetType, season uint32) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.withdrawal(account, asset, season)
}

// Plot returns the pods of account's plot at index
func (f *Farm) Plot(account common.Address, index *uint256.Int) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.plot(account, index)
}

// WrappedBalance returns account's wrapped stablecoin
func (f *Farm) WrappedBalance(account common.Address) *uint256.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadAccount(account).Wrapped
}
