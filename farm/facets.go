// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/farm/modules"
	"github.com/luxfi/farm/registry"
)

// Crates names crates by season with the amount to take from each
type Crates struct {
	Seasons []uint32
	Amounts []*uint256.Int
}

// BuyRequest sows or deposits Amount plus Buy bought with Payment. Min
// only applies to buyAndSowWithMin.
type BuyRequest struct {
	Amount  *uint256.Int
	Buy     *uint256.Int
	Min     *uint256.Int
	Payment *uint256.Int
}

// ConvertRequest converts Amount of deposits out of Crates
type ConvertRequest struct {
	Amount *uint256.Int
	Min    *uint256.Int
	Crates Crates
}

// AddLPRequest forms and deposits LP
type AddLPRequest struct {
	Add     AddLiquidity
	MinLP   *uint256.Int
	Payment *uint256.Int
	Crates  Crates
}

// ClaimRequest pairs a claim with the amount the follow-up step uses
type ClaimRequest struct {
	Claim  Claim
	Amount *uint256.Int
}

// ClaimBuyRequest pairs a claim with a purchase
type ClaimBuyRequest struct {
	Claim Claim
	BuyRequest
}

// ClaimAddLPRequest pairs a claim with LP formation
type ClaimAddLPRequest struct {
	Claim Claim
	AddLPRequest
}

// Balances is the view of an account's silo position and wrapped balance
type Balances struct {
	Silo    AccountSilo
	Wrapped *uint256.Int
}

type none = struct{}

// Modules returns the farm's operations grouped into modules at their
// registry addresses. The caller of each operation acts as the account.
func (f *Farm) Modules() []modules.Module {
	return []modules.Module{
		{
			Name:    "season",
			Address: registry.GetModuleAddress("season"),
			Handlers: map[string]modules.Handler{
				"advanceSeason": modules.Bind(func(ctx context.Context, caller common.Address, _ none) (*SeasonResult, error) {
					return f.AdvanceSeason(ctx, caller)
				}),
			},
		},
		{
			Name:    "silo",
			Address: registry.GetModuleAddress("silo"),
			Handlers: map[string]modules.Handler{
				"updateSilo": modules.Bind(func(ctx context.Context, _ common.Address, account common.Address) (none, error) {
					return none{}, f.UpdateSilo(ctx, account)
				}),
				"depositStablecoin": modules.Bind(func(ctx context.Context, caller common.Address, amount *uint256.Int) (none, error) {
					return none{}, f.DepositStablecoin(ctx, caller, amount)
				}),
				"depositLP": modules.Bind(func(ctx context.Context, caller common.Address, lp *uint256.Int) (none, error) {
					return none{}, f.DepositLP(ctx, caller, lp)
				}),
				"withdrawStablecoin": modules.Bind(func(ctx context.Context, caller common.Address, c Crates) (none, error) {
					return none{}, f.WithdrawStablecoin(ctx, caller, c.Seasons, c.Amounts)
				}),
				"withdrawLP": modules.Bind(func(ctx context.Context, caller common.Address, c Crates) (none, error) {
					return none{}, f.WithdrawLP(ctx, caller, c.Seasons, c.Amounts)
				}),
				"addAndDepositLP": modules.Bind(func(ctx context.Context, caller common.Address, r AddLPRequest) (none, error) {
					return none{}, f.AddAndDepositLP(ctx, caller, r.Add, r.MinLP, r.Payment)
				}),
			},
		},
		{
			Name:    "field",
			Address: registry.GetModuleAddress("field"),
			Handlers: map[string]modules.Handler{
				"sow": modules.Bind(func(ctx context.Context, caller common.Address, amount *uint256.Int) (none, error) {
					return none{}, f.Sow(ctx, caller, amount)
				}),
				"harvest": modules.Bind(func(ctx context.Context, caller common.Address, plots []*uint256.Int) (none, error) {
					return none{}, f.Harvest(ctx, caller, plots)
				}),
				"buyAndSow": modules.Bind(func(ctx context.Context, caller common.Address, r BuyRequest) (none, error) {
					return none{}, f.BuyAndSow(ctx, caller, r.Amount, r.Buy, r.Payment)
				}),
				"buyAndSowWithMin": modules.Bind(func(ctx context.Context, caller common.Address, r BuyRequest) (none, error) {
					return none{}, f.BuyAndSowWithMin(ctx, caller, r.Amount, r.Buy, r.Min, r.Payment)
				}),
			},
		},
		{
			Name:    "convert",
			Address: registry.GetModuleAddress("convert"),
			Handlers: map[string]modules.Handler{
				"convertDepositedStablecoin": modules.Bind(func(ctx context.Context, caller common.Address, r ConvertRequest) (none, error) {
					return none{}, f.ConvertDepositedStablecoin(ctx, caller, r.Amount, r.Min, r.Crates.Seasons, r.Crates.Amounts)
				}),
				"convertDepositedLP": modules.Bind(func(ctx context.Context, caller common.Address, r ConvertRequest) (none, error) {
					return none{}, f.ConvertDepositedLP(ctx, caller, r.Amount, r.Min, r.Crates.Seasons, r.Crates.Amounts)
				}),
				"convertAddAndDepositLP": modules.Bind(func(ctx context.Context, caller common.Address, r AddLPRequest) (none, error) {
					return none{}, f.ConvertAddAndDepositLP(ctx, caller, r.Add, r.MinLP, r.Payment, r.Crates.Seasons, r.Crates.Amounts)
				}),
			},
		},
		{
			Name:    "claim",
			Address: registry.GetModuleAddress("claim"),
			Handlers: map[string]modules.Handler{
				"claim": modules.Bind(func(ctx context.Context, caller common.Address, c Claim) (none, error) {
					return none{}, f.Claim(ctx, caller, c)
				}),
				"claimAndUnwrap": modules.Bind(func(ctx context.Context, caller common.Address, r ClaimRequest) (none, error) {
					return none{}, f.ClaimAndUnwrap(ctx, caller, r.Claim, r.Amount)
				}),
				"wrap": modules.Bind(func(ctx context.Context, caller common.Address, amount *uint256.Int) (none, error) {
					return none{}, f.Wrap(ctx, caller, amount)
				}),
				"unwrap": modules.Bind(func(ctx context.Context, caller common.Address, amount *uint256.Int) (*uint256.Int, error) {
					return f.Unwrap(ctx, caller, amount)
				}),
				"claimAndDepositStablecoin": modules.Bind(func(ctx context.Context, caller common.Address, r ClaimRequest) (none, error) {
					return none{}, f.ClaimAndDepositStablecoin(ctx, caller, r.Claim, r.Amount)
				}),
				"claimAndDepositLP": modules.Bind(func(ctx context.Context, caller common.Address, r ClaimRequest) (none, error) {
					return none{}, f.ClaimAndDepositLP(ctx, caller, r.Claim, r.Amount)
				}),
				"claimAndSow": modules.Bind(func(ctx context.Context, caller common.Address, r ClaimRequest) (none, error) {
					return none{}, f.ClaimAndSow(ctx, caller, r.Claim, r.Amount)
				}),
				"claimBuyAndSow": modules.Bind(func(ctx context.Context, caller common.Address, r ClaimBuyRequest) (none, error) {
					return none{}, f.ClaimBuyAndSow(ctx, caller, r.Claim, r.Amount, r.Buy, r.Payment)
				}),
				"claimBuyAndDepositStablecoin": modules.Bind(func(ctx context.Context, caller common.Address, r ClaimBuyRequest) (none, error) {
					return none{}, f.ClaimBuyAndDepositStablecoin(ctx, caller, r.Claim, r.Amount, r.Buy, r.Payment)
				}),
				"claimAddAndDepositLP": modules.Bind(func(ctx context.Context, caller common.Address, r ClaimAddLPRequest) (none, error) {
					return none{}, f.ClaimAddAndDepositLP(ctx, caller, r.Claim, r.Add, r.MinLP, r.Payment)
				}),
			},
		},
		{
			Name:    "view",
			Address: registry.GetModuleAddress("view"),
			Handlers: map[string]modules.Handler{
				"season": modules.Bind(func(context.Context, common.Address, none) (Season, error) {
					return f.Season(), nil
				}),
				"silo": modules.Bind(func(context.Context, common.Address, none) (Silo, error) {
					return f.Silo(), nil
				}),
				"field": modules.Bind(func(context.Context, common.Address, none) (Field, error) {
					return f.Field(), nil
				}),
				"balances": modules.Bind(func(_ context.Context, _ common.Address, account common.Address) (Balances, error) {
					return Balances{Silo: f.AccountSilo(account), Wrapped: f.WrappedBalance(account)}, nil
				}),
				"stablecoinToPeg": modules.Bind(func(context.Context, common.Address, none) (*uint256.Int, error) {
					return f.StablecoinToPeg(), nil
				}),
				"lpToPeg": modules.Bind(func(context.Context, common.Address, none) (*uint256.Int, error) {
					return f.LPToPeg(), nil
				}),
			},
		},
	}
}

// NewDispatcher serves the farm's modules behind a dispatcher at version
func (f *Farm) NewDispatcher(version uint64) (*modules.Dispatcher, error) {
	t, err := modules.NewTable(version, f.Modules()...)
	if err != nil {
		return nil, err
	}
	return modules.NewDispatcher(t, f.log), nil
}
