// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/farm/fixedpoint"
)

// =========================================================================
// Silo Operations
// =========================================================================

// UpdateSilo vests account's share of farmable stablecoin and its grown
// stalk. Anyone may update any account. Repeated calls within a season do
// nothing.
func (f *Farm) UpdateSilo(ctx context.Context, account common.Address) error {
	return f.execute(ctx, "updateSilo", func(context.Context) error {
		f.updateSilo(account)
		return nil
	})
}

// DepositStablecoin deposits amount of stablecoin from account's wallet
// into a crate at the current season
func (f *Farm) DepositStablecoin(ctx context.Context, account common.Address, amount *uint256.Int) error {
	return f.execute(ctx, "depositStablecoin", func(ctx context.Context) error {
		if fixedpoint.OrZero(amount).IsZero() {
			return ErrEmptyDeposit
		}
		f.updateSilo(account)
		if err := f.pull(ctx, f.stablecoin, account, amount); err != nil {
			return err
		}
		f.depositStablecoin(account, f.currentSeason(), amount, fixedpoint.Zero())
		return nil
	})
}

// DepositLP deposits lp pool tokens from account's wallet. Seeds and stalk
// follow the stablecoin value of the LP at current reserves.
func (f *Farm) DepositLP(ctx context.Context, account common.Address, lp *uint256.Int) error {
	return f.execute(ctx, "depositLP", func(ctx context.Context) error {
		if fixedpoint.OrZero(lp).IsZero() {
			return ErrEmptyDeposit
		}
		f.updateSilo(account)
		value := f.lpToStablecoinValue(lp)
		if value.IsZero() {
			return ErrEmptyDeposit
		}
		if err := f.pull(ctx, f.pool.Address(), account, lp); err != nil {
			return err
		}
		f.depositLP(account, f.currentSeason(), lp, value, fixedpoint.Zero())
		return nil
	})
}

// WithdrawStablecoin removes stablecoin from the listed crates. The total
// becomes claimable after the withdrawal delay.
func (f *Farm) WithdrawStablecoin(ctx context.Context, account common.Address, seasons []uint32, amounts []*uint256.Int) error {
	return f.execute(ctx, "withdrawStablecoin", func(context.Context) error {
		return f.withdraw(account, AssetStablecoin, seasons, amounts)
	})
}

// WithdrawLP removes LP from the listed crates. The total becomes claimable
// after the withdrawal delay.
func (f *Farm) WithdrawLP(ctx context.Context, account common.Address, seasons []uint32, amounts []*uint256.Int) error {
	return f.execute(ctx, "withdrawLP", func(context.Context) error {
		return f.withdraw(account, AssetLP, seasons, amounts)
	})
}

func (f *Farm) withdraw(account common.Address, asset AssetType, seasons []uint32, amounts []*uint256.Int) error {
	if err := checkCrateArgs(seasons, amounts); err != nil {
		return err
	}
	f.updateSilo(account)
	r, err := f.removeDeposits(account, asset, seasons, amounts, nil, false)
	if err != nil {
		return err
	}
	f.addWithdrawal(account, asset, r.total)
	f.emit(Removed{
		Account: account,
		Type:    asset,
		Seasons: r.seasons,
		Amounts: r.amounts,
		Total:   r.total,
		Stalk:   r.stalk(),
		Seeds:   r.seeds,
	})
	f.log.Debug("withdrawn",
		"account", account.Hex(),
		"asset", asset,
		"amount", r.total.Dec(),
		"stalk", r.stalk().Dec(),
	)
	return nil
}

func checkCrateArgs(seasons []uint32, amounts []*uint256.Int) error {
	if len(seasons) != len(amounts) {
		return fmt.Errorf("%w: seasons=%d, amounts=%d", ErrLengthMismatch, len(seasons), len(amounts))
	}
	if len(seasons) == 0 {
		return ErrEmptyRequest
	}
	return nil
}

// =========================================================================
// Lazy Vesting
// =========================================================================

func (f *Farm) updateSilo(account common.Address) {
	season := f.currentSeason()
	a := f.loadAccount(account)
	if a.LastUpdate >= season {
		return
	}
	silo := f.loadSilo()
	grown := f.grownStalk(a, season)

	if !a.Roots.IsZero() {
		if farmable := f.farmableStablecoin(a, silo); !farmable.IsZero() {
			// Totals were credited when the stablecoin was minted
			silo.Farmable = new(uint256.Int).Sub(silo.Farmable, farmable)
			seeds := fixedpoint.Mul(farmable, f.p.seedsPerUnit)
			a.Seeds = new(uint256.Int).Add(a.Seeds, seeds)
			a.Stalk = new(uint256.Int).Add(a.Stalk, fixedpoint.Mul(farmable, f.p.stalkPerUnit))
			a.DepositedStablecoin = new(uint256.Int).Add(a.DepositedStablecoin, farmable)
			f.setStableCrate(account, season, new(uint256.Int).Add(f.stableCrate(account, season), farmable))
			f.emit(Deposited{
				Account: account,
				Type:    AssetStablecoin,
				Season:  season,
				Amount:  farmable,
				Seeds:   seeds,
			})
		}
	}
	if !grown.IsZero() {
		f.mintStalk(&a, &silo, grown)
	}
	a.LastUpdate = season

	f.saveAccount(account, a)
	f.saveSilo(silo)
}

// grownStalk is the stalk account's seeds have grown since its last update
func (f *Farm) grownStalk(a Account, season uint32) *uint256.Int {
	if a.LastUpdate == 0 || a.LastUpdate >= season {
		return fixedpoint.Zero()
	}
	return fixedpoint.MulUint64(a.Seeds, uint64(season-a.LastUpdate))
}

// farmableStablecoin is account's unvested share of minted silo rewards,
// measured by the stalk its roots own beyond what it holds
func (f *Farm) farmableStablecoin(a Account, silo Silo) *uint256.Int {
	if silo.TotalRoots.IsZero() || a.Roots.IsZero() {
		return fixedpoint.Zero()
	}
	owned := fixedpoint.MulDiv(silo.TotalStalk, a.Roots, silo.TotalRoots)
	if !owned.Gt(a.Stalk) {
		return fixedpoint.Zero()
	}
	farmable := fixedpoint.Div(new(uint256.Int).Sub(owned, a.Stalk), f.p.stalkPerUnit)
	return fixedpoint.Min(farmable, silo.Farmable)
}

// =========================================================================
// Stalk, Seeds and Roots
// =========================================================================

func (f *Farm) mintStalk(a *Account, silo *Silo, stalk *uint256.Int) {
	var roots *uint256.Int
	if silo.TotalRoots.IsZero() {
		roots = fixedpoint.Mul(stalk, f.p.rootsBase)
	} else {
		roots = fixedpoint.MulDiv(silo.TotalRoots, stalk, silo.TotalStalk)
	}
	silo.TotalStalk = new(uint256.Int).Add(silo.TotalStalk, stalk)
	silo.TotalRoots = new(uint256.Int).Add(silo.TotalRoots, roots)
	a.Stalk = new(uint256.Int).Add(a.Stalk, stalk)
	a.Roots = new(uint256.Int).Add(a.Roots, roots)
}

// burnStalk removes stalk and the roots backing it, rounding roots up
func (f *Farm) burnStalk(a *Account, silo *Silo, stalk *uint256.Int) {
	if stalk.IsZero() || a.Stalk.IsZero() {
		return
	}
	stalk = fixedpoint.Min(stalk, a.Stalk)
	roots := fixedpoint.Min(fixedpoint.MulDivRoundUp(a.Roots, stalk, a.Stalk), a.Roots)

	silo.TotalStalk = fixedpoint.SubFloor(silo.TotalStalk, stalk)
	silo.TotalRoots = fixedpoint.SubFloor(silo.TotalRoots, roots)
	a.Stalk = new(uint256.Int).Sub(a.Stalk, stalk)
	a.Roots = new(uint256.Int).Sub(a.Roots, roots)
}

// =========================================================================
// Crates
// =========================================================================

// depositStablecoin credits a stablecoin crate. extraStalk is stalk carried
// over from removed crates.
func (f *Farm) depositStablecoin(account common.Address, season uint32, amount, extraStalk *uint256.Int) {
	seeds := fixedpoint.Mul(amount, f.p.seedsPerUnit)
	stalk := new(uint256.Int).Add(fixedpoint.Mul(amount, f.p.stalkPerUnit), extraStalk)

	a, silo := f.loadAccount(account), f.loadSilo()
	f.setStableCrate(account, season, new(uint256.Int).Add(f.stableCrate(account, season), amount))
	a.DepositedStablecoin = new(uint256.Int).Add(a.DepositedStablecoin, amount)
	silo.DepositedStablecoin = new(uint256.Int).Add(silo.DepositedStablecoin, amount)
	f.addSeeds(&a, &silo, seeds)
	f.mintStalk(&a, &silo, stalk)
	f.saveAccount(account, a)
	f.saveSilo(silo)

	f.emit(Deposited{Account: account, Type: AssetStablecoin, Season: season, Amount: amount, Seeds: seeds})
	f.log.Debug("deposited", "account", account.Hex(), "asset", AssetStablecoin, "season", season, "amount", amount.Dec())
}

// depositLP credits an LP crate whose stablecoin value is value
func (f *Farm) depositLP(account common.Address, season uint32, lp, value, extraStalk *uint256.Int) {
	seeds := fixedpoint.Mul(value, f.p.seedsPerLPUnit)
	stalk := new(uint256.Int).Add(fixedpoint.Mul(value, f.p.stalkPerUnit), extraStalk)

	a, silo := f.loadAccount(account), f.loadSilo()
	crateLP, crateSeeds := f.lpCrate(account, season)
	f.setLPCrate(account, season, new(uint256.Int).Add(crateLP, lp), new(uint256.Int).Add(crateSeeds, seeds))
	a.DepositedLP = new(uint256.Int).Add(a.DepositedLP, lp)
	silo.DepositedLP = new(uint256.Int).Add(silo.DepositedLP, lp)
	f.addSeeds(&a, &silo, seeds)
	f.mintStalk(&a, &silo, stalk)
	f.saveAccount(account, a)
	f.saveSilo(silo)

	f.emit(Deposited{Account: account, Type: AssetLP, Season: season, Amount: lp, Seeds: seeds})
	f.log.Debug("deposited", "account", account.Hex(), "asset", AssetLP, "season", season, "amount", lp.Dec())
}

func (f *Farm) addSeeds(a *Account, silo *Silo, seeds *uint256.Int) {
	a.Seeds = new(uint256.Int).Add(a.Seeds, seeds)
	silo.TotalSeeds = new(uint256.Int).Add(silo.TotalSeeds, seeds)
}

// removal is the outcome of taking amounts out of explicit crates
type removal struct {
	seasons   []uint32
	amounts   []*uint256.Int
	total     *uint256.Int
	baseStalk *uint256.Int
	grown     *uint256.Int
	seeds     *uint256.Int
}

func (r removal) stalk() *uint256.Int {
	return new(uint256.Int).Add(r.baseStalk, r.grown)
}

// removeDeposits takes amounts out of the listed crates in order and
// forfeits their seeds and stalk. With a limit, removal stops once limit is
// reached and the last amount is trimmed; exact requires the crates to
// cover the limit.
func (f *Farm) removeDeposits(
	account common.Address,
	asset AssetType,
	seasons []uint32,
	amounts []*uint256.Int,
	limit *uint256.Int,
	exact bool,
) (removal, error) {
	season := f.currentSeason()
	r := removal{
		seasons:   append([]uint32(nil), seasons...),
		amounts:   make([]*uint256.Int, len(amounts)),
		total:     fixedpoint.Zero(),
		baseStalk: fixedpoint.Zero(),
		grown:     fixedpoint.Zero(),
		seeds:     fixedpoint.Zero(),
	}
	for i := range seasons {
		r.amounts[i] = fixedpoint.Zero()
		want := fixedpoint.OrZero(amounts[i]).Clone()
		if limit != nil {
			if !r.total.Lt(limit) {
				continue
			}
			want = fixedpoint.Min(want, new(uint256.Int).Sub(limit, r.total))
		}
		if want.IsZero() {
			if limit != nil {
				continue
			}
			return removal{}, fmt.Errorf("%w: crate %d", ErrZeroAmount, seasons[i])
		}
		if seasons[i] > season {
			return removal{}, fmt.Errorf("%w: crate=%d, season=%d", ErrFutureCrate, seasons[i], season)
		}
		age := uint64(season - seasons[i])

		var seeds, base *uint256.Int
		switch asset {
		case AssetStablecoin:
			crate := f.stableCrate(account, seasons[i])
			if crate.Lt(want) {
				return removal{}, fmt.Errorf("%w: crate=%d, balance=%s, amount=%s",
					ErrInsufficientCrateBalance, seasons[i], crate.Dec(), want.Dec())
			}
			f.setStableCrate(account, seasons[i], new(uint256.Int).Sub(crate, want))
			seeds = fixedpoint.Mul(want, f.p.seedsPerUnit)
			base = fixedpoint.Mul(want, f.p.stalkPerUnit)
		default:
			crateLP, crateSeeds := f.lpCrate(account, seasons[i])
			if crateLP.Lt(want) {
				return removal{}, fmt.Errorf("%w: crate=%d, balance=%s, amount=%s",
					ErrInsufficientCrateBalance, seasons[i], crateLP.Dec(), want.Dec())
			}
			seeds = fixedpoint.MulDiv(crateSeeds, want, crateLP)
			f.setLPCrate(account, seasons[i], new(uint256.Int).Sub(crateLP, want), new(uint256.Int).Sub(crateSeeds, seeds))
			base = fixedpoint.MulDiv(seeds, f.p.stalkPerUnit, f.p.seedsPerLPUnit)
		}

		r.amounts[i] = want
		r.total.Add(r.total, want)
		r.seeds.Add(r.seeds, seeds)
		r.baseStalk.Add(r.baseStalk, base)
		r.grown.Add(r.grown, fixedpoint.MulUint64(seeds, age))
	}
	if limit != nil && exact && !r.total.Eq(limit) {
		return removal{}, fmt.Errorf("%w: crates=%s, required=%s", ErrInsufficientCrateBalance, r.total.Dec(), limit.Dec())
	}

	a, silo := f.loadAccount(account), f.loadSilo()
	a.Seeds = fixedpoint.SubFloor(a.Seeds, r.seeds)
	silo.TotalSeeds = fixedpoint.SubFloor(silo.TotalSeeds, r.seeds)
	f.burnStalk(&a, &silo, r.stalk())
	if asset == AssetStablecoin {
		a.DepositedStablecoin = fixedpoint.SubFloor(a.DepositedStablecoin, r.total)
		silo.DepositedStablecoin = fixedpoint.SubFloor(silo.DepositedStablecoin, r.total)
	} else {
		a.DepositedLP = fixedpoint.SubFloor(a.DepositedLP, r.total)
		silo.DepositedLP = fixedpoint.SubFloor(silo.DepositedLP, r.total)
	}
	f.saveAccount(account, a)
	f.saveSilo(silo)
	return r, nil
}

// addWithdrawal queues amount for claiming after the withdrawal delay
func (f *Farm) addWithdrawal(account common.Address, asset AssetType, amount *uint256.Int) {
	s := f.loadSeason()
	at := s.Current + s.WithdrawSeasons
	f.setWithdrawal(account, asset, at, new(uint256.Int).Add(f.withdrawal(account, asset, at), amount))

	silo := f.loadSilo()
	if asset == AssetStablecoin {
		silo.WithdrawnStablecoin = new(uint256.Int).Add(silo.WithdrawnStablecoin, amount)
	} else {
		silo.WithdrawnLP = new(uint256.Int).Add(silo.WithdrawnLP, amount)
	}
	f.saveSilo(silo)
}

// lpToStablecoinValue values lp at twice its share of the stablecoin reserve
func (f *Farm) lpToStablecoinValue(lp *uint256.Int) *uint256.Int {
	stable, _ := f.pool.Reserves()
	return fixedpoint.MulDiv(lp, fixedpoint.MulUint64(stable, 2), f.pool.LPSupply())
}
