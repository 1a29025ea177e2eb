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

// AddLiquidity describes liquidity formed from stablecoin and the attached
// payment of the pool's other asset
type AddLiquidity struct {
	// Stablecoin offered to the pool
	Stablecoin *uint256.Int
	// Stablecoin to buy first with part of the payment
	BuyStablecoin *uint256.Int
	// Other asset to buy first with stablecoin, paid on top of Stablecoin
	BuyOther *uint256.Int
	// Minimum amounts the pool must take
	MinStablecoin *uint256.Int
	MinOther      *uint256.Int
}

func poolErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrLedger, op, err)
}

// =========================================================================
// Convert Operations
// =========================================================================

// ConvertDepositedStablecoin turns deposited stablecoin into deposited LP
// while the price is above peg. At most the amount that brings the pool to
// peg is sold; the rest is paired with the proceeds. Exactly the converted
// stablecoin is taken from the listed crates and the new LP crate keeps the
// grown stalk of the crates it came from.
func (f *Farm) ConvertDepositedStablecoin(
	ctx context.Context,
	account common.Address,
	amount, minLP *uint256.Int,
	seasons []uint32,
	amounts []*uint256.Int,
) error {
	return f.execute(ctx, "convertDepositedStablecoin", func(ctx context.Context) error {
		if err := checkCrateArgs(seasons, amounts); err != nil {
			return err
		}
		if fixedpoint.OrZero(amount).IsZero() {
			return ErrZeroAmount
		}
		f.updateSilo(account)

		lp, converted, err := f.sellToPegAndAddLiquidity(ctx, account, amount, fixedpoint.OrZero(minLP))
		if err != nil {
			return err
		}
		r, err := f.removeDeposits(account, AssetStablecoin, seasons, amounts, converted, true)
		if err != nil {
			return err
		}
		f.emit(Removed{
			Account: account,
			Type:    AssetStablecoin,
			Seasons: r.seasons,
			Amounts: r.amounts,
			Total:   r.total,
			Stalk:   r.grown,
			Seeds:   r.seeds,
		})

		season := f.currentSeason()
		seedsPerSeason := fixedpoint.Mul(converted, f.p.seedsPerLPUnit)
		age := depositAge(r.grown, seedsPerSeason, season)
		f.depositLP(account, season-age, lp, converted, fixedpoint.MulUint64(seedsPerSeason, uint64(age)))

		f.emit(Converted{Account: account, From: AssetStablecoin, In: converted, Out: lp, Season: season - age})
		f.log.Debug("converted",
			"account", account.Hex(),
			"from", AssetStablecoin,
			"in", converted.Dec(),
			"out", lp.Dec(),
			"age", age,
		)
		return nil
	})
}

// ConvertDepositedLP turns deposited LP into deposited stablecoin while the
// price is below peg. At most the LP that brings the pool to peg is
// unwound and its other asset is sold for stablecoin.
func (f *Farm) ConvertDepositedLP(
	ctx context.Context,
	account common.Address,
	lp, minStable *uint256.Int,
	seasons []uint32,
	amounts []*uint256.Int,
) error {
	return f.execute(ctx, "convertDepositedLP", func(ctx context.Context) error {
		if err := checkCrateArgs(seasons, amounts); err != nil {
			return err
		}
		if fixedpoint.OrZero(lp).IsZero() {
			return ErrZeroAmount
		}
		f.updateSilo(account)

		out, converted, err := f.removeLiquidityAndBuyToPeg(ctx, lp, fixedpoint.OrZero(minStable))
		if err != nil {
			return err
		}
		r, err := f.removeDeposits(account, AssetLP, seasons, amounts, converted, true)
		if err != nil {
			return err
		}
		f.emit(Removed{
			Account: account,
			Type:    AssetLP,
			Seasons: r.seasons,
			Amounts: r.amounts,
			Total:   r.total,
			Stalk:   r.grown,
			Seeds:   r.seeds,
		})

		season := f.currentSeason()
		seedsPerSeason := fixedpoint.Mul(out, f.p.seedsPerUnit)
		age := depositAge(r.grown, seedsPerSeason, season)
		f.depositStablecoin(account, season-age, out, fixedpoint.MulUint64(seedsPerSeason, uint64(age)))

		f.emit(Converted{Account: account, From: AssetLP, In: converted, Out: out, Season: season - age})
		f.log.Debug("converted",
			"account", account.Hex(),
			"from", AssetLP,
			"in", converted.Dec(),
			"out", out.Dec(),
			"age", age,
		)
		return nil
	})
}

// ConvertAddAndDepositLP forms LP from deposited stablecoin and an attached
// payment of the other asset. Stablecoin the listed crates cannot cover is
// taken from the wallet, and every unused unit of either asset is refunded.
func (f *Farm) ConvertAddAndDepositLP(
	ctx context.Context,
	account common.Address,
	add AddLiquidity,
	minLP, payment *uint256.Int,
	seasons []uint32,
	amounts []*uint256.Int,
) error {
	return f.execute(ctx, "convertAddAndDepositLP", func(ctx context.Context) error {
		if err := checkCrateArgs(seasons, amounts); err != nil {
			return err
		}
		f.updateSilo(account)

		// Stablecoin already in custody is the account's, so the pool may
		// draw on it before the crates are settled
		liq, err := f.addLiquidity(ctx, account, add, payment, false)
		if err != nil {
			return err
		}
		if liq.lp.Lt(fixedpoint.OrZero(minLP)) {
			return fmt.Errorf("%w: minted=%s, min=%s", ErrNotEnoughLP, liq.lp.Dec(), fixedpoint.OrZero(minLP).Dec())
		}

		r, err := f.removeDeposits(account, AssetStablecoin, seasons, amounts, liq.usedStable, false)
		if err != nil {
			return err
		}
		fromWallet := new(uint256.Int).Sub(liq.usedStable, r.total)
		switch {
		case fromWallet.Lt(liq.provided):
			if err := f.push(ctx, f.stablecoin, account, new(uint256.Int).Sub(liq.provided, fromWallet)); err != nil {
				return err
			}
		case fromWallet.Gt(liq.provided):
			if err := f.pull(ctx, f.stablecoin, account, new(uint256.Int).Sub(fromWallet, liq.provided)); err != nil {
				return err
			}
		}
		if !r.total.IsZero() {
			f.emit(Removed{
				Account: account,
				Type:    AssetStablecoin,
				Seasons: r.seasons,
				Amounts: r.amounts,
				Total:   r.total,
				Stalk:   r.grown,
				Seeds:   r.seeds,
			})
		}

		season := f.currentSeason()
		value := f.lpToStablecoinValue(liq.lp)
		seedsPerSeason := fixedpoint.Mul(value, f.p.seedsPerLPUnit)
		age := depositAge(r.grown, seedsPerSeason, season)
		f.depositLP(account, season-age, liq.lp, value, fixedpoint.MulUint64(seedsPerSeason, uint64(age)))

		f.emit(Converted{Account: account, From: AssetStablecoin, In: liq.usedStable, Out: liq.lp, Season: season - age})
		return nil
	})
}

// =========================================================================
// Pool Legs
// =========================================================================

// sellToPegAndAddLiquidity sells part of amount held in custody toward the
// peg and pairs the remainder with the proceeds. The LP stays in custody
// and unpaired other asset is refunded to account.
func (f *Farm) sellToPegAndAddLiquidity(
	ctx context.Context,
	account common.Address,
	amount, minLP *uint256.Int,
) (*uint256.Int, *uint256.Int, error) {
	maxSell := f.stablecoinToPeg()
	if maxSell.IsZero() {
		return nil, nil, ErrPriceMustExceedPeg
	}
	stable, _ := f.pool.Reserves()
	sell := fixedpoint.Min(f.curve().swapInAmount(stable, amount), maxSell)

	bought := fixedpoint.Zero()
	if !sell.IsZero() {
		out, err := f.pool.SwapExactIn(ctx, f.addr, true, sell, f.addr)
		if err != nil {
			return nil, nil, poolErr("swap", err)
		}
		bought = out
	}

	used0, used1, lp, err := f.pool.AddLiquidity(ctx, f.addr, new(uint256.Int).Sub(amount, sell), bought, f.addr)
	if err != nil {
		return nil, nil, poolErr("add liquidity", err)
	}
	if lp.Lt(minLP) {
		return nil, nil, fmt.Errorf("%w: minted=%s, min=%s", ErrNotEnoughLP, lp.Dec(), minLP.Dec())
	}
	if err := f.push(ctx, f.other, account, fixedpoint.SubFloor(bought, used1)); err != nil {
		return nil, nil, err
	}
	return lp, new(uint256.Int).Add(used0, sell), nil
}

// removeLiquidityAndBuyToPeg unwinds custody LP toward the peg and buys
// stablecoin with the released other asset. It returns the stablecoin
// received and the LP converted.
func (f *Farm) removeLiquidityAndBuyToPeg(ctx context.Context, lp, minStable *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	maxLP := f.lpToPeg()
	if maxLP.IsZero() {
		return nil, nil, ErrPriceMustBeBelowPeg
	}
	converted := fixedpoint.Min(lp, maxLP)

	stable, other, err := f.pool.RemoveLiquidity(ctx, f.addr, converted, f.addr)
	if err != nil {
		return nil, nil, poolErr("remove liquidity", err)
	}
	bought, err := f.pool.SwapExactIn(ctx, f.addr, false, other, f.addr)
	if err != nil {
		return nil, nil, poolErr("swap", err)
	}
	out := new(uint256.Int).Add(stable, bought)
	if out.Lt(minStable) {
		return nil, nil, fmt.Errorf("%w: received=%s, min=%s", ErrNotEnoughStablecoin, out.Dec(), minStable.Dec())
	}
	return out, converted, nil
}

// liquidity is the outcome of addLiquidity
type liquidity struct {
	lp         *uint256.Int
	usedStable *uint256.Int
	usedOther  *uint256.Int
	// stablecoin the account put into custody for this call, bought or
	// transferred from its wallet
	provided *uint256.Int
}

// sellQuote is the stablecoin it costs to buy add.BuyOther of the other
// asset
func (f *Farm) sellQuote(add AddLiquidity) (*uint256.Int, error) {
	buy := fixedpoint.OrZero(add.BuyOther)
	if buy.IsZero() {
		return fixedpoint.Zero(), nil
	}
	if !fixedpoint.OrZero(add.BuyStablecoin).IsZero() {
		return nil, ErrBuyBothAssets
	}
	in, err := f.pool.GetAmountIn(buy, true)
	if err != nil {
		return nil, poolErr("quote", err)
	}
	return in, nil
}

// stablecoinRequired is the stablecoin add draws on: add.Stablecoin plus the
// cost of add.BuyOther
func (f *Farm) stablecoinRequired(add AddLiquidity) (*uint256.Int, error) {
	sold, err := f.sellQuote(add)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Add(fixedpoint.OrZero(add.Stablecoin), sold), nil
}

// addLiquidity pulls the payment, optionally buys stablecoin with it or the
// other asset with stablecoin, and adds liquidity from custody, minting LP
// to custody. The unspent payment is refunded. When prefunded,
// stablecoinRequired(add) is already in custody on the account's behalf and
// whatever the pool did not take is refunded; otherwise any custody
// shortfall is pulled from the wallet and the caller settles the stablecoin
// against the account's crates.
func (f *Farm) addLiquidity(
	ctx context.Context,
	account common.Address,
	add AddLiquidity,
	payment *uint256.Int,
	prefunded bool,
) (liquidity, error) {
	payment = fixedpoint.OrZero(payment)
	sold, err := f.sellQuote(add)
	if err != nil {
		return liquidity{}, err
	}
	if err := f.pull(ctx, f.other, account, payment); err != nil {
		return liquidity{}, err
	}

	spent := fixedpoint.Zero()
	bought := fixedpoint.Zero()
	if buy := fixedpoint.OrZero(add.BuyStablecoin); !buy.IsZero() {
		in, err := f.pool.GetAmountIn(buy, false)
		if err != nil {
			return liquidity{}, poolErr("quote", err)
		}
		if in.Gt(payment) {
			return liquidity{}, fmt.Errorf("%w: required=%s, attached=%s", ErrInsufficientPayment, in.Dec(), payment.Dec())
		}
		if bought, err = f.pool.SwapExactIn(ctx, f.addr, false, in, f.addr); err != nil {
			return liquidity{}, poolErr("swap", err)
		}
		spent = in
	}

	desiredStable := new(uint256.Int).Add(fixedpoint.OrZero(add.Stablecoin), bought)

	var transferred *uint256.Int
	if prefunded {
		transferred = new(uint256.Int).Add(fixedpoint.OrZero(add.Stablecoin), sold)
	} else {
		// Custody may not hold enough stablecoin for the pool to draw on
		need := new(uint256.Int).Add(desiredStable, sold)
		transferred = fixedpoint.SubFloor(need, f.ledger.BalanceOf(f.stablecoin, f.addr))
		if err := f.pull(ctx, f.stablecoin, account, transferred); err != nil {
			return liquidity{}, err
		}
	}

	boughtOther := fixedpoint.Zero()
	if !sold.IsZero() {
		if boughtOther, err = f.pool.SwapExactIn(ctx, f.addr, true, sold, f.addr); err != nil {
			return liquidity{}, poolErr("swap", err)
		}
	}
	desiredOther := new(uint256.Int).Sub(payment, spent)
	desiredOther.Add(desiredOther, boughtOther)

	used0, used1, lp, err := f.pool.AddLiquidity(ctx, f.addr, desiredStable, desiredOther, f.addr)
	if err != nil {
		return liquidity{}, poolErr("add liquidity", err)
	}
	if used0.Lt(fixedpoint.OrZero(add.MinStablecoin)) || used1.Lt(fixedpoint.OrZero(add.MinOther)) {
		return liquidity{}, fmt.Errorf("%w: stablecoin=%s, other=%s", ErrNotEnoughLP, used0.Dec(), used1.Dec())
	}
	if err := f.push(ctx, f.other, account, new(uint256.Int).Sub(desiredOther, used1)); err != nil {
		return liquidity{}, err
	}

	// Stablecoin consumed covers the pool's share and the sale
	consumed := new(uint256.Int).Add(used0, sold)
	provided := new(uint256.Int).Add(transferred, bought)
	if prefunded {
		if err := f.push(ctx, f.stablecoin, account, fixedpoint.SubFloor(provided, consumed)); err != nil {
			return liquidity{}, err
		}
		provided = fixedpoint.Min(provided, consumed)
	}
	return liquidity{lp: lp, usedStable: consumed, usedOther: used1, provided: provided}, nil
}
