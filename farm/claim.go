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

// Claim lists matured withdrawals and plots to collect in one call
type Claim struct {
	StablecoinWithdrawals []uint32
	LPWithdrawals         []uint32
	Plots                 []*uint256.Int
	// ConvertLP unwinds claimed LP, keeping its stablecoin with the claim
	// and sending the other asset to the wallet
	ConvertLP bool
	MinStable *uint256.Int
	MinOther  *uint256.Int
	// ToWallet sends claimed stablecoin the call does not spend to the
	// wallet instead of the wrapped balance
	ToWallet bool
}

// =========================================================================
// Claim Operations
// =========================================================================

// Claim collects the listed withdrawals and plots
func (f *Farm) Claim(ctx context.Context, account common.Address, c Claim) error {
	return f.execute(ctx, "claim", func(ctx context.Context) error {
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		return f.settleClaim(ctx, account, claimed, c.ToWallet)
	})
}

// ClaimAndUnwrap collects the claim and then unwraps up to amount to the
// wallet
func (f *Farm) ClaimAndUnwrap(ctx context.Context, account common.Address, c Claim, amount *uint256.Int) error {
	return f.execute(ctx, "claimAndUnwrap", func(ctx context.Context) error {
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		if err := f.settleClaim(ctx, account, claimed, c.ToWallet); err != nil {
			return err
		}
		_, err = f.unwrap(ctx, account, fixedpoint.OrZero(amount))
		return err
	})
}

// Wrap moves stablecoin from account's wallet into its wrapped balance
func (f *Farm) Wrap(ctx context.Context, account common.Address, amount *uint256.Int) error {
	return f.execute(ctx, "wrap", func(ctx context.Context) error {
		amount := fixedpoint.OrZero(amount)
		if amount.IsZero() {
			return ErrZeroAmount
		}
		if err := f.pull(ctx, f.stablecoin, account, amount); err != nil {
			return err
		}
		a := f.loadAccount(account)
		a.Wrapped = new(uint256.Int).Add(a.Wrapped, amount)
		f.saveAccount(account, a)
		return nil
	})
}

// Unwrap moves up to amount of account's wrapped balance to its wallet and
// returns the amount moved
func (f *Farm) Unwrap(ctx context.Context, account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := f.execute(ctx, "unwrap", func(ctx context.Context) error {
		var err error
		out, err = f.unwrap(ctx, account, fixedpoint.OrZero(amount))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimAndDepositStablecoin collects the claim and deposits amount of
// stablecoin, drawing on the claim first, then the wrapped balance and
// then the wallet
func (f *Farm) ClaimAndDepositStablecoin(ctx context.Context, account common.Address, c Claim, amount *uint256.Int) error {
	return f.execute(ctx, "claimAndDepositStablecoin", func(ctx context.Context) error {
		amount := fixedpoint.OrZero(amount)
		if amount.IsZero() {
			return ErrEmptyDeposit
		}
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		if err := f.allocate(ctx, account, claimed, amount, c.ToWallet); err != nil {
			return err
		}
		f.updateSilo(account)
		f.depositStablecoin(account, f.currentSeason(), amount, fixedpoint.Zero())
		return nil
	})
}

// ClaimAndDepositLP collects the claim and deposits lp pool tokens from
// the wallet
func (f *Farm) ClaimAndDepositLP(ctx context.Context, account common.Address, c Claim, lp *uint256.Int) error {
	return f.execute(ctx, "claimAndDepositLP", func(ctx context.Context) error {
		lp := fixedpoint.OrZero(lp)
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		if err := f.settleClaim(ctx, account, claimed, c.ToWallet); err != nil {
			return err
		}
		f.updateSilo(account)
		value := f.lpToStablecoinValue(lp)
		if lp.IsZero() || value.IsZero() {
			return ErrEmptyDeposit
		}
		if err := f.pull(ctx, f.pool.Address(), account, lp); err != nil {
			return err
		}
		f.depositLP(account, f.currentSeason(), lp, value, fixedpoint.Zero())
		return nil
	})
}

// ClaimAndSow collects the claim and sows amount, allocated like a deposit
func (f *Farm) ClaimAndSow(ctx context.Context, account common.Address, c Claim, amount *uint256.Int) error {
	return f.execute(ctx, "claimAndSow", func(ctx context.Context) error {
		amount := fixedpoint.OrZero(amount)
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		if err := f.allocate(ctx, account, claimed, amount, c.ToWallet); err != nil {
			return err
		}
		_, err = f.sow(ctx, account, f.addr, amount)
		return err
	})
}

// ClaimBuyAndSow collects the claim, buys buyAmount of stablecoin with the
// payment and sows it together with amount
func (f *Farm) ClaimBuyAndSow(ctx context.Context, account common.Address, c Claim, amount, buyAmount, payment *uint256.Int) error {
	return f.execute(ctx, "claimBuyAndSow", func(ctx context.Context) error {
		amount := fixedpoint.OrZero(amount)
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		if err := f.allocate(ctx, account, claimed, amount, c.ToWallet); err != nil {
			return err
		}
		bought, err := f.buyStablecoin(ctx, account, fixedpoint.OrZero(buyAmount), fixedpoint.OrZero(payment))
		if err != nil {
			return err
		}
		_, err = f.sow(ctx, account, f.addr, new(uint256.Int).Add(amount, bought))
		return err
	})
}

// ClaimBuyAndDepositStablecoin collects the claim, buys buyAmount of
// stablecoin with the payment and deposits it together with amount
func (f *Farm) ClaimBuyAndDepositStablecoin(ctx context.Context, account common.Address, c Claim, amount, buyAmount, payment *uint256.Int) error {
	return f.execute(ctx, "claimBuyAndDepositStablecoin", func(ctx context.Context) error {
		amount := fixedpoint.OrZero(amount)
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		if err := f.allocate(ctx, account, claimed, amount, c.ToWallet); err != nil {
			return err
		}
		bought, err := f.buyStablecoin(ctx, account, fixedpoint.OrZero(buyAmount), fixedpoint.OrZero(payment))
		if err != nil {
			return err
		}
		total := new(uint256.Int).Add(amount, bought)
		if total.IsZero() {
			return ErrEmptyDeposit
		}
		f.updateSilo(account)
		f.depositStablecoin(account, f.currentSeason(), total, fixedpoint.Zero())
		return nil
	})
}

// AddAndDepositLP forms LP from wallet stablecoin and the attached payment
// and deposits it. With add.BuyOther set, wallet stablecoin buys the other
// asset instead of a payment supplying it. Every unit of either asset the
// pool does not take is refunded.
func (f *Farm) AddAndDepositLP(ctx context.Context, account common.Address, add AddLiquidity, minLP, payment *uint256.Int) error {
	return f.execute(ctx, "addAndDepositLP", func(ctx context.Context) error {
		required, err := f.stablecoinRequired(add)
		if err != nil {
			return err
		}
		if err := f.pull(ctx, f.stablecoin, account, required); err != nil {
			return err
		}
		return f.addAndDepositLP(ctx, account, add, minLP, payment)
	})
}

// ClaimAddAndDepositLP collects the claim and forms LP from add.Stablecoin
// and the attached payment. The stablecoin, including the cost of
// add.BuyOther, is allocated like a deposit.
func (f *Farm) ClaimAddAndDepositLP(ctx context.Context, account common.Address, c Claim, add AddLiquidity, minLP, payment *uint256.Int) error {
	return f.execute(ctx, "claimAddAndDepositLP", func(ctx context.Context) error {
		claimed, err := f.claim(ctx, account, c)
		if err != nil {
			return err
		}
		required, err := f.stablecoinRequired(add)
		if err != nil {
			return err
		}
		if err := f.allocate(ctx, account, claimed, required, c.ToWallet); err != nil {
			return err
		}
		return f.addAndDepositLP(ctx, account, add, minLP, payment)
	})
}

// addAndDepositLP runs with add.Stablecoin already in custody
func (f *Farm) addAndDepositLP(ctx context.Context, account common.Address, add AddLiquidity, minLP, payment *uint256.Int) error {
	f.updateSilo(account)
	liq, err := f.addLiquidity(ctx, account, add, payment, true)
	if err != nil {
		return err
	}
	if liq.lp.Lt(fixedpoint.OrZero(minLP)) {
		return fmt.Errorf("%w: minted=%s, min=%s", ErrNotEnoughLP, liq.lp.Dec(), fixedpoint.OrZero(minLP).Dec())
	}
	f.depositLP(account, f.currentSeason(), liq.lp, f.lpToStablecoinValue(liq.lp), fixedpoint.Zero())
	return nil
}

// =========================================================================
// Claiming and Allocation
// =========================================================================

// claim collects matured withdrawals and harvestable plots. The claimed
// stablecoin stays in custody and is returned for the caller to settle.
func (f *Farm) claim(ctx context.Context, account common.Address, c Claim) (*uint256.Int, error) {
	claimed := fixedpoint.Zero()

	for _, season := range c.StablecoinWithdrawals {
		amount, err := f.claimWithdrawal(account, AssetStablecoin, season)
		if err != nil {
			return nil, err
		}
		claimed.Add(claimed, amount)
	}

	lp := fixedpoint.Zero()
	for _, season := range c.LPWithdrawals {
		amount, err := f.claimWithdrawal(account, AssetLP, season)
		if err != nil {
			return nil, err
		}
		lp.Add(lp, amount)
	}
	if !lp.IsZero() {
		if c.ConvertLP {
			stable, other, err := f.pool.RemoveLiquidity(ctx, f.addr, lp, f.addr)
			if err != nil {
				return nil, poolErr("remove liquidity", err)
			}
			if stable.Lt(fixedpoint.OrZero(c.MinStable)) || other.Lt(fixedpoint.OrZero(c.MinOther)) {
				return nil, fmt.Errorf("%w: stablecoin=%s, other=%s", ErrNotEnoughStablecoin, stable.Dec(), other.Dec())
			}
			claimed.Add(claimed, stable)
			if err := f.push(ctx, f.other, account, other); err != nil {
				return nil, err
			}
		} else if err := f.push(ctx, f.pool.Address(), account, lp); err != nil {
			return nil, err
		}
	}

	if len(c.Plots) > 0 {
		harvested, err := f.harvest(account, c.Plots)
		if err != nil {
			return nil, err
		}
		claimed.Add(claimed, harvested)
	}
	return claimed, nil
}

func (f *Farm) claimWithdrawal(account common.Address, asset AssetType, season uint32) (*uint256.Int, error) {
	if current := f.currentSeason(); season > current {
		return nil, fmt.Errorf("%w: withdrawal=%d, season=%d", ErrWithdrawalNotReady, season, current)
	}
	amount := f.withdrawal(account, asset, season)
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: %s withdrawal at %d", ErrWithdrawalEmpty, asset, season)
	}
	f.setWithdrawal(account, asset, season, fixedpoint.Zero())

	silo := f.loadSilo()
	if asset == AssetStablecoin {
		silo.WithdrawnStablecoin = fixedpoint.SubFloor(silo.WithdrawnStablecoin, amount)
	} else {
		silo.WithdrawnLP = fixedpoint.SubFloor(silo.WithdrawnLP, amount)
	}
	f.saveSilo(silo)
	return amount, nil
}

// settleClaim sends claimed stablecoin to the wallet or the wrapped balance
func (f *Farm) settleClaim(ctx context.Context, account common.Address, claimed *uint256.Int, toWallet bool) error {
	if claimed.IsZero() {
		return nil
	}
	if toWallet {
		if err := f.push(ctx, f.stablecoin, account, claimed); err != nil {
			return err
		}
	} else {
		a := f.loadAccount(account)
		a.Wrapped = new(uint256.Int).Add(a.Wrapped, claimed)
		f.saveAccount(account, a)
	}
	f.emit(Claimed{Account: account, Amount: claimed.Clone(), Wrapped: !toWallet})
	f.log.Debug("claimed", "account", account.Hex(), "amount", claimed.Dec(), "wrapped", !toWallet)
	return nil
}

// allocate gathers amount of stablecoin in custody for account, drawing on
// claimed first, then the wrapped balance and then the wallet. Claimed
// stablecoin left over is settled like a plain claim.
func (f *Farm) allocate(ctx context.Context, account common.Address, claimed, amount *uint256.Int, toWallet bool) error {
	fromClaimed := fixedpoint.Min(claimed, amount)
	need := new(uint256.Int).Sub(amount, fromClaimed)

	a := f.loadAccount(account)
	fromWrapped := fixedpoint.Min(a.Wrapped, need)
	if !fromWrapped.IsZero() {
		a.Wrapped = new(uint256.Int).Sub(a.Wrapped, fromWrapped)
		f.saveAccount(account, a)
		need.Sub(need, fromWrapped)
	}
	if err := f.pull(ctx, f.stablecoin, account, need); err != nil {
		return err
	}

	if allocated := new(uint256.Int).Add(fromClaimed, fromWrapped); !allocated.IsZero() {
		f.emit(Allocated{Account: account, Amount: allocated})
	}
	return f.settleClaim(ctx, account, new(uint256.Int).Sub(claimed, fromClaimed), toWallet)
}

func (f *Farm) unwrap(ctx context.Context, account common.Address, amount *uint256.Int) (*uint256.Int, error) {
	a := f.loadAccount(account)
	out := fixedpoint.Min(amount, a.Wrapped)
	if out.IsZero() {
		return out, nil
	}
	a.Wrapped = new(uint256.Int).Sub(a.Wrapped, out)
	f.saveAccount(account, a)
	return out, f.push(ctx, f.stablecoin, account, out)
}
