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
// Field Operations
// =========================================================================

// Sow burns amount of stablecoin from account's wallet for pods at the
// current weather. The plot is keyed by its place in the pod line.
func (f *Farm) Sow(ctx context.Context, account common.Address, amount *uint256.Int) error {
	return f.execute(ctx, "sow", func(ctx context.Context) error {
		_, err := f.sow(ctx, account, account, fixedpoint.OrZero(amount))
		return err
	})
}

// Harvest redeems the harvestable part of the listed plots to account's
// wallet
func (f *Farm) Harvest(ctx context.Context, account common.Address, plots []*uint256.Int) error {
	return f.execute(ctx, "harvest", func(ctx context.Context) error {
		total, err := f.harvest(account, plots)
		if err != nil {
			return err
		}
		return f.push(ctx, f.stablecoin, account, total)
	})
}

// BuyAndSow buys exactly buyAmount of stablecoin with the attached payment
// of the other asset, refunds what the purchase did not spend and sows the
// purchase together with amount from the wallet
func (f *Farm) BuyAndSow(ctx context.Context, account common.Address, amount, buyAmount, payment *uint256.Int) error {
	return f.execute(ctx, "buyAndSow", func(ctx context.Context) error {
		amount := fixedpoint.OrZero(amount)
		bought, err := f.buyStablecoin(ctx, account, fixedpoint.OrZero(buyAmount), fixedpoint.OrZero(payment))
		if err != nil {
			return err
		}
		if err := f.pull(ctx, f.stablecoin, account, amount); err != nil {
			return err
		}
		_, err = f.sow(ctx, account, f.addr, new(uint256.Int).Add(amount, bought))
		return err
	})
}

// BuyAndSowWithMin sows up to amount + buyAmount, as much as the soil
// allows. Wallet stablecoin is used first and only the rest is bought with
// the payment. At least minAmount must be sown; bought stablecoin the soil
// cannot take goes back to the wallet.
func (f *Farm) BuyAndSowWithMin(ctx context.Context, account common.Address, amount, buyAmount, minAmount, payment *uint256.Int) error {
	return f.execute(ctx, "buyAndSowWithMin", func(ctx context.Context) error {
		amount, buyAmount, err := f.fitToSoil(fixedpoint.OrZero(amount), fixedpoint.OrZero(buyAmount), fixedpoint.OrZero(minAmount))
		if err != nil {
			return err
		}
		bought, err := f.buyStablecoin(ctx, account, buyAmount, fixedpoint.OrZero(payment))
		if err != nil {
			return err
		}
		if err := f.pull(ctx, f.stablecoin, account, amount); err != nil {
			return err
		}
		total := new(uint256.Int).Add(amount, bought)
		sown := fixedpoint.Min(total, f.loadField().Soil)
		if err := f.push(ctx, f.stablecoin, account, new(uint256.Int).Sub(total, sown)); err != nil {
			return err
		}
		_, err = f.sow(ctx, account, f.addr, sown)
		return err
	})
}

// fitToSoil shrinks a sow of amount from the wallet plus buyAmount bought
// to the available soil, giving up the purchase first
func (f *Farm) fitToSoil(amount, buyAmount, minAmount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	soil := f.loadField().Soil
	if soil.IsZero() || soil.Lt(minAmount) {
		return nil, nil, fmt.Errorf("%w: soil=%s, min=%s", ErrSowBelowMinimum, soil.Dec(), minAmount.Dec())
	}
	if amount.Gt(soil) {
		return soil.Clone(), fixedpoint.Zero(), nil
	}
	if room := new(uint256.Int).Sub(soil, amount); buyAmount.Gt(room) {
		buyAmount = room
	}
	if total := new(uint256.Int).Add(amount, buyAmount); total.Lt(minAmount) || total.IsZero() {
		return nil, nil, fmt.Errorf("%w: sowing=%s, min=%s", ErrSowBelowMinimum, total.Dec(), minAmount.Dec())
	}
	return amount, buyAmount, nil
}

// sow burns amount from payer and issues the pods to account. It returns
// the pod count.
func (f *Farm) sow(ctx context.Context, account, payer common.Address, amount *uint256.Int) (*uint256.Int, error) {
	field := f.loadField()
	if amount.IsZero() {
		return nil, ErrSowBelowMinimum
	}
	if amount.Gt(field.Soil) {
		return nil, fmt.Errorf("%w: amount=%s, soil=%s", ErrInsufficientSoil, amount.Dec(), field.Soil.Dec())
	}
	s := f.loadSeason()
	pods := fixedpoint.AddPercent(amount, s.Weather)
	if pods.IsZero() {
		return nil, ErrSowBelowMinimum
	}
	if err := f.burnStablecoin(ctx, payer, amount); err != nil {
		return nil, err
	}

	index := field.PodIndex.Clone()
	f.setPlot(account, index, new(uint256.Int).Add(f.plot(account, index), pods))
	field.Soil = new(uint256.Int).Sub(field.Soil, amount)
	field.PodIndex = new(uint256.Int).Add(field.PodIndex, pods)
	f.saveField(field)

	// The first sow that exhausts the soil dates the season's demand
	if !field.Soil.Gt(f.p.soilThreshold) && s.NextSowTime == MaxSowTime {
		elapsed := f.clock.Now() - s.Timestamp
		if elapsed >= uint64(MaxSowTime) {
			elapsed = uint64(MaxSowTime) - 1
		}
		s.NextSowTime = uint32(elapsed)
		f.saveSeason(s)
	}

	f.emit(Sown{
		Account:  account,
		Index:    index,
		Sown:     amount.Clone(),
		Pods:     pods,
		Weather:  s.Weather,
		SowTime:  s.NextSowTime,
		SoilLeft: field.Soil.Clone(),
	})
	f.log.Debug("sown",
		"account", account.Hex(),
		"index", index.Dec(),
		"amount", amount.Dec(),
		"pods", pods.Dec(),
		"weather", s.Weather,
	)
	return pods, nil
}

// harvest redeems the harvestable part of each plot. The stablecoin stays
// in custody; the caller decides where it goes.
func (f *Farm) harvest(account common.Address, plots []*uint256.Int) (*uint256.Int, error) {
	if len(plots) == 0 {
		return nil, ErrEmptyRequest
	}
	field := f.loadField()
	total := fixedpoint.Zero()
	for _, idx := range plots {
		idx = fixedpoint.OrZero(idx)
		pods := f.plot(account, idx)
		if pods.IsZero() || !field.HarvestableIndex.Gt(idx) {
			return nil, fmt.Errorf("%w: index=%s", ErrPlotNotHarvestable, idx.Dec())
		}
		ripe := fixedpoint.Min(pods, new(uint256.Int).Sub(field.HarvestableIndex, idx))

		f.setPlot(account, idx, fixedpoint.Zero())
		if rest := new(uint256.Int).Sub(pods, ripe); !rest.IsZero() {
			f.setPlot(account, new(uint256.Int).Add(idx, ripe), rest)
		}
		total.Add(total, ripe)
	}
	field.Harvested = new(uint256.Int).Add(field.Harvested, total)
	f.saveField(field)

	f.emit(Harvested{Account: account, Plots: clonePlots(plots), Amount: total.Clone()})
	f.log.Debug("harvested", "account", account.Hex(), "plots", len(plots), "amount", total.Dec())
	return total, nil
}

func clonePlots(plots []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(plots))
	for i, p := range plots {
		out[i] = fixedpoint.OrZero(p)
	}
	return out
}

// buyStablecoin pulls the payment, buys exactly amount of stablecoin into
// custody and refunds the unspent payment. It returns the amount bought.
func (f *Farm) buyStablecoin(ctx context.Context, account common.Address, amount, payment *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return fixedpoint.Zero(), nil
	}
	in, err := f.pool.GetAmountIn(amount, false)
	if err != nil {
		return nil, poolErr("quote", err)
	}
	if in.Gt(payment) {
		return nil, fmt.Errorf("%w: required=%s, attached=%s", ErrInsufficientPayment, in.Dec(), payment.Dec())
	}
	if err := f.pull(ctx, f.other, account, payment); err != nil {
		return nil, err
	}
	bought, err := f.pool.SwapExactIn(ctx, f.addr, false, in, f.addr)
	if err != nil {
		return nil, poolErr("swap", err)
	}
	if err := f.push(ctx, f.other, account, new(uint256.Int).Sub(payment, in)); err != nil {
		return nil, err
	}
	return bought, nil
}
