// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/farm/fixedpoint"
)

func TestAdvanceSeasonTooSoon(t *testing.T) {
	h := newHarness(t, abovePeg)

	h.clock.now += h.farm.Config().SeasonPeriod - 1
	_, err := h.farm.AdvanceSeason(h.ctx, keeper)
	require.ErrorIs(t, err, ErrTooSoon)
	require.Equal(t, KindTiming, KindOf(err))
	require.Equal(t, uint32(1), h.farm.Season().Current)
	require.Zero(t, h.balance(stableAddr, keeper))
}

func TestAdvanceSeasonBelowPeg(t *testing.T) {
	h := newHarness(t, belowPeg)
	h.mint(stableAddr, user1, 1_000)

	res := h.advance()

	// 40000 stablecoin against 10000 of a one-dollar asset
	require.Equal(t, uint32(2), res.Season)
	require.Equal(t, SupplyDecrease, res.Case)
	require.Equal(t, "0.25", fixedpoint.FormatRatio(res.Price))

	// Soil covers the shortfall of the 41000 supply
	requireAmount(t, 30_750, h.farm.Field().Soil)
	require.Equal(t, int64(30_750), res.DeltaSoil.Int64())
	require.True(t, res.DeltaHarvestable.IsZero())
	require.True(t, res.DeltaFarmable.IsZero())

	// No pods, price below peg and no demand yet
	require.Equal(t, uint8(0), res.CaseID)
	require.Equal(t, int32(3), res.WeatherChange)
	require.Equal(t, uint32(4), res.Weather)

	s := h.farm.Season()
	require.Equal(t, uint32(2), s.Current)
	require.Equal(t, h.clock.now, s.Timestamp)
	requireAmount(t, 30_750, s.StartSoil)

	requireAmount(t, 100_000_000, res.Reward)
	require.Equal(t, uint64(100_000_000), h.balance(stableAddr, keeper))

	events := h.events.Events()
	require.Len(t, events, 2)
	adv := findEvent[SeasonAdvanced](t, events)
	require.Equal(t, SupplyDecrease, adv.Case)
	wc := findEvent[WeatherChanged](t, events)
	require.Equal(t, uint32(4), wc.Weather)

	// Sowing at the new weather
	require.NoError(t, h.farm.Sow(h.ctx, user1, u(100)))
	requireAmount(t, 104, h.farm.Plot(user1, u(0)))
}

func TestAdvanceSeasonNeutral(t *testing.T) {
	h := newHarness(t, atPeg)

	res := h.advance()
	require.Equal(t, SupplyNeutral, res.Case)
	require.Equal(t, "1", fixedpoint.FormatRatio(res.Price))

	// The soil floor is a thousandth of the supply
	requireAmount(t, 20, h.farm.Field().Soil)
	require.Equal(t, uint8(4), res.CaseID)
	require.Equal(t, uint32(1), res.Weather)
}

func TestAdvanceSeasonRewardsSilo(t *testing.T) {
	h := newHarness(t, abovePeg)
	h.mint(stableAddr, user1, 1_000)
	require.NoError(t, h.farm.DepositStablecoin(h.ctx, user1, u(1_000)))

	res := h.advance()
	require.Equal(t, SupplyIncrease, res.Case)

	// Price 4 over a supply of 11000 and an empty pod line
	require.True(t, res.DeltaHarvestable.IsZero())
	requireAmount(t, 33_000, res.DeltaFarmable)
	require.True(t, h.farm.Field().Soil.IsZero())

	silo := h.farm.Silo()
	requireAmount(t, 33_000, silo.Farmable)
	requireAmount(t, 34_000, silo.DepositedStablecoin)
	requireAmount(t, 340_000_000, silo.TotalStalk)
	require.Equal(t, uint64(34_000), h.balance(stableAddr, farmAddr))
	requireAmount(t, 33_000, h.farm.AccountSilo(user1).FarmableStablecoin)

	require.NoError(t, h.farm.UpdateSilo(h.ctx, user1))
	requireAmount(t, 33_000, h.farm.StablecoinCrate(user1, 2))
	a := h.farm.AccountSilo(user1)
	requireAmount(t, 340_002_000, a.Stalk)
	requireAmount(t, 68_000, a.Seeds)
	require.True(t, h.farm.Silo().Farmable.IsZero())
}

func TestAdvanceSeasonHarvestsPodLine(t *testing.T) {
	h := newHarness(t, belowPeg)
	h.mint(stableAddr, user1, 1_000)
	h.advance()

	require.NoError(t, h.farm.Sow(h.ctx, user1, u(1_000)))
	requireAmount(t, 1_040, h.farm.Plot(user1, u(0)))

	// A buyer pushes the pool well above peg for the next season
	h.mint(otherAddr, trader, 30_000)
	out, err := h.pool.SwapExactIn(h.ctx, trader, false, u(30_000), trader)
	require.NoError(t, err)
	requireAmount(t, 29_981, out)

	res := h.advance()
	require.Equal(t, SupplyIncrease, res.Case)
	require.Equal(t, uint32(3), res.Season)

	// The whole pod line ripens and soil is offered against it
	requireAmount(t, 1_040, res.DeltaHarvestable)
	require.True(t, res.DeltaFarmable.IsZero())
	field := h.farm.Field()
	requireAmount(t, 1_040, field.HarvestableIndex)
	requireAmount(t, 1_000, field.Soil)

	// Pods were bought this season, first time soil was sold
	require.Equal(t, uint8(6), res.CaseID)
	require.Equal(t, uint32(1), res.Weather)

	require.NoError(t, h.farm.Harvest(h.ctx, user1, amounts(0)))
	require.Equal(t, uint64(1_040), h.balance(stableAddr, user1))
	require.True(t, h.farm.Plot(user1, u(0)).IsZero())
	requireAmount(t, 1_040, h.farm.Field().Harvested)
}

func TestAdvanceSeasonIncentiveGrows(t *testing.T) {
	h := newHarness(t, atPeg)

	h.clock.now += h.farm.Config().SeasonPeriod + 1
	res, err := h.farm.AdvanceSeason(h.ctx, keeper)
	require.NoError(t, err)
	requireAmount(t, 101_000_000, res.Reward)

	require.True(t, h.farm.incentive(0).Eq(u(100_000_000)))
	require.True(t, h.farm.incentive(1_000).Eq(h.farm.incentive(300)))
	require.True(t, h.farm.incentive(300).Gt(h.farm.incentive(299)))
}

func TestAdvanceSeasonStaleOracle(t *testing.T) {
	h := newHarness(t, atPeg)
	h.clock.now += h.farm.Config().SeasonPeriod

	// A sample no newer than the stored one cannot average
	h.mutate(func() {
		stable, peg := h.farm.loadSamples()
		stable.Timestamp = h.clock.now
		h.farm.saveSamples(stable, peg)
	})
	_, err := h.farm.AdvanceSeason(h.ctx, keeper)
	require.ErrorIs(t, err, ErrOracleUnavailable)
	require.Equal(t, KindOracle, KindOf(err))
}
