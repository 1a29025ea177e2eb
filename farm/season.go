// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/farm/fixedpoint"
	"github.com/luxfi/farm/oracle"
	"github.com/luxfi/farm/state"
)

// SupplyCase is the season's classification of price against the peg
type SupplyCase uint8

const (
	SupplyNeutral SupplyCase = iota
	SupplyIncrease
	SupplyDecrease
)

func (c SupplyCase) String() string {
	switch c {
	case SupplyIncrease:
		return "increase"
	case SupplyDecrease:
		return "decrease"
	default:
		return "neutral"
	}
}

// SeasonResult summarizes a season transition
type SeasonResult struct {
	Season           uint32
	Case             SupplyCase
	Price            *uint256.Int
	DeltaSoil        *big.Int
	DeltaHarvestable *uint256.Int
	DeltaFarmable    *uint256.Int
	CaseID           uint8
	WeatherChange    int32
	Weather          uint32
	Reward           *uint256.Int
}

// AdvanceSeason runs the season transition. Anyone may call it once the
// season period has elapsed; the caller is paid an incentive that grows
// with how late the call is.
func (f *Farm) AdvanceSeason(ctx context.Context, caller common.Address) (*SeasonResult, error) {
	var res *SeasonResult
	err := f.execute(ctx, "advanceSeason", func(ctx context.Context) error {
		r, err := f.advanceSeason(ctx, caller)
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Farm) advanceSeason(ctx context.Context, caller common.Address) (*SeasonResult, error) {
	now := f.clock.Now()
	s := f.loadSeason()
	due := s.Timestamp + f.p.cfg.SeasonPeriod
	if now < due {
		return nil, fmt.Errorf("%w: now=%d, due=%d", ErrTooSoon, now, due)
	}

	// 1. Oracle
	price, err := f.twapPrice()
	if err != nil {
		return nil, err
	}

	// Demand signal for the weather step, taken before supply changes
	supply := f.ledger.TotalSupply(f.stablecoin)
	field := f.loadField()
	signal := weatherSignal{
		startSoil: s.StartSoil.Clone(),
		endSoil:   field.Soil.Clone(),
		unripened: field.Unripened(),
		supply:    supply.Clone(),
		price:     price,
	}

	// 2-5. Supply
	sun, err := f.stepSun(ctx, &s, &field, price, supply)
	if err != nil {
		return nil, err
	}

	// 6. Weather
	next := s.Current + 1
	updateRain(&s, sun.supplyCase, next, f.p.weather.rainAfter)
	w := stepWeather(&f.p.weather, &s, signal)

	// 7. Advance
	s.Current = next
	s.Timestamp = now
	s.WithdrawSeasons = nextWithdrawSeasons(s.WithdrawSeasons, next)
	f.saveSeason(s)

	reward := f.incentive(now - due)
	if err := f.mintStablecoin(ctx, caller, reward); err != nil {
		return nil, err
	}

	res := &SeasonResult{
		Season:           next,
		Case:             sun.supplyCase,
		Price:            price,
		DeltaSoil:        sun.deltaSoil,
		DeltaHarvestable: sun.harvestable,
		DeltaFarmable:    sun.farmable,
		CaseID:           w.caseID,
		WeatherChange:    w.change,
		Weather:          s.Weather,
		Reward:           reward,
	}
	f.emit(SeasonAdvanced{
		Season:           next,
		Case:             sun.supplyCase,
		Price:            price,
		DeltaSoil:        sun.deltaSoil,
		DeltaHarvestable: sun.harvestable,
		DeltaFarmable:    sun.farmable,
		Reward:           reward,
	})
	f.emit(WeatherChanged{
		Season:  next,
		CaseID:  w.caseID,
		Change:  w.change,
		Weather: s.Weather,
	})
	f.log.Info("season advanced",
		"season", next,
		"case", sun.supplyCase,
		"price", fixedpoint.FormatRatio(price),
		"soil", field.Soil.Dec(),
		"weather", s.Weather,
		"caseId", w.caseID,
		"raining", s.Raining,
	)
	return res, nil
}

// incentive returns the advance reward for a call late seconds after the
// season became due
func (f *Farm) incentive(late uint64) *uint256.Int {
	if late > f.p.cfg.MaxIncentiveDelay {
		late = f.p.cfg.MaxIncentiveDelay
	}
	return fixedpoint.FracExp(uint256.NewInt(f.p.cfg.AdvanceIncentive), f.p.incentiveGrowth, late)
}

// nextWithdrawSeasons shortens the withdrawal delay on a fixed schedule
func nextWithdrawSeasons(ws, season uint32) uint32 {
	if (ws > 13 && season%84 == 0) || (ws > 5 && season%168 == 0) {
		return ws - 1
	}
	return ws
}

// updateRain tracks the above-peg streak that makes it rain
func updateRain(s *Season, c SupplyCase, season, after uint32) {
	if c == SupplyIncrease {
		if s.AbovePegStreak == 0 {
			s.RainStart = season
		}
		s.AbovePegStreak++
	} else {
		s.AbovePegStreak = 0
		s.RainStart = 0
	}
	s.Raining = s.AbovePegStreak >= after
}

// =========================================================================
// Sun
// =========================================================================

type sunResult struct {
	supplyCase  SupplyCase
	deltaSoil   *big.Int
	harvestable *uint256.Int
	farmable    *uint256.Int
}

// stepSun mints or offers soil according to the price
func (f *Farm) stepSun(ctx context.Context, s *Season, field *Field, price, supply *uint256.Int) (sunResult, error) {
	res := sunResult{
		harvestable: fixedpoint.Zero(),
		farmable:    fixedpoint.Zero(),
	}
	floor := fixedpoint.MulRatio(supply, f.p.minSoilRatio)
	before := field.Soil.Clone()

	var soil *uint256.Int
	switch price.Cmp(fixedpoint.RAY) {
	case 1:
		res.supplyCase = SupplyIncrease
		excess := new(uint256.Int).Sub(price, fixedpoint.RAY)
		delta := fixedpoint.Div(fixedpoint.MulDiv(excess, supply, fixedpoint.RAY), f.p.supplyDivisor)

		harvest := fixedpoint.Min(fixedpoint.MulRatio(delta, f.p.harvestFraction), field.Unripened())
		if err := f.mintStablecoin(ctx, f.addr, harvest); err != nil {
			return res, err
		}
		field.HarvestableIndex = new(uint256.Int).Add(field.HarvestableIndex, harvest)
		res.harvestable = harvest

		farmable, err := f.rewardSilo(ctx, fixedpoint.SubFloor(delta, harvest))
		if err != nil {
			return res, err
		}
		res.farmable = farmable
		soil = fixedpoint.RemovePercent(harvest, s.Weather)

	case 0:
		res.supplyCase = SupplyNeutral
		soil = floor

	default:
		res.supplyCase = SupplyDecrease
		gap := new(uint256.Int).Sub(fixedpoint.RAY, price)
		shortfall := fixedpoint.Div(fixedpoint.MulDiv(gap, supply, fixedpoint.RAY), f.p.supplyDivisor)
		soil = fixedpoint.Max(floor, shortfall)
	}

	field.Soil = soil
	s.StartSoil = soil.Clone()
	f.saveField(*field)
	res.deltaSoil = fixedpoint.SignedDelta(before, soil)
	return res, nil
}

// rewardSilo mints reward to custody as farmable stablecoin. Its stalk
// and seeds are credited to the totals now and to accounts as they update.
// Nothing is minted while the silo is empty.
func (f *Farm) rewardSilo(ctx context.Context, reward *uint256.Int) (*uint256.Int, error) {
	silo := f.loadSilo()
	if silo.TotalStalk.IsZero() && silo.TotalSeeds.IsZero() {
		return fixedpoint.Zero(), nil
	}
	if err := f.mintStablecoin(ctx, f.addr, reward); err != nil {
		return nil, err
	}
	silo.Farmable = new(uint256.Int).Add(silo.Farmable, reward)
	silo.DepositedStablecoin = new(uint256.Int).Add(silo.DepositedStablecoin, reward)
	silo.TotalStalk = new(uint256.Int).Add(silo.TotalStalk, fixedpoint.Mul(reward, f.p.stalkPerUnit))
	silo.TotalSeeds = new(uint256.Int).Add(silo.TotalSeeds, fixedpoint.Mul(reward, f.p.seedsPerUnit))
	f.saveSilo(silo)
	return reward, nil
}

// =========================================================================
// Oracle
// =========================================================================

func (f *Farm) sampleOracle() (oracle.Sample, oracle.Sample, error) {
	cum, ts, err := f.oracle.CumulativePrice(f.pool.Address())
	if err != nil {
		return oracle.Sample{}, oracle.Sample{}, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	stable := oracle.Sample{Cumulative: cum, Timestamp: ts}

	cum, ts, err = f.oracle.CumulativePrice(f.peg.Address())
	if err != nil {
		return oracle.Sample{}, oracle.Sample{}, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	return stable, oracle.Sample{Cumulative: cum, Timestamp: ts}, nil
}

func (f *Farm) loadSamples() (oracle.Sample, oracle.Sample) {
	return oracle.Sample{
			Cumulative: f.getUint(stableCumulativeKey),
			Timestamp:  state.GetUint64(f.stateDB, f.addr, stableSampleTimeKey),
		}, oracle.Sample{
			Cumulative: f.getUint(pegCumulativeKey),
			Timestamp:  state.GetUint64(f.stateDB, f.addr, pegSampleTimeKey),
		}
}

func (f *Farm) saveSamples(stable, peg oracle.Sample) {
	f.setUint(stableCumulativeKey, stable.Cumulative)
	state.SetUint64(f.stateDB, f.addr, stableSampleTimeKey, stable.Timestamp)
	f.setUint(pegCumulativeKey, peg.Cumulative)
	state.SetUint64(f.stateDB, f.addr, pegSampleTimeKey, peg.Timestamp)
}

// twapPrice samples both pairs and returns the stablecoin price in USD
// averaged since the previous sample
func (f *Farm) twapPrice() (*uint256.Int, error) {
	prevStable, prevPeg := f.loadSamples()
	stable, peg, err := f.sampleOracle()
	if err != nil {
		return nil, err
	}
	stableTWAP, err := oracle.TWAP(prevStable, stable)
	if err != nil {
		return nil, fmt.Errorf("%w: stablecoin pair: %w", ErrOracleUnavailable, err)
	}
	pegTWAP, err := oracle.TWAP(prevPeg, peg)
	if err != nil {
		return nil, fmt.Errorf("%w: peg pair: %w", ErrOracleUnavailable, err)
	}
	f.saveSamples(stable, peg)
	return fixedpoint.MulDiv(stableTWAP, fixedpoint.RAY, pegTWAP), nil
}
