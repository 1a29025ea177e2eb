// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"github.com/holiman/uint256"

	"github.com/luxfi/farm/fixedpoint"
)

// weatherSignal is the demand signal of the season that just ended
type weatherSignal struct {
	startSoil *uint256.Int
	endSoil   *uint256.Int
	unripened *uint256.Int
	supply    *uint256.Int
	price     *uint256.Int
}

type weatherResult struct {
	caseID   uint8
	change   int32
	podRate  *uint256.Int
	demand   *uint256.Int
	infinite bool
}

// stepWeather updates weather, sow times and lastDSoil in s from the signal
func stepWeather(w *weatherParams, s *Season, sig weatherSignal) weatherResult {
	var res weatherResult

	switch {
	case !sig.supply.IsZero():
		res.podRate = fixedpoint.Ratio(sig.unripened, sig.supply)
	case sig.unripened.IsZero():
		res.podRate = fixedpoint.Zero()
	default:
		res.podRate = new(uint256.Int).SetAllOne()
	}

	dsoil := fixedpoint.SubFloor(sig.startSoil, sig.endSoil)

	if s.NextSowTime < MaxSowTime {
		last, next := uint64(s.LastSowTime), uint64(s.NextSowTime)
		steady, fast := uint64(w.steadySowTime), uint64(w.fastSowTime)
		switch {
		case s.LastSowTime == MaxSowTime || next < fast || (last > steady && next < last-steady):
			res.infinite = true
		case next <= last+steady:
			res.demand = fixedpoint.RAY.Clone()
		default:
			res.demand = fixedpoint.Zero()
		}
		s.LastSowTime = s.NextSowTime
		s.NextSowTime = MaxSowTime
	} else {
		switch {
		case dsoil.IsZero():
			res.demand = fixedpoint.Zero()
		case s.LastDSoil.IsZero():
			res.infinite = true
		default:
			res.demand = fixedpoint.Ratio(dsoil, s.LastDSoil)
		}
		s.LastSowTime = MaxSowTime
	}

	switch {
	case !res.podRate.Lt(w.podRateUpper):
		res.caseID = 24
	case !res.podRate.Lt(w.podRateOptimal):
		res.caseID = 16
	case !res.podRate.Lt(w.podRateLower):
		res.caseID = 8
	}
	if !sig.price.Lt(fixedpoint.RAY) {
		res.caseID += 4
	}
	switch {
	case res.infinite || !res.demand.Lt(w.demandUpper):
		res.caseID += 2
	case !res.demand.Lt(w.demandLower):
		res.caseID++
	}

	s.LastDSoil = dsoil

	change := int64(w.cases[res.caseID])
	if s.Raining && change > int64(w.rainMaxIncrease) {
		change = int64(w.rainMaxIncrease)
	}
	weather := int64(s.Weather) + change
	if weather < 1 {
		weather = 1
	}
	weather = max(weather, int64(w.min))
	weather = min(weather, int64(w.max))
	res.change = int32(weather - int64(s.Weather))
	s.Weather = uint32(weather)
	return res
}
