// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/farm/fixedpoint"
)

func ratio(t *testing.T, s string) *uint256.Int {
	t.Helper()
	v, err := fixedpoint.ParseRatio(s)
	require.NoError(t, err)
	return v
}

func TestStepWeather(t *testing.T) {
	p, err := DefaultConfig().params()
	require.NoError(t, err)

	tests := []struct {
		name      string
		unripened uint64
		price     string
		startSoil uint64
		endSoil   uint64
		lastDSoil uint64
		nextSow   uint32
		lastSow   uint32
		raining   bool
		weather   uint32

		wantCase    uint8
		wantWeather uint32
	}{
		{
			name: "low pods below peg no demand", price: "0.5",
			startSoil: 100, endSoil: 100, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 0, wantWeather: 13,
		},
		{
			name: "low pods below peg steady demand", price: "0.5",
			startSoil: 100, endSoil: 0, lastDSoil: 100, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 1, wantWeather: 11,
		},
		{
			name: "low pods below peg rising demand", price: "0.5",
			startSoil: 100, endSoil: 0, lastDSoil: 50, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 2, wantWeather: 10,
		},
		{
			name: "first soil sold counts as rising", price: "0.5",
			startSoil: 100, endSoil: 40, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 2, wantWeather: 10,
		},
		{
			name: "low pods above peg", price: "1.2",
			startSoil: 100, endSoil: 100, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 4, wantWeather: 9,
		},
		{
			name: "reasonably low pods at peg", unripened: 100, price: "1",
			nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 12, wantWeather: 9,
		},
		{
			name: "optimal pods below peg", unripened: 200, price: "0.9",
			nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 16, wantWeather: 13,
		},
		{
			name: "excessive pods above peg", unripened: 300, price: "1.2",
			nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 28, wantWeather: 10,
		},
		{
			name: "excessive pods above peg rising demand", unripened: 300, price: "1.2",
			startSoil: 100, endSoil: 0, lastDSoil: 50, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 30, wantWeather: 7,
		},
		{
			name: "sold out with no previous sow time", price: "0.5",
			startSoil: 100, nextSow: 1_000, lastSow: MaxSowTime, weather: 10,
			wantCase: 2, wantWeather: 10,
		},
		{
			name: "sold out fast", price: "0.5",
			startSoil: 100, nextSow: 100, lastSow: 2_000, weather: 10,
			wantCase: 2, wantWeather: 10,
		},
		{
			name: "sold out much sooner than last season", price: "0.5",
			startSoil: 100, nextSow: 500, lastSow: 2_000, weather: 10,
			wantCase: 2, wantWeather: 10,
		},
		{
			name: "sold out about as fast", price: "0.5",
			startSoil: 100, nextSow: 320, lastSow: 300, weather: 10,
			wantCase: 1, wantWeather: 11,
		},
		{
			name: "sold out slower", price: "0.5",
			startSoil: 100, nextSow: 500, lastSow: 300, weather: 10,
			wantCase: 0, wantWeather: 13,
		},
		{
			name: "floor at one", price: "1.2",
			startSoil: 100, endSoil: 0, lastDSoil: 100, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 2,
			wantCase: 5, wantWeather: 1,
		},
		{
			name: "ceiling at max", price: "0.5",
			nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 4_999,
			wantCase: 0, wantWeather: 5_000,
		},
		{
			name: "rain caps increases", price: "0.5", raining: true,
			nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 0, wantWeather: 11,
		},
		{
			name: "rain keeps decreases", unripened: 300, price: "1.2", raining: true,
			startSoil: 100, endSoil: 0, lastDSoil: 50, nextSow: MaxSowTime, lastSow: MaxSowTime, weather: 10,
			wantCase: 30, wantWeather: 7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Season{
				Weather:     tt.weather,
				NextSowTime: tt.nextSow,
				LastSowTime: tt.lastSow,
				LastDSoil:   u(tt.lastDSoil),
				Raining:     tt.raining,
			}
			res := stepWeather(&p.weather, &s, weatherSignal{
				startSoil: u(tt.startSoil),
				endSoil:   u(tt.endSoil),
				unripened: u(tt.unripened),
				supply:    u(1_000),
				price:     ratio(t, tt.price),
			})
			if res.caseID != tt.wantCase {
				t.Errorf("caseID = %d, want %d", res.caseID, tt.wantCase)
			}
			if s.Weather != tt.wantWeather {
				t.Errorf("weather = %d, want %d", s.Weather, tt.wantWeather)
			}
			if want := int32(tt.wantWeather) - int32(tt.weather); res.change != want {
				t.Errorf("change = %d, want %d", res.change, want)
			}
			if s.NextSowTime != MaxSowTime {
				t.Errorf("next sow time = %d, want reset", s.NextSowTime)
			}
		})
	}
}

func TestStepWeatherRollsSowTimes(t *testing.T) {
	p, err := DefaultConfig().params()
	require.NoError(t, err)

	s := Season{Weather: 10, NextSowTime: 320, LastSowTime: 300, LastDSoil: u(7)}
	stepWeather(&p.weather, &s, weatherSignal{
		startSoil: u(100),
		endSoil:   u(0),
		unripened: u(0),
		supply:    u(1_000),
		price:     fixedpoint.RAY.Clone(),
	})
	require.Equal(t, uint32(320), s.LastSowTime)
	require.Equal(t, MaxSowTime, s.NextSowTime)
	requireAmount(t, 100, s.LastDSoil)

	// Without a sell-out the last sow time is cleared
	stepWeather(&p.weather, &s, weatherSignal{
		startSoil: u(100),
		endSoil:   u(100),
		unripened: u(0),
		supply:    u(1_000),
		price:     fixedpoint.RAY.Clone(),
	})
	require.Equal(t, MaxSowTime, s.LastSowTime)
	require.True(t, s.LastDSoil.IsZero())
}

func TestStepWeatherZeroSupply(t *testing.T) {
	p, err := DefaultConfig().params()
	require.NoError(t, err)

	// Pods without supply count as excessive
	s := Season{Weather: 10, NextSowTime: MaxSowTime, LastSowTime: MaxSowTime, LastDSoil: u(0)}
	res := stepWeather(&p.weather, &s, weatherSignal{
		startSoil: u(0),
		endSoil:   u(0),
		unripened: u(5),
		supply:    u(0),
		price:     ratio(t, "0.5"),
	})
	require.Equal(t, uint8(24), res.caseID)

	s = Season{Weather: 10, NextSowTime: MaxSowTime, LastSowTime: MaxSowTime, LastDSoil: u(0)}
	res = stepWeather(&p.weather, &s, weatherSignal{
		startSoil: u(0),
		endSoil:   u(0),
		unripened: u(0),
		supply:    u(0),
		price:     ratio(t, "0.5"),
	})
	require.Equal(t, uint8(0), res.caseID)
}

func TestUpdateRain(t *testing.T) {
	var s Season
	for season := uint32(2); season < 25; season++ {
		updateRain(&s, SupplyIncrease, season, 24)
		require.False(t, s.Raining, "season %d", season)
	}
	require.Equal(t, uint32(2), s.RainStart)

	updateRain(&s, SupplyIncrease, 25, 24)
	require.True(t, s.Raining)
	require.Equal(t, uint32(24), s.AbovePegStreak)

	updateRain(&s, SupplyNeutral, 26, 24)
	require.False(t, s.Raining)
	require.Zero(t, s.AbovePegStreak)
	require.Zero(t, s.RainStart)
}

func TestNextWithdrawSeasons(t *testing.T) {
	tests := []struct {
		ws, season, want uint32
	}{
		{25, 84, 24},
		{25, 85, 25},
		{14, 84, 13},
		{13, 84, 13},
		{13, 168, 12},
		{6, 168, 5},
		{5, 168, 5},
	}
	for _, tt := range tests {
		if got := nextWithdrawSeasons(tt.ws, tt.season); got != tt.want {
			t.Errorf("nextWithdrawSeasons(%d, %d) = %d, want %d", tt.ws, tt.season, got, tt.want)
		}
	}
}
