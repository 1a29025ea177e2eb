// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSubFloor(t *testing.T) {
	require.Equal(t, uint64(3), SubFloor(New(5), New(2)).Uint64())
	require.True(t, SubFloor(New(2), New(5)).IsZero())
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name    string
		x, y, d uint64
		want    uint64
	}{
		{"exact", 10, 20, 5, 40},
		{"truncates", 10, 10, 3, 33},
		{"zero divisor", 10, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MulDiv(New(tt.x), New(tt.y), New(tt.d))
			require.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestMulDivWideIntermediate(t *testing.T) {
	// (2^200 * 2^100) / 2^150 overflows a 256 bit product but not the result
	x := new(uint256.Int).Lsh(New(1), 200)
	y := new(uint256.Int).Lsh(New(1), 100)
	d := new(uint256.Int).Lsh(New(1), 150)
	want := new(uint256.Int).Lsh(New(1), 150)
	require.Equal(t, want, MulDiv(x, y, d))
}

func TestMulDivRoundUp(t *testing.T) {
	require.Equal(t, uint64(4), MulDivRoundUp(New(10), New(1), New(3)).Uint64())
	require.Equal(t, uint64(5), MulDivRoundUp(New(10), New(1), New(2)).Uint64())
}

func TestPercent(t *testing.T) {
	// 5000 sown at 1% weather yields 5050 pods
	require.Equal(t, uint64(5050), AddPercent(New(5000), 1).Uint64())
	// 100 harvestable at 100% weather needs 50 soil
	require.Equal(t, uint64(50), RemovePercent(New(100), 100).Uint64())
}

func TestRatio(t *testing.T) {
	r := Ratio(New(1), New(4))
	require.Equal(t, "250000000000000000", r.Dec())
	require.Equal(t, uint64(25), MulRatio(New(100), r).Uint64())
}

func TestSqrt(t *testing.T) {
	require.Equal(t, uint64(20000), Sqrt(New(400_000_000)).Uint64())
	require.Equal(t, uint64(19974), Sqrt(New(399_000_000)).Uint64())
}

func TestPow(t *testing.T) {
	onePercent := mustRatio(t, "0.01")
	// 1.01^0 == 1
	require.Equal(t, RAY, Pow(new(uint256.Int).Add(RAY, onePercent), 0))
	got := FracExp(New(1_000_000), onePercent, 2)
	require.Equal(t, uint64(1_020_100), got.Uint64())
	// 1.01^300 ~ 19.78
	grown := FracExp(New(1_000_000), onePercent, 300)
	require.True(t, grown.Uint64() > 19_700_000 && grown.Uint64() < 19_800_000, "got %s", grown.Dec())
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"0.5", "500000000000000000", nil},
		{"1", "1000000000000000000", nil},
		{"0.000000000000000001", "1", nil},
		{"1.05", "1050000000000000000", nil},
		{"-0.1", "", ErrNegativeRatio},
		{"0.0000000000000000001", "", ErrRatioPrecision},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRatio(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Dec())
		})
	}

	_, err := ParseRatio("half")
	require.Error(t, err)
}

func TestFormatRatio(t *testing.T) {
	require.Equal(t, "0.5", FormatRatio(mustRatio(t, "0.5")))
	require.Equal(t, "0", FormatRatio(nil))
}

func TestSignedDelta(t *testing.T) {
	require.Equal(t, int64(-5), SignedDelta(New(10), New(5)).Int64())
	require.Equal(t, int64(5), SignedDelta(New(5), New(10)).Int64())
}

func mustRatio(t *testing.T, s string) *uint256.Int {
	t.Helper()
	r, err := ParseRatio(s)
	require.NoError(t, err)
	return r
}
