// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Weather.Cases, 32)

	// Defaults hand out copies of the case table
	cfg.Weather.Cases[0] = 9
	require.Equal(t, int8(3), DefaultCases[0])
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "farm.yaml", `
seasonPeriod: 7200
formula: uniswap
harvestFraction: "0.25"
weather:
  initial: 5
  podRateUpper: "0.3"
`)
	env := writeFile(t, dir, ".env", "FARM_SEASON_PERIOD=1800\nFARM_WITHDRAW_SEASONS=10\n")

	cfg, err := LoadConfig(path, env)
	require.NoError(t, err)
	require.Equal(t, uint64(1800), cfg.SeasonPeriod)
	require.Equal(t, uint32(10), cfg.WithdrawSeasons)
	require.Equal(t, FormulaUniswap, cfg.Formula)
	require.Equal(t, "0.25", cfg.HarvestFraction)
	require.Equal(t, uint32(5), cfg.Weather.Initial)
	require.Equal(t, "0.3", cfg.Weather.PodRateUpper)

	// Unset fields keep their defaults
	require.Equal(t, uint64(10_000), cfg.StalkPerStablecoin)
	require.Equal(t, "0.15", cfg.Weather.PodRateOptimal)
	require.Len(t, cfg.Weather.Cases, 32)

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint64(7200), cfg.SeasonPeriod)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", "seasonPeriod: 60\n")

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeFile(t, dir, "bad.yaml", "seasonPeriod: [1\n"))
	require.Error(t, err)

	_, err = LoadConfig(good, writeFile(t, dir, "bad.env", "FARM_SEASON_PERIOD=soon\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(good, writeFile(t, dir, "zero.env", "FARM_SUPPLY_DIVISOR=0\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfigValidatorSetupError(t *testing.T) {
	_, err := newValidator("")
	require.Error(t, err)

	saved := loadValidator
	t.Cleanup(func() { loadValidator = saved })
	loadValidator = func() (*validator.Validate, error) { return newValidator("") }

	path := writeFile(t, t.TempDir(), "farm.yaml", "seasonPeriod: 7200\n")
	_, err = LoadConfig(path)
	require.ErrorContains(t, err, "register")
	require.Error(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"genesis season zero", func(c *Config) { c.GenesisSeason = 0 }},
		{"zero period", func(c *Config) { c.SeasonPeriod = 0 }},
		{"lp seeds below stablecoin seeds", func(c *Config) { c.SeedsPerLPStablecoin = 1 }},
		{"unparsable ratio", func(c *Config) { c.HarvestFraction = "half" }},
		{"ratio too precise", func(c *Config) { c.MinSoilRatio = "0.0000000000000000001" }},
		{"harvest fraction above one", func(c *Config) { c.HarvestFraction = "1.5" }},
		{"unknown formula", func(c *Config) { c.Formula = "curve" }},
		{"short case table", func(c *Config) { c.Weather.Cases = c.Weather.Cases[:31] }},
		{"initial weather below min", func(c *Config) { c.Weather.Initial = 0 }},
		{"max below min", func(c *Config) { c.Weather.Min, c.Weather.Max = 10, 5 }},
		{"pod rate buckets out of order", func(c *Config) { c.Weather.PodRateLower = "0.3" }},
		{"demand thresholds out of order", func(c *Config) { c.Weather.DemandLower = "2" }},
		{"no rain", func(c *Config) { c.Weather.RainAfterSeasons = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want %v", err, ErrInvalidConfig)
			}
		})
	}
}
