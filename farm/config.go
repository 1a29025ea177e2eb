// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/farm/fixedpoint"
)

// Formula selects the swap-fee convention of the liquidity pool
type Formula string

const (
	FormulaPancake Formula = "pancake"
	FormulaUniswap Formula = "uniswap"
)

// MaxSowTime marks that soil was not exhausted during a season
const MaxSowTime = ^uint32(0)

// DefaultCases is the weather decision table indexed by caseId
var DefaultCases = []int8{
	3, 1, 0, 0, -1, -3, -3, 0,
	3, 1, 0, 0, -1, -3, -3, 0,
	3, 3, 1, 0, 0, -1, -3, 0,
	3, 3, 1, 0, 0, -1, -3, 0,
}

// Environment overrides read from .env files
const (
	EnvSeasonPeriod     = "FARM_SEASON_PERIOD"
	EnvGenesisSeason    = "FARM_GENESIS_SEASON"
	EnvWithdrawSeasons  = "FARM_WITHDRAW_SEASONS"
	EnvSupplyDivisor    = "FARM_SUPPLY_DIVISOR"
	EnvFormula          = "FARM_FORMULA"
	EnvAdvanceIncentive = "FARM_ADVANCE_INCENTIVE"
)

var ErrInvalidConfig = errors.New("farm: invalid config")

// Config holds the protocol parameters. Ratios are decimal strings parsed
// exactly into 18-decimal fixed point.
type Config struct {
	GenesisSeason uint32 `yaml:"genesisSeason" validate:"gte=1"`
	SeasonPeriod  uint64 `yaml:"seasonPeriod" validate:"gt=0"`

	StalkPerStablecoin   uint64 `yaml:"stalkPerStablecoin" validate:"gt=0"`
	SeedsPerStablecoin   uint64 `yaml:"seedsPerStablecoin" validate:"gt=0"`
	SeedsPerLPStablecoin uint64 `yaml:"seedsPerLPStablecoin" validate:"gtefield=SeedsPerStablecoin"`
	RootsBase            uint64 `yaml:"rootsBase" validate:"gt=0"`
	WithdrawSeasons      uint32 `yaml:"withdrawSeasons"`

	HarvestFraction      string `yaml:"harvestFraction" validate:"ratio"`
	SupplyDivisor        uint64 `yaml:"supplyDivisor" validate:"gt=0"`
	MinSoilRatio         string `yaml:"minSoilRatio" validate:"ratio"`
	SowTimeSoilThreshold uint64 `yaml:"sowTimeSoilThreshold"`

	AdvanceIncentive  uint64 `yaml:"advanceIncentive"`
	IncentiveGrowth   string `yaml:"incentiveGrowth" validate:"ratio"`
	MaxIncentiveDelay uint64 `yaml:"maxIncentiveDelay"`

	Formula Formula `yaml:"formula" validate:"oneof=pancake uniswap"`

	Weather WeatherConfig `yaml:"weather"`
}

// WeatherConfig parameterizes the weather controller
type WeatherConfig struct {
	Initial uint32 `yaml:"initial" validate:"gtefield=Min,ltefield=Max"`
	Min     uint32 `yaml:"min" validate:"gte=1"`
	Max     uint32 `yaml:"max" validate:"gtefield=Min"`
	Cases   []int8 `yaml:"cases" validate:"len=32"`

	PodRateLower   string `yaml:"podRateLower" validate:"ratio"`
	PodRateOptimal string `yaml:"podRateOptimal" validate:"ratio"`
	PodRateUpper   string `yaml:"podRateUpper" validate:"ratio"`
	DemandLower    string `yaml:"demandLower" validate:"ratio"`
	DemandUpper    string `yaml:"demandUpper" validate:"ratio"`

	SteadySowTime uint32 `yaml:"steadySowTime"`
	FastSowTime   uint32 `yaml:"fastSowTime"`

	RainAfterSeasons uint32 `yaml:"rainAfterSeasons" validate:"gte=1"`
	RainMaxIncrease  int8   `yaml:"rainMaxIncrease" validate:"gte=0"`
}

// DefaultConfig returns the protocol defaults
func DefaultConfig() Config {
	return Config{
		GenesisSeason:        1,
		SeasonPeriod:         3600,
		StalkPerStablecoin:   10_000,
		SeedsPerStablecoin:   2,
		SeedsPerLPStablecoin: 4,
		RootsBase:            1_000_000_000_000,
		WithdrawSeasons:      25,
		HarvestFraction:      "0.5",
		SupplyDivisor:        1,
		MinSoilRatio:         "0.001",
		SowTimeSoilThreshold: 0,
		AdvanceIncentive:     100_000_000,
		IncentiveGrowth:      "0.01",
		MaxIncentiveDelay:    300,
		Formula:              FormulaPancake,
		Weather: WeatherConfig{
			Initial:          1,
			Min:              1,
			Max:              5000,
			Cases:            append([]int8(nil), DefaultCases...),
			PodRateLower:     "0.05",
			PodRateOptimal:   "0.15",
			PodRateUpper:     "0.25",
			DemandLower:      "0.95",
			DemandUpper:      "1.05",
			SteadySowTime:    60,
			FastSowTime:      300,
			RainAfterSeasons: 24,
			RainMaxIncrease:  1,
		},
	}
}

// LoadConfig reads a YAML file over the defaults, applies overrides from
// the given .env files in order and validates the result
func LoadConfig(path string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("farm: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("farm: parse config %s: %w", path, err)
	}
	if len(envFiles) > 0 {
		env, err := godotenv.Read(envFiles...)
		if err != nil {
			return Config{}, fmt.Errorf("farm: read env: %w", err)
		}
		if err := cfg.applyEnv(env); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	for key, raw := range env {
		var err error
		switch key {
		case EnvSeasonPeriod:
			c.SeasonPeriod, err = strconv.ParseUint(raw, 10, 64)
		case EnvSupplyDivisor:
			c.SupplyDivisor, err = strconv.ParseUint(raw, 10, 64)
		case EnvAdvanceIncentive:
			c.AdvanceIncentive, err = strconv.ParseUint(raw, 10, 64)
		case EnvGenesisSeason:
			var v uint64
			v, err = strconv.ParseUint(raw, 10, 32)
			c.GenesisSeason = uint32(v)
		case EnvWithdrawSeasons:
			var v uint64
			v, err = strconv.ParseUint(raw, 10, 32)
			c.WithdrawSeasons = uint32(v)
		case EnvFormula:
			c.Formula = Formula(raw)
		}
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, raw, err)
		}
	}
	return nil
}

const ratioTag = "ratio"

// loadValidator builds the shared validator on first use
var loadValidator = sync.OnceValues(func() (*validator.Validate, error) {
	return newValidator(ratioTag)
})

func newValidator(ratio string) (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation(ratio, func(fl validator.FieldLevel) bool {
		_, err := fixedpoint.ParseRatio(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return nil, fmt.Errorf("farm: register %q validation: %w", ratio, err)
	}
	return v, nil
}

// Validate checks every field and the ordering of the pod rate buckets
func (c Config) Validate() error {
	v, err := loadValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	p, err := c.params()
	if err != nil {
		return err
	}
	w := p.weather
	if w.podRateLower.Gt(w.podRateOptimal) || w.podRateOptimal.Gt(w.podRateUpper) {
		return fmt.Errorf("%w: pod rate buckets out of order", ErrInvalidConfig)
	}
	if w.demandLower.Gt(w.demandUpper) {
		return fmt.Errorf("%w: demand thresholds out of order", ErrInvalidConfig)
	}
	if p.harvestFraction.Gt(fixedpoint.RAY) {
		return fmt.Errorf("%w: harvest fraction above one", ErrInvalidConfig)
	}
	return nil
}

// params is the parsed form of Config used by the farm
type params struct {
	cfg Config

	stalkPerUnit   *uint256.Int
	seedsPerUnit   *uint256.Int
	seedsPerLPUnit *uint256.Int
	rootsBase      *uint256.Int

	harvestFraction *uint256.Int
	minSoilRatio    *uint256.Int
	incentiveGrowth *uint256.Int
	supplyDivisor   *uint256.Int
	soilThreshold   *uint256.Int

	weather weatherParams
}

type weatherParams struct {
	min, max uint32
	cases    [32]int8

	podRateLower, podRateOptimal, podRateUpper *uint256.Int
	demandLower, demandUpper                   *uint256.Int

	steadySowTime, fastSowTime uint32

	rainAfter       uint32
	rainMaxIncrease int8
}

type ratioField struct {
	name string
	raw  string
	dst  **uint256.Int
}

func (c Config) params() (*params, error) {
	p := &params{
		cfg:            c,
		stalkPerUnit:   uint256.NewInt(c.StalkPerStablecoin),
		seedsPerUnit:   uint256.NewInt(c.SeedsPerStablecoin),
		seedsPerLPUnit: uint256.NewInt(c.SeedsPerLPStablecoin),
		rootsBase:      uint256.NewInt(c.RootsBase),
		supplyDivisor:  uint256.NewInt(c.SupplyDivisor),
		soilThreshold:  uint256.NewInt(c.SowTimeSoilThreshold),
		weather: weatherParams{
			min:             c.Weather.Min,
			max:             c.Weather.Max,
			steadySowTime:   c.Weather.SteadySowTime,
			fastSowTime:     c.Weather.FastSowTime,
			rainAfter:       c.Weather.RainAfterSeasons,
			rainMaxIncrease: c.Weather.RainMaxIncrease,
		},
	}
	ratios := []ratioField{
		{"harvestFraction", c.HarvestFraction, &p.harvestFraction},
		{"minSoilRatio", c.MinSoilRatio, &p.minSoilRatio},
		{"incentiveGrowth", c.IncentiveGrowth, &p.incentiveGrowth},
		{"podRateLower", c.Weather.PodRateLower, &p.weather.podRateLower},
		{"podRateOptimal", c.Weather.PodRateOptimal, &p.weather.podRateOptimal},
		{"podRateUpper", c.Weather.PodRateUpper, &p.weather.podRateUpper},
		{"demandLower", c.Weather.DemandLower, &p.weather.demandLower},
		{"demandUpper", c.Weather.DemandUpper, &p.weather.demandUpper},
	}
	for _, r := range ratios {
		v, err := fixedpoint.ParseRatio(r.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, r.name, err)
		}
		*r.dst = v
	}
	if len(c.Weather.Cases) != len(p.weather.cases) {
		return nil, fmt.Errorf("%w: weather cases must have %d entries, got %d",
			ErrInvalidConfig, len(p.weather.cases), len(c.Weather.Cases))
	}
	copy(p.weather.cases[:], c.Weather.Cases)
	return p, nil
}
