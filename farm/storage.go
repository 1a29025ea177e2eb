// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/farm/fixedpoint"
	"github.com/luxfi/farm/state"
)

// Storage key prefixes for farm state. Every scalar lives in its own slot
// at the farm address.
var (
	seasonPrefix  = []byte("farm/season")
	siloPrefix    = []byte("farm/silo")
	fieldPrefix   = []byte("farm/field")
	oraclePrefix  = []byte("farm/oracle")
	accountPrefix = []byte("farm/account")

	stableCratePrefix = []byte("silo/crate/stable")
	lpCratePrefix     = []byte("silo/crate/lp")
	lpSeedsPrefix     = []byte("silo/crate/lpseeds")
	withdrawalPrefix  = []byte("silo/withdrawal")
	plotPrefix        = []byte("field/plot")
)

func slot(prefix []byte, name string) common.Hash {
	return state.Key(prefix, []byte(name))
}

var (
	initializedKey = slot(seasonPrefix, "initialized")

	seasonCurrentKey   = slot(seasonPrefix, "current")
	seasonTimestampKey = slot(seasonPrefix, "timestamp")
	weatherKey         = slot(seasonPrefix, "weather")
	nextSowTimeKey     = slot(seasonPrefix, "nextSowTime")
	lastSowTimeKey     = slot(seasonPrefix, "lastSowTime")
	startSoilKey       = slot(seasonPrefix, "startSoil")
	lastDSoilKey       = slot(seasonPrefix, "lastDSoil")
	rainStartKey       = slot(seasonPrefix, "rainStart")
	rainingKey         = slot(seasonPrefix, "raining")
	abovePegStreakKey  = slot(seasonPrefix, "abovePegStreak")
	withdrawSeasonsKey = slot(seasonPrefix, "withdrawSeasons")

	totalStalkKey      = slot(siloPrefix, "stalk")
	totalSeedsKey      = slot(siloPrefix, "seeds")
	totalRootsKey      = slot(siloPrefix, "roots")
	depositedStableKey = slot(siloPrefix, "depositedStable")
	depositedLPKey     = slot(siloPrefix, "depositedLP")
	farmableKey        = slot(siloPrefix, "farmable")
	withdrawnStableKey = slot(siloPrefix, "withdrawnStable")
	withdrawnLPKey     = slot(siloPrefix, "withdrawnLP")

	soilKey             = slot(fieldPrefix, "soil")
	podIndexKey         = slot(fieldPrefix, "podIndex")
	harvestableIndexKey = slot(fieldPrefix, "harvestableIndex")
	harvestedKey        = slot(fieldPrefix, "harvested")

	stableCumulativeKey = slot(oraclePrefix, "stableCumulative")
	stableSampleTimeKey = slot(oraclePrefix, "stableTimestamp")
	pegCumulativeKey    = slot(oraclePrefix, "pegCumulative")
	pegSampleTimeKey    = slot(oraclePrefix, "pegTimestamp")
)

// Season is the scheduler and weather singleton
type Season struct {
	Current         uint32
	Timestamp       uint64
	Weather         uint32
	NextSowTime     uint32
	LastSowTime     uint32
	StartSoil       *uint256.Int
	LastDSoil       *uint256.Int
	RainStart       uint32
	Raining         bool
	AbovePegStreak  uint32
	WithdrawSeasons uint32
}

// Silo holds protocol-wide silo totals
type Silo struct {
	TotalStalk          *uint256.Int
	TotalSeeds          *uint256.Int
	TotalRoots          *uint256.Int
	DepositedStablecoin *uint256.Int
	DepositedLP         *uint256.Int
	Farmable            *uint256.Int
	WithdrawnStablecoin *uint256.Int
	WithdrawnLP         *uint256.Int
}

// Field holds soil and the pod line
type Field struct {
	Soil             *uint256.Int
	PodIndex         *uint256.Int
	HarvestableIndex *uint256.Int
	Harvested        *uint256.Int
}

// Outstanding returns pods issued and not yet harvested
func (f Field) Outstanding() *uint256.Int {
	return fixedpoint.SubFloor(f.PodIndex, f.Harvested)
}

// Unripened returns pods not yet harvestable
func (f Field) Unripened() *uint256.Int {
	return fixedpoint.SubFloor(f.PodIndex, f.HarvestableIndex)
}

// Account is one account's silo ledger
type Account struct {
	Stalk               *uint256.Int
	Seeds               *uint256.Int
	Roots               *uint256.Int
	DepositedStablecoin *uint256.Int
	DepositedLP         *uint256.Int
	Wrapped             *uint256.Int
	LastUpdate          uint32
}

// =========================================================================
// Slot Access
// =========================================================================

func (f *Farm) getUint(key common.Hash) *uint256.Int {
	return state.GetUint(f.stateDB, f.addr, key)
}

func (f *Farm) setUint(key common.Hash, v *uint256.Int) {
	state.SetUint(f.stateDB, f.addr, key, v)
}

func (f *Farm) getUint32(key common.Hash) uint32 {
	return uint32(state.GetUint64(f.stateDB, f.addr, key))
}

func (f *Farm) setUint32(key common.Hash, v uint32) {
	state.SetUint64(f.stateDB, f.addr, key, uint64(v))
}

func (f *Farm) loadSeason() Season {
	return Season{
		Current:         f.getUint32(seasonCurrentKey),
		Timestamp:       state.GetUint64(f.stateDB, f.addr, seasonTimestampKey),
		Weather:         f.getUint32(weatherKey),
		NextSowTime:     f.getUint32(nextSowTimeKey),
		LastSowTime:     f.getUint32(lastSowTimeKey),
		StartSoil:       f.getUint(startSoilKey),
		LastDSoil:       f.getUint(lastDSoilKey),
		RainStart:       f.getUint32(rainStartKey),
		Raining:         state.GetBool(f.stateDB, f.addr, rainingKey),
		AbovePegStreak:  f.getUint32(abovePegStreakKey),
		WithdrawSeasons: f.getUint32(withdrawSeasonsKey),
	}
}

func (f *Farm) saveSeason(s Season) {
	f.setUint32(seasonCurrentKey, s.Current)
	state.SetUint64(f.stateDB, f.addr, seasonTimestampKey, s.Timestamp)
	f.setUint32(weatherKey, s.Weather)
	f.setUint32(nextSowTimeKey, s.NextSowTime)
	f.setUint32(lastSowTimeKey, s.LastSowTime)
	f.setUint(startSoilKey, s.StartSoil)
	f.setUint(lastDSoilKey, s.LastDSoil)
	f.setUint32(rainStartKey, s.RainStart)
	state.SetBool(f.stateDB, f.addr, rainingKey, s.Raining)
	f.setUint32(abovePegStreakKey, s.AbovePegStreak)
	f.setUint32(withdrawSeasonsKey, s.WithdrawSeasons)
}

func (f *Farm) currentSeason() uint32 {
	return f.getUint32(seasonCurrentKey)
}

func (f *Farm) loadSilo() Silo {
	return Silo{
		TotalStalk:          f.getUint(totalStalkKey),
		TotalSeeds:          f.getUint(totalSeedsKey),
		TotalRoots:          f.getUint(totalRootsKey),
		DepositedStablecoin: f.getUint(depositedStableKey),
		DepositedLP:         f.getUint(depositedLPKey),
		Farmable:            f.getUint(farmableKey),
		WithdrawnStablecoin: f.getUint(withdrawnStableKey),
		WithdrawnLP:         f.getUint(withdrawnLPKey),
	}
}

func (f *Farm) saveSilo(s Silo) {
	f.setUint(totalStalkKey, s.TotalStalk)
	f.setUint(totalSeedsKey, s.TotalSeeds)
	f.setUint(totalRootsKey, s.TotalRoots)
	f.setUint(depositedStableKey, s.DepositedStablecoin)
	f.setUint(depositedLPKey, s.DepositedLP)
	f.setUint(farmableKey, s.Farmable)
	f.setUint(withdrawnStableKey, s.WithdrawnStablecoin)
	f.setUint(withdrawnLPKey, s.WithdrawnLP)
}

func (f *Farm) loadField() Field {
	return Field{
		Soil:             f.getUint(soilKey),
		PodIndex:         f.getUint(podIndexKey),
		HarvestableIndex: f.getUint(harvestableIndexKey),
		Harvested:        f.getUint(harvestedKey),
	}
}

func (f *Farm) saveField(fd Field) {
	f.setUint(soilKey, fd.Soil)
	f.setUint(podIndexKey, fd.PodIndex)
	f.setUint(harvestableIndexKey, fd.HarvestableIndex)
	f.setUint(harvestedKey, fd.Harvested)
}

func accountKey(account common.Address, field string) common.Hash {
	return state.Key(accountPrefix, account.Bytes(), []byte(field))
}

func (f *Farm) loadAccount(account common.Address) Account {
	return Account{
		Stalk:               f.getUint(accountKey(account, "stalk")),
		Seeds:               f.getUint(accountKey(account, "seeds")),
		Roots:               f.getUint(accountKey(account, "roots")),
		DepositedStablecoin: f.getUint(accountKey(account, "depositedStable")),
		DepositedLP:         f.getUint(accountKey(account, "depositedLP")),
		Wrapped:             f.getUint(accountKey(account, "wrapped")),
		LastUpdate:          f.getUint32(accountKey(account, "lastUpdate")),
	}
}

func (f *Farm) saveAccount(account common.Address, a Account) {
	f.setUint(accountKey(account, "stalk"), a.Stalk)
	f.setUint(accountKey(account, "seeds"), a.Seeds)
	f.setUint(accountKey(account, "roots"), a.Roots)
	f.setUint(accountKey(account, "depositedStable"), a.DepositedStablecoin)
	f.setUint(accountKey(account, "depositedLP"), a.DepositedLP)
	f.setUint(accountKey(account, "wrapped"), a.Wrapped)
	f.setUint32(accountKey(account, "lastUpdate"), a.LastUpdate)
}

// =========================================================================
// Crates, Withdrawals and Plots
// =========================================================================

func crateKey(prefix []byte, account common.Address, season uint32) common.Hash {
	return state.Key(prefix, account.Bytes(), state.Uint32Bytes(season))
}

func (f *Farm) stableCrate(account common.Address, season uint32) *uint256.Int {
	return f.getUint(crateKey(stableCratePrefix, account, season))
}

func (f *Farm) setStableCrate(account common.Address, season uint32, amount *uint256.Int) {
	f.setUint(crateKey(stableCratePrefix, account, season), amount)
}

func (f *Farm) lpCrate(account common.Address, season uint32) (*uint256.Int, *uint256.Int) {
	return f.getUint(crateKey(lpCratePrefix, account, season)),
		f.getUint(crateKey(lpSeedsPrefix, account, season))
}

func (f *Farm) setLPCrate(account common.Address, season uint32, lp, seeds *uint256.Int) {
	f.setUint(crateKey(lpCratePrefix, account, season), lp)
	f.setUint(crateKey(lpSeedsPrefix, account, season), seeds)
}

func withdrawalKey(account common.Address, asset AssetType, season uint32) common.Hash {
	return state.Key(withdrawalPrefix, account.Bytes(), []byte{byte(asset)}, state.Uint32Bytes(season))
}

func (f *Farm) withdrawal(account common.Address, asset AssetType, season uint32) *uint256.Int {
	return f.getUint(withdrawalKey(account, asset, season))
}

func (f *Farm) setWithdrawal(account common.Address, asset AssetType, season uint32, amount *uint256.Int) {
	f.setUint(withdrawalKey(account, asset, season), amount)
}

func plotKey(account common.Address, index *uint256.Int) common.Hash {
	b := index.Bytes32()
	return state.Key(plotPrefix, account.Bytes(), b[:])
}

func (f *Farm) plot(account common.Address, index *uint256.Int) *uint256.Int {
	return f.getUint(plotKey(account, index))
}

func (f *Farm) setPlot(account common.Address, index, amount *uint256.Int) {
	f.setUint(plotKey(account, index), amount)
}
