// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package farm

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
)

// AssetType tells stablecoin and LP crates apart
type AssetType uint8

const (
	AssetStablecoin AssetType = iota
	AssetLP
)

func (a AssetType) String() string {
	if a == AssetLP {
		return "lp"
	}
	return "stablecoin"
}

// Event is emitted by a successful call
type Event interface {
	EventName() string
}

// SeasonAdvanced reports a completed season transition
type SeasonAdvanced struct {
	Season           uint32
	Case             SupplyCase
	Price            *uint256.Int
	DeltaSoil        *big.Int
	DeltaHarvestable *uint256.Int
	DeltaFarmable    *uint256.Int
	Reward           *uint256.Int
}

// WeatherChanged reports the weather step of a transition
type WeatherChanged struct {
	Season  uint32
	CaseID  uint8
	Change  int32
	Weather uint32
}

// Deposited reports a crate deposit
type Deposited struct {
	Account common.Address
	Type    AssetType
	Season  uint32
	Amount  *uint256.Int
	Seeds   *uint256.Int
}

// Removed reports crates removed by a withdrawal or convert along with the
// stalk and seeds forfeited
type Removed struct {
	Account common.Address
	Type    AssetType
	Seasons []uint32
	Amounts []*uint256.Int
	Total   *uint256.Int
	Stalk   *uint256.Int
	Seeds   *uint256.Int
}

// Sown reports a sow
type Sown struct {
	Account  common.Address
	Index    *uint256.Int
	Sown     *uint256.Int
	Pods     *uint256.Int
	Weather  uint32
	SowTime  uint32
	SoilLeft *uint256.Int
}

// Harvested reports a harvest
type Harvested struct {
	Account common.Address
	Plots   []*uint256.Int
	Amount  *uint256.Int
}

// Converted reports a convert between deposit types
type Converted struct {
	Account common.Address
	From    AssetType
	In      *uint256.Int
	Out     *uint256.Int
	Season  uint32
}

// Claimed reports funds released from withdrawals and plots
type Claimed struct {
	Account common.Address
	Amount  *uint256.Int
	Wrapped bool
}

// Allocated reports stablecoin taken from claimed and wrapped funds
type Allocated struct {
	Account common.Address
	Amount  *uint256.Int
}

func (SeasonAdvanced) EventName() string { return "SeasonAdvanced" }
func (WeatherChanged) EventName() string { return "WeatherChanged" }
func (Deposited) EventName() string      { return "Deposited" }
func (Removed) EventName() string        { return "Removed" }
func (Sown) EventName() string           { return "Sown" }
func (Harvested) EventName() string      { return "Harvested" }
func (Converted) EventName() string      { return "Converted" }
func (Claimed) EventName() string        { return "Claimed" }
func (Allocated) EventName() string      { return "Allocated" }

// EventSink receives the events of each successful call, in order
type EventSink interface {
	Publish(events []Event)
}

// EventLog is an in-memory sink
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements EventSink
func (l *EventLog) Publish(events []Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
}

// Events returns a copy of everything published so far
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Reset drops recorded events
func (l *EventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// logSink writes events to a logger at debug level
type logSink struct {
	log log.Logger
}

func (s logSink) Publish(events []Event) {
	for _, ev := range events {
		s.log.Debug("farm event", "name", ev.EventName(), "event", ev)
	}
}
