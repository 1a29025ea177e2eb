// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle exposes cumulative pair prices and turns two cumulative
// samples into a time-weighted average price.
package oracle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var (
	ErrUnknownPair = errors.New("oracle: unknown pair")
	ErrStaleSample = errors.New("oracle: sample did not advance")
	ErrZeroPrice   = errors.New("oracle: zero average price")
)

// Source reports a pair's cumulative price and the time it was observed
type Source interface {
	CumulativePrice() (*uint256.Int, uint64)
}

// Sample is one cumulative price observation
type Sample struct {
	Cumulative *uint256.Int
	Timestamp  uint64
}

// Oracle maps pair addresses to cumulative price sources
type Oracle struct {
	mu      sync.RWMutex
	sources map[common.Address]Source
}

// New creates an empty oracle
func New() *Oracle {
	return &Oracle{sources: make(map[common.Address]Source)}
}

// Register makes pair observable through src
func (o *Oracle) Register(pair common.Address, src Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources[pair] = src
}

// CumulativePrice samples a registered pair
func (o *Oracle) CumulativePrice(pair common.Address) (*uint256.Int, uint64, error) {
	o.mu.RLock()
	src, ok := o.sources[pair]
	o.mu.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownPair, pair.Hex())
	}
	cum, ts := src.CumulativePrice()
	return cum, ts, nil
}

// TWAP returns the average price between two samples.
// Cumulative values are differenced modulo 2^256 so a wrapped accumulator
// still yields the right average.
func TWAP(prev, cur Sample) (*uint256.Int, error) {
	if cur.Timestamp <= prev.Timestamp {
		return nil, fmt.Errorf("%w: previous=%d, current=%d", ErrStaleSample, prev.Timestamp, cur.Timestamp)
	}
	delta := new(uint256.Int).Sub(cur.Cumulative, prev.Cumulative)
	price := delta.Div(delta, uint256.NewInt(cur.Timestamp-prev.Timestamp))
	if price.IsZero() {
		return nil, ErrZeroPrice
	}
	return price, nil
}
