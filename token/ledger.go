// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements a multi-token balance ledger over the shared
// state store. Every token keeps its balances and total supply in its own
// storage, so ledger writes revert together with the rest of a call.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/farm/state"
)

// Storage key prefixes for ledger state
var (
	balancePrefix = []byte("tok/bal")
	supplyPrefix  = []byte("tok/sup")
)

var (
	ErrInsufficientBalance = errors.New("token: transfer amount exceeds balance")
	ErrSupplyOverflow      = errors.New("token: total supply overflow")
	ErrZeroAddress         = errors.New("token: zero address")
)

// Hook observes a balance movement after it is applied.
// Mints have a zero from address and burns a zero to address.
// A hook error fails the movement and the enclosing call.
type Hook func(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error

// Ledger tracks fungible balances for any number of token addresses
type Ledger struct {
	mu sync.RWMutex

	stateDB state.StateDB
	hooks   []Hook
}

// NewLedger creates a ledger storing balances in stateDB
func NewLedger(stateDB state.StateDB) *Ledger {
	return &Ledger{stateDB: stateDB}
}

// OnTransfer registers a hook invoked after every balance movement
func (l *Ledger) OnTransfer(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

func balanceKey(account common.Address) common.Hash {
	return state.Key(balancePrefix, account.Bytes())
}

func supplyKey() common.Hash {
	return state.Key(supplyPrefix)
}

// BalanceOf returns the balance of account in token
func (l *Ledger) BalanceOf(token, account common.Address) *uint256.Int {
	return state.GetUint(l.stateDB, token, balanceKey(account))
}

// TotalSupply returns the circulating supply of token
func (l *Ledger) TotalSupply(token common.Address) *uint256.Int {
	return state.GetUint(l.stateDB, token, supplyKey())
}

// Mint creates amount of token for to
func (l *Ledger) Mint(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, overflow := new(uint256.Int).AddOverflow(l.TotalSupply(token), amount)
	if overflow {
		return ErrSupplyOverflow
	}
	state.SetUint(l.stateDB, token, supplyKey(), supply)
	l.credit(token, to, amount)
	return l.notify(ctx, token, common.Address{}, to, amount)
}

// Burn destroys amount of token held by from
func (l *Ledger) Burn(ctx context.Context, token, from common.Address, amount *uint256.Int) error {
	if err := l.debit(token, from, amount); err != nil {
		return err
	}
	state.SetUint(l.stateDB, token, supplyKey(), new(uint256.Int).Sub(l.TotalSupply(token), amount))
	return l.notify(ctx, token, from, common.Address{}, amount)
}

// Transfer moves amount of token from one account to another
func (l *Ledger) Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := l.debit(token, from, amount); err != nil {
		return err
	}
	l.credit(token, to, amount)
	return l.notify(ctx, token, from, to, amount)
}

func (l *Ledger) debit(token, from common.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(token, from)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: token=%s, account=%s, balance=%s, amount=%s",
			ErrInsufficientBalance, token.Hex(), from.Hex(), bal.Dec(), amount.Dec())
	}
	state.SetUint(l.stateDB, token, balanceKey(from), new(uint256.Int).Sub(bal, amount))
	return nil
}

func (l *Ledger) credit(token, to common.Address, amount *uint256.Int) {
	state.SetUint(l.stateDB, token, balanceKey(to), new(uint256.Int).Add(l.BalanceOf(token, to), amount))
}

func (l *Ledger) notify(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, h := range hooks {
		if err := h(ctx, token, from, to, amount); err != nil {
			return err
		}
	}
	return nil
}
