// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/farm/state"
)

var (
	testToken = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testUser1 = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testUser2 = common.HexToAddress("0x6666666666666666666666666666666666666666")
)

func TestLedger_MintBurn(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(state.NewMemoryStore())

	require.NoError(t, l.Mint(ctx, testToken, testUser1, uint256.NewInt(1000)))
	require.Equal(t, uint64(1000), l.BalanceOf(testToken, testUser1).Uint64())
	require.Equal(t, uint64(1000), l.TotalSupply(testToken).Uint64())

	require.NoError(t, l.Burn(ctx, testToken, testUser1, uint256.NewInt(400)))
	require.Equal(t, uint64(600), l.BalanceOf(testToken, testUser1).Uint64())
	require.Equal(t, uint64(600), l.TotalSupply(testToken).Uint64())

	err := l.Burn(ctx, testToken, testUser1, uint256.NewInt(601))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.ErrorIs(t, l.Mint(ctx, testToken, common.Address{}, uint256.NewInt(1)), ErrZeroAddress)
}

func TestLedger_Transfer(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(state.NewMemoryStore())
	require.NoError(t, l.Mint(ctx, testToken, testUser1, uint256.NewInt(1000)))

	require.NoError(t, l.Transfer(ctx, testToken, testUser1, testUser2, uint256.NewInt(250)))
	require.Equal(t, uint64(750), l.BalanceOf(testToken, testUser1).Uint64())
	require.Equal(t, uint64(250), l.BalanceOf(testToken, testUser2).Uint64())
	require.Equal(t, uint64(1000), l.TotalSupply(testToken).Uint64())

	err := l.Transfer(ctx, testToken, testUser2, testUser1, uint256.NewInt(251))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint64(250), l.BalanceOf(testToken, testUser2).Uint64())
}

func TestLedger_HookFailureReverts(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	l := NewLedger(store)
	require.NoError(t, l.Mint(ctx, testToken, testUser1, uint256.NewInt(1000)))

	errBlocked := errors.New("blocked")
	var seen int
	l.OnTransfer(func(_ context.Context, token, from, to common.Address, amount *uint256.Int) error {
		seen++
		if to == testUser2 {
			return errBlocked
		}
		return nil
	})

	snap := store.Snapshot()
	err := l.Transfer(ctx, testToken, testUser1, testUser2, uint256.NewInt(10))
	require.ErrorIs(t, err, errBlocked)
	store.RevertToSnapshot(snap)

	require.Equal(t, 1, seen)
	require.Equal(t, uint64(1000), l.BalanceOf(testToken, testUser1).Uint64())
	require.True(t, l.BalanceOf(testToken, testUser2).IsZero())
}
