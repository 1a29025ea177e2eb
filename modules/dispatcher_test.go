// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/farm/registry"
)

var (
	testCaller = common.HexToAddress("0x5555555555555555555555555555555555555555")
	seasonAddr = common.HexToAddress("0x0000000000000000000000000000000000009100")
	siloAddr   = common.HexToAddress("0x0000000000000000000000000000000000009101")
)

func echo(tag string) Handler {
	return Bind(func(_ context.Context, _ common.Address, in string) (string, error) {
		return tag + ":" + in, nil
	})
}

func TestAddressRangeContains(t *testing.T) {
	r := reservedRanges[0]
	require.True(t, r.Contains(seasonAddr))
	require.True(t, r.Contains(common.HexToAddress("0x00000000000000000000000000000000000091ff")))
	require.False(t, r.Contains(common.HexToAddress("0x0000000000000000000000000000000000009200")))
	require.False(t, ReservedAddress(common.Address{}))
	require.True(t, ReservedAddress(registry.ModuleAddress(0x42)))
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name string
		mods []Module
	}{
		{
			name: "registered to another module",
			mods: []Module{{Name: "silo", Address: seasonAddr, Handlers: map[string]Handler{"x": echo("a")}}},
		},
		{
			name: "unreserved",
			mods: []Module{{Name: "a", Address: testCaller, Handlers: map[string]Handler{"x": echo("a")}}},
		},
		{
			name: "empty",
			mods: []Module{{Name: "a", Address: seasonAddr}},
		},
		{
			name: "duplicate name",
			mods: []Module{
				{Name: "a", Address: seasonAddr, Handlers: map[string]Handler{"x": echo("a")}},
				{Name: "a", Address: siloAddr, Handlers: map[string]Handler{"y": echo("a")}},
			},
		},
		{
			name: "duplicate address",
			mods: []Module{
				{Name: "a", Address: seasonAddr, Handlers: map[string]Handler{"x": echo("a")}},
				{Name: "b", Address: seasonAddr, Handlers: map[string]Handler{"y": echo("b")}},
			},
		},
		{
			name: "duplicate operation",
			mods: []Module{
				{Name: "a", Address: seasonAddr, Handlers: map[string]Handler{"x": echo("a")}},
				{Name: "b", Address: siloAddr, Handlers: map[string]Handler{"x": echo("b")}},
			},
		},
		{
			name: "nil handler",
			mods: []Module{{Name: "a", Address: seasonAddr, Handlers: map[string]Handler{"x": nil}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(1, tt.mods...)
			require.Error(t, err)
		})
	}
}

func TestTableSortedByAddress(t *testing.T) {
	tbl, err := NewTable(1,
		Module{Name: "silo", Address: siloAddr, Handlers: map[string]Handler{"deposit": echo("silo")}},
		Module{Name: "season", Address: seasonAddr, Handlers: map[string]Handler{"advance": echo("season")}},
	)
	require.NoError(t, err)

	mods := tbl.Modules()
	require.Len(t, mods, 2)
	require.Equal(t, "season", mods[0].Name)
	require.Equal(t, "silo", mods[1].Name)
	require.Equal(t, []string{"advance", "deposit"}, tbl.Operations())

	stm, ok := tbl.ModuleByName("silo")
	require.True(t, ok)
	require.Equal(t, siloAddr, stm.Address)
	_, ok = tbl.ModuleByAddress(testCaller)
	require.False(t, ok)
}

func TestDispatcherCall(t *testing.T) {
	tbl, err := NewTable(1, Module{Name: "season", Address: seasonAddr, Handlers: map[string]Handler{"advance": echo("v1")}})
	require.NoError(t, err)
	d := NewDispatcher(tbl, log.NewTestLogger(log.InfoLevel))
	ctx := context.Background()

	out, err := d.Call(ctx, "advance", testCaller, "go")
	require.NoError(t, err)
	require.Equal(t, "v1:go", out)

	_, err = d.Call(ctx, "missing", testCaller, "go")
	require.ErrorIs(t, err, ErrUnknownOperation)

	_, err = d.Call(ctx, "advance", testCaller, 42)
	require.ErrorIs(t, err, ErrBadInput)

	out, err = d.CallModule(ctx, seasonAddr, "advance", testCaller, "x")
	require.NoError(t, err)
	require.Equal(t, "v1:x", out)

	_, err = d.CallModule(ctx, siloAddr, "advance", testCaller, "x")
	require.ErrorIs(t, err, ErrUnknownModule)
}

func TestDispatcherUpgrade(t *testing.T) {
	v1, err := NewTable(1, Module{Name: "season", Address: seasonAddr, Handlers: map[string]Handler{"advance": echo("v1")}})
	require.NoError(t, err)
	v2, err := NewTable(2, Module{Name: "season", Address: seasonAddr, Handlers: map[string]Handler{"advance": echo("v2")}})
	require.NoError(t, err)

	d := NewDispatcher(v1, nil)
	ctx := context.Background()

	require.NoError(t, d.Upgrade(ctx, v2))
	require.Equal(t, uint64(2), d.Table().Version())

	out, err := d.Call(ctx, "advance", testCaller, "go")
	require.NoError(t, err)
	require.Equal(t, "v2:go", out)

	// Same or older versions are rejected
	require.ErrorIs(t, d.Upgrade(ctx, v1), ErrStaleVersion)
	require.ErrorIs(t, d.Upgrade(ctx, v2), ErrStaleVersion)
	require.ErrorIs(t, d.Upgrade(ctx, nil), ErrNoTable)
}

func TestDispatcherUpgradeInCall(t *testing.T) {
	var d *Dispatcher
	var upgradeErr error

	v3, err := NewTable(3, Module{Name: "season", Address: seasonAddr, Handlers: map[string]Handler{"advance": echo("v3")}})
	require.NoError(t, err)
	v1, err := NewTable(1, Module{
		Name:    "season",
		Address: seasonAddr,
		Handlers: map[string]Handler{
			"advance": Bind(func(ctx context.Context, _ common.Address, in string) (string, error) {
				upgradeErr = d.Upgrade(ctx, v3)
				return "v1:" + in, nil
			}),
		},
	})
	require.NoError(t, err)
	d = NewDispatcher(v1, nil)

	// The running call keeps its table and cannot swap it
	out, err := d.Call(context.Background(), "advance", testCaller, "go")
	require.NoError(t, err)
	require.Equal(t, "v1:go", out)
	require.ErrorIs(t, upgradeErr, ErrUpgradeInCall)
	require.Equal(t, uint64(1), d.Table().Version())
}

func TestDispatcherHandlerError(t *testing.T) {
	boom := errors.New("boom")
	tbl, err := NewTable(1, Module{
		Name:    "season",
		Address: seasonAddr,
		Handlers: map[string]Handler{
			"fail": Bind(func(context.Context, common.Address, struct{}) (any, error) { return nil, boom }),
		},
	})
	require.NoError(t, err)

	_, err = NewDispatcher(tbl, nil).Call(context.Background(), "fail", testCaller, struct{}{})
	require.ErrorIs(t, err, boom)
}

func TestDispatcherNoTable(t *testing.T) {
	d := NewDispatcher(nil, nil)
	_, err := d.Call(context.Background(), "advance", testCaller, "go")
	require.ErrorIs(t, err, ErrNoTable)
}
