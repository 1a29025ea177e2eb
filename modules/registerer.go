// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/farm/registry"
)

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// Reserved address ranges for farm modules
//
// 0x9100-0x91FF: Farm (season, silo, field, convert, claim, views)
var reservedRanges = []AddressRange{
	{
		Start: registry.ModuleAddress(0),
		End:   registry.ModuleAddress(0xff),
	},
}

// ReservedAddress returns true if [addr] is in a reserved range for modules
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}

	return false
}

var (
	ErrUnknownOperation = errors.New("modules: unknown operation")
	ErrUnknownModule    = errors.New("modules: unknown module")
	ErrBadInput         = errors.New("modules: input type does not match operation")
	ErrStaleVersion     = errors.New("modules: version must increase")
	ErrUpgradeInCall    = errors.New("modules: upgrade during a call")
	ErrNoTable          = errors.New("modules: no table installed")
)

// Handler serves one operation. input and the result are the operation's
// own request and response types.
type Handler func(ctx context.Context, caller common.Address, input any) (any, error)

// Bind adapts a typed function to a Handler
func Bind[In, Out any](fn func(ctx context.Context, caller common.Address, in In) (Out, error)) Handler {
	return func(ctx context.Context, caller common.Address, input any) (any, error) {
		in, ok := input.(In)
		if !ok {
			var want In
			return nil, fmt.Errorf("%w: got %T, want %T", ErrBadInput, input, want)
		}
		return fn(ctx, caller, in)
	}
}

// Module is a named set of operations served at one address
type Module struct {
	Name     string
	Address  common.Address
	Handlers map[string]Handler
}

type moduleArray []Module

func (m moduleArray) Len() int      { return len(m) }
func (m moduleArray) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address[:], m[j].Address[:]) < 0
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Sort(moduleArray(data))
	return data
}

type route struct {
	module  string
	handler Handler
}

// Table is an immutable module set. Every operation name maps to exactly
// one handler.
type Table struct {
	version uint64
	modules []Module
	routes  map[string]route
}

// NewTable validates mods and builds a table at version
func NewTable(version uint64, mods ...Module) (*Table, error) {
	t := &Table{
		version: version,
		routes:  make(map[string]route),
	}
	for _, stm := range mods {
		if err := t.register(stm); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) register(stm Module) error {
	address := stm.Address
	key := stm.Name

	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}
	if info, ok := registry.GetModuleInfo(address); ok && info.Name != key {
		return fmt.Errorf("address %s is registered to module %s, not %s", address, info.Name, key)
	}
	if len(stm.Handlers) == 0 {
		return fmt.Errorf("module %s has no operations", key)
	}

	for _, registeredModule := range t.modules {
		if registeredModule.Name == key {
			return fmt.Errorf("name %s already used by a module", key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by a module", address)
		}
	}
	for op, h := range stm.Handlers {
		if h == nil {
			return fmt.Errorf("module %s: operation %s has no handler", key, op)
		}
		if r, ok := t.routes[op]; ok {
			return fmt.Errorf("operation %s served by both %s and %s", op, r.module, key)
		}
	}
	for op, h := range stm.Handlers {
		t.routes[op] = route{module: key, handler: h}
	}
	// sort by address to ensure deterministic iteration
	t.modules = insertSortedByAddress(t.modules, stm)
	return nil
}

// Version returns the table version
func (t *Table) Version() uint64 { return t.version }

// Modules returns the modules sorted by address
func (t *Table) Modules() []Module {
	return append([]Module(nil), t.modules...)
}

// Operations returns every operation name in sorted order
func (t *Table) Operations() []string {
	ops := make([]string, 0, len(t.routes))
	for op := range t.routes {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// ModuleByAddress returns the module at address
func (t *Table) ModuleByAddress(address common.Address) (Module, bool) {
	for _, stm := range t.modules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

// ModuleByName returns the module named key
func (t *Table) ModuleByName(key string) (Module, bool) {
	for _, stm := range t.modules {
		if stm.Name == key {
			return stm, true
		}
	}
	return Module{}, false
}
