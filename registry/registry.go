// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry assigns addresses to the farm's modules.
package registry

import (
	"github.com/luxfi/geth/common"
)

// ============================================================================
// MODULE ADDRESS SCHEME
// ============================================================================
//
// Farm modules use trailing-significant 20-byte addresses:
//   Format: 0x00000000000000000000000000000000000091II
//
//   0x 0000...0000 9 1 II
//                  │ │ └┴─ Module item (8 bits)
//                  │ └──── Farm family (always 1)
//                  └────── Markets page (always 9)
//
// Every module shares the farm's storage; the address only routes calls.

const (
	// Page and family nibbles of every farm module
	MarketsPage uint8 = 9
	FarmFamily  uint8 = 1
)

const (
	SeasonModule  = "0x0000000000000000000000000000000000009100" // season scheduler
	SiloModule    = "0x0000000000000000000000000000000000009101" // deposits and withdrawals
	FieldModule   = "0x0000000000000000000000000000000000009102" // soil and pods
	ConvertModule = "0x0000000000000000000000000000000000009103" // deposit converts
	ClaimModule   = "0x0000000000000000000000000000000000009104" // claims and wrapped balances
	ViewModule    = "0x0000000000000000000000000000000000009105" // read-only queries
)

// ModuleInfo contains metadata about a farm module
type ModuleInfo struct {
	Address     string
	Name        string
	Description string
}

// AllModules lists the farm modules
var AllModules = []ModuleInfo{
	{SeasonModule, "season", "Season transitions, oracle sampling and weather"},
	{SiloModule, "silo", "Stablecoin and LP deposits, withdrawals and vesting"},
	{FieldModule, "field", "Sowing soil for pods and harvesting"},
	{ConvertModule, "convert", "Peg-restoring converts between deposit types"},
	{ClaimModule, "claim", "Claims, allocation and wrapped balances"},
	{ViewModule, "view", "Read-only farm queries"},
}

// ModuleAddress calculates the address of farm module item ii
func ModuleAddress(ii uint8) common.Address {
	var addr common.Address
	addr[common.AddressLength-2] = MarketsPage<<4 | FarmFamily
	addr[common.AddressLength-1] = ii
	return addr
}

// GetModuleAddress returns the address for a module by name, or the zero
// address when the name is unknown
func GetModuleAddress(name string) common.Address {
	for _, m := range AllModules {
		if m.Name == name {
			return common.HexToAddress(m.Address)
		}
	}
	return common.Address{}
}

// GetModuleInfo returns the metadata of the module at addr
func GetModuleInfo(addr common.Address) (ModuleInfo, bool) {
	for _, m := range AllModules {
		if common.HexToAddress(m.Address) == addr {
			return m, true
		}
	}
	return ModuleInfo{}, false
}
