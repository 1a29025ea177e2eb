// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/luxfi/geth/common"
)

func TestModuleAddress(t *testing.T) {
	for i, m := range AllModules {
		want := common.HexToAddress(m.Address)
		if got := ModuleAddress(uint8(i)); got != want {
			t.Errorf("module %s: expected %s, got %s", m.Name, want.Hex(), got.Hex())
		}
	}
}

func TestGetModuleAddress(t *testing.T) {
	if got := GetModuleAddress("silo"); got != common.HexToAddress(SiloModule) {
		t.Errorf("expected silo at %s, got %s", SiloModule, got.Hex())
	}
	if got := GetModuleAddress("unknown"); got != (common.Address{}) {
		t.Errorf("expected zero address, got %s", got.Hex())
	}

	info, ok := GetModuleInfo(common.HexToAddress(ConvertModule))
	if !ok || info.Name != "convert" {
		t.Errorf("expected convert module, got %+v", info)
	}
	if _, ok := GetModuleInfo(ModuleAddress(0xff)); ok {
		t.Errorf("expected no module at %s", ModuleAddress(0xff).Hex())
	}
}
