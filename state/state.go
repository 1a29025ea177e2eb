// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state provides the shared persistent storage area every farm
// module reads and writes. Slots are 32 byte words addressed by a contract
// address and a blake3 derived key, the same layout an EVM precompile uses.
package state

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// StateDB interface for accessing and modifying shared state.
// Snapshot and RevertToSnapshot give callers all-or-nothing semantics.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	Snapshot() int
	RevertToSnapshot(id int)
}

// Committer is implemented by stores that buffer writes until a call completes
type Committer interface {
	Commit() error
}

// Key creates a storage key from a prefix and identifier parts
func Key(prefix []byte, parts ...[]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	for _, p := range parts {
		h.Write(p)
	}
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Uint32Bytes encodes v big endian for use as a key part
func Uint32Bytes(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

// Uint64Bytes encodes v big endian for use as a key part
func Uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// GetUint reads a slot as an unsigned 256 bit integer
func GetUint(db StateDB, addr common.Address, key common.Hash) *uint256.Int {
	v := db.GetState(addr, key)
	return new(uint256.Int).SetBytes32(v[:])
}

// SetUint writes an unsigned 256 bit integer into a slot
func SetUint(db StateDB, addr common.Address, key common.Hash, v *uint256.Int) {
	if v == nil {
		db.SetState(addr, key, common.Hash{})
		return
	}
	db.SetState(addr, key, common.Hash(v.Bytes32()))
}

// GetUint64 reads the low 8 bytes of a slot
func GetUint64(db StateDB, addr common.Address, key common.Hash) uint64 {
	v := db.GetState(addr, key)
	return binary.BigEndian.Uint64(v[24:])
}

// SetUint64 writes v into the low 8 bytes of a slot
func SetUint64(db StateDB, addr common.Address, key common.Hash, v uint64) {
	var h common.Hash
	binary.BigEndian.PutUint64(h[24:], v)
	db.SetState(addr, key, h)
}

// GetBool reads a slot as a flag
func GetBool(db StateDB, addr common.Address, key common.Hash) bool {
	return db.GetState(addr, key)[31] == 1
}

// SetBool writes a flag into a slot
func SetBool(db StateDB, addr common.Address, key common.Hash, v bool) {
	var h common.Hash
	if v {
		h[31] = 1
	}
	db.SetState(addr, key, h)
}
