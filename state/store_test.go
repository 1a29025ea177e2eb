// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	testAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testOther = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestKeyIsDeterministic(t *testing.T) {
	a := Key([]byte("silo/crate"), testAddr.Bytes(), Uint32Bytes(2))
	b := Key([]byte("silo/crate"), testAddr.Bytes(), Uint32Bytes(2))
	c := Key([]byte("silo/crate"), testAddr.Bytes(), Uint32Bytes(3))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, a, Key([]byte("silo/crate"), testOther.Bytes(), Uint32Bytes(2)))
}

func TestStore_GetSet(t *testing.T) {
	s := NewMemoryStore()
	key := Key([]byte("k"))

	require.Equal(t, common.Hash{}, s.GetState(testAddr, key))

	SetUint(s, testAddr, key, uint256.NewInt(1000))
	require.Equal(t, uint64(1000), GetUint(s, testAddr, key).Uint64())
	require.True(t, GetUint(s, testOther, key).IsZero())

	SetUint64(s, testAddr, Key([]byte("n")), 42)
	require.Equal(t, uint64(42), GetUint64(s, testAddr, Key([]byte("n"))))

	SetBool(s, testAddr, Key([]byte("b")), true)
	require.True(t, GetBool(s, testAddr, Key([]byte("b"))))
}

func TestStore_RevertToSnapshot(t *testing.T) {
	s := NewMemoryStore()
	key := Key([]byte("k"))

	SetUint(s, testAddr, key, uint256.NewInt(1))
	outer := s.Snapshot()
	SetUint(s, testAddr, key, uint256.NewInt(2))
	inner := s.Snapshot()
	SetUint(s, testAddr, key, uint256.NewInt(3))
	SetUint(s, testOther, key, uint256.NewInt(9))

	s.RevertToSnapshot(inner)
	require.Equal(t, uint64(2), GetUint(s, testAddr, key).Uint64())
	require.True(t, GetUint(s, testOther, key).IsZero())

	s.RevertToSnapshot(outer)
	require.Equal(t, uint64(1), GetUint(s, testAddr, key).Uint64())

	s.RevertToSnapshot(0)
	require.True(t, GetUint(s, testAddr, key).IsZero())
	require.Equal(t, 0, s.Pending())
}

func TestStore_RevertInvalidSnapshot(t *testing.T) {
	s := NewMemoryStore()
	require.Panics(t, func() { s.RevertToSnapshot(5) })
}

func TestStore_CommitPersists(t *testing.T) {
	db := memdb.New()
	s, err := NewStore(db, 16)
	require.NoError(t, err)

	key := Key([]byte("total"))
	SetUint(s, testAddr, key, uint256.NewInt(10_000_000))
	require.Equal(t, 1, s.Pending())
	require.NoError(t, s.Commit())
	require.Equal(t, 0, s.Pending())

	// a fresh store over the same database sees the committed value
	reopened, err := NewStore(db, 16)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000), GetUint(reopened, testAddr, key).Uint64())

	// reverting after a commit cannot undo committed writes
	snap := s.Snapshot()
	SetUint(s, testAddr, key, uint256.NewInt(1))
	s.RevertToSnapshot(snap)
	require.Equal(t, uint64(10_000_000), GetUint(s, testAddr, key).Uint64())
}

func TestStore_CommitZeroDeletes(t *testing.T) {
	db := memdb.New()
	s, err := NewStore(db, 16)
	require.NoError(t, err)

	key := Key([]byte("crate"))
	SetUint(s, testAddr, key, uint256.NewInt(5))
	require.NoError(t, s.Commit())

	SetUint(s, testAddr, key, nil)
	require.NoError(t, s.Commit())

	has, err := db.Has(slotID{testAddr, key}.bytes())
	require.NoError(t, err)
	require.False(t, has)
	require.True(t, GetUint(s, testAddr, key).IsZero())
}

// flakyDB fails every read while down is set
type flakyDB struct {
	database.Database
	down bool
}

var errBackendDown = errors.New("backend down")

func (d *flakyDB) Get(key []byte) ([]byte, error) {
	if d.down {
		return nil, errBackendDown
	}
	return d.Database.Get(key)
}

func TestStore_ReadFailureFailsCommit(t *testing.T) {
	db := &flakyDB{Database: memdb.New()}
	s, err := NewStore(db, 0)
	require.NoError(t, err)
	key := Key([]byte("balance"))

	SetUint(s, testAddr, key, uint256.NewInt(500))
	require.NoError(t, s.Commit())

	// An uncached slot cannot be read while the backend is down
	db.down = true
	other := Key([]byte("other"))
	snap := s.Snapshot()
	require.True(t, GetUint(s, testAddr, other).IsZero())
	SetUint(s, testAddr, other, uint256.NewInt(7))

	err = s.Commit()
	require.ErrorIs(t, err, errBackendDown)
	s.RevertToSnapshot(snap)
	require.Zero(t, s.Pending())

	// Nothing derived from the failed read was written
	db.down = false
	require.True(t, GetUint(s, testAddr, other).IsZero())
	require.Equal(t, uint64(500), GetUint(s, testAddr, key).Uint64())
	require.NoError(t, s.Commit())
}

func BenchmarkStore_SetCommit(b *testing.B) {
	s := NewMemoryStore()
	v := uint256.NewInt(7)
	for i := 0; i < b.N; i++ {
		SetUint(s, testAddr, Key([]byte("bench"), Uint64Bytes(uint64(i%1024))), v)
		if i%64 == 0 {
			_ = s.Commit()
		}
	}
}
