// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
)

// DefaultCacheSize is the number of committed slots kept in the read cache
const DefaultCacheSize = 4096

var ErrInvalidSnapshot = errors.New("state: invalid snapshot id")

type slotID struct {
	addr common.Address
	key  common.Hash
}

// bytes returns the database key for a slot: address || key
func (s slotID) bytes() []byte {
	b := make([]byte, 0, common.AddressLength+common.HashLength)
	b = append(b, s.addr.Bytes()...)
	return append(b, s.key.Bytes()...)
}

// journalEntry records the dirty value a write replaced
type journalEntry struct {
	slot     slotID
	prev     common.Hash
	hadDirty bool
}

// Store is a journaled StateDB backed by a luxfi/database.
// Writes stay in a dirty set until Commit, reads of committed slots go
// through an LRU cache in front of the database.
type Store struct {
	mu sync.RWMutex

	db    database.Database
	cache *lru.Cache[slotID, common.Hash]

	// dirty holds uncommitted writes
	dirty map[slotID]common.Hash

	// journal lists every write since the last commit, for reverts
	journal []journalEntry

	// readErr is the first backend read failure since the last Commit
	errMu   sync.Mutex
	readErr error
}

var (
	_ StateDB   = (*Store)(nil)
	_ Committer = (*Store)(nil)
)

// NewStore creates a store over db with a read cache of cacheSize slots
func NewStore(db database.Database, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[slotID, common.Hash](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("state: create cache: %w", err)
	}
	return &Store{
		db:    db,
		cache: cache,
		dirty: make(map[slotID]common.Hash),
	}, nil
}

// NewMemoryStore creates a store backed by an in-memory database
func NewMemoryStore() *Store {
	s, err := NewStore(memdb.New(), DefaultCacheSize)
	if err != nil {
		// only reachable with a non-positive cache size
		panic(err)
	}
	return s
}

// GetState returns the current value of a slot, including uncommitted writes
func (s *Store) GetState(addr common.Address, key common.Hash) common.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(slotID{addr, key})
}

func (s *Store) get(id slotID) common.Hash {
	if v, ok := s.dirty[id]; ok {
		return v
	}
	return s.committed(id)
}

// committed reads a slot from the cache or the database
func (s *Store) committed(id slotID) common.Hash {
	if v, ok := s.cache.Get(id); ok {
		return v
	}
	var v common.Hash
	raw, err := s.db.Get(id.bytes())
	switch {
	case err == nil:
		copy(v[common.HashLength-len(raw):], raw)
	case errors.Is(err, database.ErrNotFound):
	default:
		// the slot reads as empty and the next Commit fails
		s.errMu.Lock()
		if s.readErr == nil {
			s.readErr = fmt.Errorf("state: read slot %s/%s: %w", id.addr.Hex(), id.key.Hex(), err)
		}
		s.errMu.Unlock()
		return v
	}
	s.cache.Add(id, v)
	return v
}

// SetState writes a slot and journals the previous dirty value
func (s *Store) SetState(addr common.Address, key common.Hash, value common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := slotID{addr, key}
	prev, hadDirty := s.dirty[id]
	s.journal = append(s.journal, journalEntry{slot: id, prev: prev, hadDirty: hadDirty})
	s.dirty[id] = value
}

// Snapshot returns an identifier for the current revision
func (s *Store) Snapshot() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.journal)
}

// RevertToSnapshot undoes every write made after the snapshot was taken
func (s *Store) RevertToSnapshot(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id > len(s.journal) {
		panic(fmt.Errorf("%w: %d (journal length %d)", ErrInvalidSnapshot, id, len(s.journal)))
	}
	for i := len(s.journal) - 1; i >= id; i-- {
		e := s.journal[i]
		if e.hadDirty {
			s.dirty[e.slot] = e.prev
		} else {
			delete(s.dirty, e.slot)
		}
	}
	s.journal = s.journal[:id]
}

// Commit flushes uncommitted writes to the database in one batch.
// Snapshots taken before Commit are invalidated. If a read failed since the
// last Commit, nothing is written and the read error is returned; the caller
// is expected to revert.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMu.Lock()
	readErr := s.readErr
	s.readErr = nil
	s.errMu.Unlock()
	if readErr != nil {
		return readErr
	}

	if len(s.dirty) == 0 {
		s.journal = s.journal[:0]
		return nil
	}

	batch := s.db.NewBatch()
	for id, v := range s.dirty {
		var err error
		if v == (common.Hash{}) {
			err = batch.Delete(id.bytes())
		} else {
			err = batch.Put(id.bytes(), v.Bytes())
		}
		if err != nil {
			return fmt.Errorf("state: stage slot: %w", err)
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: write batch: %w", err)
	}

	for id, v := range s.dirty {
		s.cache.Add(id, v)
	}
	s.dirty = make(map[slotID]common.Hash)
	s.journal = s.journal[:0]
	return nil
}

// Pending returns the number of uncommitted slots
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty)
}
