// Package kura implements durable block storage: the persistence
// boundary spec.md's error-handling section calls Kura ("a Fatal
// Kura persist failure stops consensus participation"). It backs
// blocksync.Ledger directly, so the block synchronizer answers
// GetBlocksAfter from the same store the engine commits into.
package kura

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/sumeragi/block"
	"github.com/luxfi/sumeragi/codec"
)

const (
	prefixBlockByHeight = 'h' // height(8 bytes BE) -> encoded SignedBlock
	prefixHeightByHash  = 'i' // hash(32 bytes) -> height(8 bytes BE)
)

var keyHeadHeight = []byte("head_height")

// Store persists committed blocks to db, keyed by height with a
// secondary hash->height index, so both block-sync's height-ordered
// replay and its hash-based overlap check are cheap lookups.
type Store struct {
	db database.Database
}

// New wraps db as a Store. db is expected to already be open; Store
// does not own its lifecycle.
func New(db database.Database) *Store {
	return &Store{db: db}
}

func heightKey(height uint64) []byte {
	key := make([]byte, 1+8)
	key[0] = prefixBlockByHeight
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

func hashKey(hash ids.ID) []byte {
	key := make([]byte, 1+len(hash))
	key[0] = prefixHeightByHash
	copy(key[1:], hash[:])
	return key
}

// PutBlock durably writes a newly committed block and advances the
// stored head height. Called from the engine's commit path
// (spec.md §4.5 Commit: "persist before notifying collaborators");
// a failure here is the Fatal error class — the caller must stop
// participating in consensus rather than continue on unpersisted state.
func (s *Store) PutBlock(b block.SignedBlock) error {
	encoded, err := codec.WireCodec.Marshal(b)
	if err != nil {
		return fmt.Errorf("kura: encode block at height %d: %w", b.Header.Height, err)
	}
	if err := s.db.Put(heightKey(b.Header.Height), encoded); err != nil {
		return fmt.Errorf("kura: persist block at height %d: %w", b.Header.Height, err)
	}

	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, b.Header.Height)
	if err := s.db.Put(hashKey(b.Header.Hash), heightBytes); err != nil {
		return fmt.Errorf("kura: index block hash at height %d: %w", b.Header.Height, err)
	}

	if err := s.db.Put(keyHeadHeight, heightBytes); err != nil {
		return fmt.Errorf("kura: advance head pointer to height %d: %w", b.Header.Height, err)
	}
	return nil
}

// BlockAtHeight implements blocksync.Ledger.
func (s *Store) BlockAtHeight(height uint64) (block.SignedBlock, bool) {
	raw, err := s.db.Get(heightKey(height))
	if err != nil {
		return block.SignedBlock{}, false
	}
	var out block.SignedBlock
	if err := codec.WireCodec.Unmarshal(raw, &out); err != nil {
		return block.SignedBlock{}, false
	}
	return out, true
}

// HeightOfHash implements blocksync.Ledger.
func (s *Store) HeightOfHash(hash ids.ID) (uint64, bool) {
	raw, err := s.db.Get(hashKey(hash))
	if err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(raw), true
}

// HeadHash implements blocksync.Ledger.
func (s *Store) HeadHash() ids.ID {
	raw, err := s.db.Get(keyHeadHeight)
	if err != nil {
		return ids.ID{}
	}
	height := binary.BigEndian.Uint64(raw)
	b, ok := s.BlockAtHeight(height)
	if !ok {
		return ids.ID{}
	}
	return b.Header.Hash
}
