package bplus

import (
	"errors"

	"minidb/storage_engine/bufferpool"
	"minidb/storage_engine/catalog"
	"minidb/types"
)

/*
Persistent B+ tree over the blocks of one index file. Node pages go through
the shared buffer pool like every other block; the tree never touches the
disk manager directly, so pinning and eviction compose with the record
manager's traffic.

The tree's durable metadata (root, leaf head, rubbish chain, key count,
level, node count, rank) lives in the catalog's Index struct; operations
mutate it through the pointer and the statement boundary's archive write
persists it.
*/

var (
	// ErrDuplicateKey is returned by Add when the key is already present.
	// Indexes are unique by design: one locator per key.
	ErrDuplicateKey = errors.New("duplicate index key")

	// ErrKeyNotFound is returned by Remove and UpdateVal for absent keys.
	ErrKeyNotFound = errors.New("key not in index")
)

// Locator identifies one record slot: block number within the owning
// table's record file and slot offset within that block. Two explicit
// fields, so neither is capped at 16 bits.
type Locator struct {
	Block  int32
	Offset int32
}

type BPlusTree struct {
	idx    *catalog.Index
	fileID uint32
	pool   *bufferpool.BufferPool
}

// Open binds a tree to its catalog metadata and its already-open index
// file. Cheap: trees are opened per operation, the way the record manager
// uses them.
func Open(idx *catalog.Index, fileID uint32, pool *bufferpool.BufferPool) *BPlusTree {
	return &BPlusTree{idx: idx, fileID: fileID, pool: pool}
}

// ComputeRank derives the fanout from the key length: one node must hold
// rank keys plus, in the worst (leaf) case, rank locators, after the node
// type flag and the trailing child slot are paid for.
func ComputeRank(keyLen int) int {
	return (types.BlockPayloadSize - nodeTypeSize - childSize) / (keyLen + locatorSize)
}

// node is the in-memory image of one node block. Decoded on fetch, encoded
// on write; never aliases frame memory, so holding several nodes across
// pool calls is safe.
type node struct {
	blockNum int32
	leaf     bool
	parent   int32
	next     int32 // right sibling for leaves, -1 for internals

	keys     []types.TKey
	children []int32   // internal: len(keys)+1
	locs     []Locator // leaf: len(keys)
}
