package bplus

import (
	"encoding/binary"
	"fmt"

	"minidb/storage_engine/page"
)

/*
Node serialization. A node block reuses the standard 12-byte block header:

	header prev  — parent block number, -1 for the root
	header next  — right sibling for leaves, -1 for internals
	header count — number of keys

The payload continues:

	12      int32  node type: 0 internal, 1 leaf
	16      count × keyLen           keys, packed, sorted ascending
	after   leaf:     count × [ block int32 | offset int32 ]
	        internal: (count+1) × [ child int32 ]

Keys are the fixed length the index declares, so every offset is a simple
product and the fanout is known at creation time.
*/

const (
	nodeTypeSize = 4
	childSize    = 4
	locatorSize  = 8

	nodeTypeOff = page.HeaderSize
	entriesOff  = page.HeaderSize + nodeTypeSize

	nodeInternal = 0
	nodeLeaf     = 1
)

// decodeNode rebuilds the in-memory node from a frame. Key bytes are copied
// out of the frame, never aliased.
func (t *BPlusTree) decodeNode(blk *page.Block) (*node, error) {
	count := int(blk.Count())
	if count < 0 || count > t.idx.Rank+1 {
		return nil, fmt.Errorf("index block %d has impossible key count %d", blk.BlockNum, count)
	}

	n := &node{
		blockNum: blk.BlockNum,
		parent:   blk.PrevBlockNum(),
		next:     blk.NextBlockNum(),
	}
	switch int32(binary.LittleEndian.Uint32(blk.Data[nodeTypeOff:])) {
	case nodeLeaf:
		n.leaf = true
	case nodeInternal:
		n.leaf = false
	default:
		return nil, fmt.Errorf("index block %d has unknown node type", blk.BlockNum)
	}

	keyLen := t.idx.KeyLen
	off := entriesOff
	for i := 0; i < count; i++ {
		k := t.idx.NewKey()
		copy(k.Data, blk.Data[off:off+keyLen])
		n.keys = append(n.keys, k)
		off += keyLen
	}

	if n.leaf {
		for i := 0; i < count; i++ {
			n.locs = append(n.locs, Locator{
				Block:  int32(binary.LittleEndian.Uint32(blk.Data[off:])),
				Offset: int32(binary.LittleEndian.Uint32(blk.Data[off+4:])),
			})
			off += locatorSize
		}
	} else {
		for i := 0; i <= count; i++ {
			n.children = append(n.children,
				int32(binary.LittleEndian.Uint32(blk.Data[off:])))
			off += childSize
		}
	}
	return n, nil
}

// encodeNode writes the node image back into its frame and marks it dirty.
func (t *BPlusTree) encodeNode(n *node, blk *page.Block) error {
	count := len(n.keys)
	if !n.leaf && len(n.children) != count+1 {
		return fmt.Errorf("internal node %d has %d keys but %d children",
			n.blockNum, count, len(n.children))
	}
	if n.leaf && len(n.locs) != count {
		return fmt.Errorf("leaf node %d has %d keys but %d locators",
			n.blockNum, count, len(n.locs))
	}

	blk.SetPrevBlockNum(n.parent)
	if n.leaf {
		blk.SetNextBlockNum(n.next)
	} else {
		blk.SetNextBlockNum(-1)
	}
	blk.SetCount(int32(count))

	nodeType := int32(nodeInternal)
	if n.leaf {
		nodeType = nodeLeaf
	}
	binary.LittleEndian.PutUint32(blk.Data[nodeTypeOff:], uint32(nodeType))

	keyLen := t.idx.KeyLen
	off := entriesOff
	for _, k := range n.keys {
		copy(blk.Data[off:off+keyLen], k.Data)
		off += keyLen
	}
	if n.leaf {
		for _, loc := range n.locs {
			binary.LittleEndian.PutUint32(blk.Data[off:], uint32(loc.Block))
			binary.LittleEndian.PutUint32(blk.Data[off+4:], uint32(loc.Offset))
			off += locatorSize
		}
	} else {
		for _, child := range n.children {
			binary.LittleEndian.PutUint32(blk.Data[off:], uint32(child))
			off += childSize
		}
	}
	return nil
}

// fetchNode loads a node through the buffer pool.
func (t *BPlusTree) fetchNode(blockNum int32) (*node, error) {
	if blockNum < 0 {
		return nil, fmt.Errorf("fetchNode: invalid block number %d", blockNum)
	}
	blk, err := t.pool.GetBlock(t.fileID, blockNum)
	if err != nil {
		return nil, fmt.Errorf("fetchNode: failed to fetch index block %d: %w", blockNum, err)
	}
	n, err := t.decodeNode(blk)
	if err != nil {
		return nil, fmt.Errorf("fetchNode: %w", err)
	}
	return n, nil
}

// writeNode serializes the node into its frame and marks it dirty in the
// pool.
func (t *BPlusTree) writeNode(n *node) error {
	blk, err := t.pool.GetBlock(t.fileID, n.blockNum)
	if err != nil {
		return fmt.Errorf("writeNode: failed to fetch index block %d: %w", n.blockNum, err)
	}
	if err := t.encodeNode(n, blk); err != nil {
		return fmt.Errorf("writeNode: %w", err)
	}
	t.pool.WriteBlock(blk)
	return nil
}

// allocNode produces an empty node, consuming the rubbish chain before
// asking for a brand-new block at the end of the file.
func (t *BPlusTree) allocNode(leaf bool) (*node, error) {
	var blockNum int32
	if t.idx.Rubbish >= 0 {
		blockNum = t.idx.Rubbish
		blk, err := t.pool.GetBlock(t.fileID, blockNum)
		if err != nil {
			return nil, fmt.Errorf("allocNode: failed to pop rubbish node: %w", err)
		}
		t.idx.Rubbish = blk.NextBlockNum()
		blk.Zero()
		t.pool.WriteBlock(blk)
	} else {
		blockNum = t.idx.NodeCount
		t.idx.NodeCount++
		blk, err := t.pool.GetBlock(t.fileID, blockNum)
		if err != nil {
			return nil, fmt.Errorf("allocNode: failed to fetch new block: %w", err)
		}
		blk.Zero()
		t.pool.WriteBlock(blk)
	}

	return &node{blockNum: blockNum, leaf: leaf, parent: -1, next: -1}, nil
}

// freeNode pushes a dead node onto the rubbish chain. The header next field
// doubles as the chain link.
func (t *BPlusTree) freeNode(n *node) error {
	blk, err := t.pool.GetBlock(t.fileID, n.blockNum)
	if err != nil {
		return fmt.Errorf("freeNode: failed to fetch index block %d: %w", n.blockNum, err)
	}
	blk.Zero()
	blk.SetPrevBlockNum(-1)
	blk.SetNextBlockNum(t.idx.Rubbish)
	blk.SetCount(0)
	t.pool.WriteBlock(blk)
	t.idx.Rubbish = n.blockNum
	return nil
}
