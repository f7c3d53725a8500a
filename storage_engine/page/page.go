package page

import (
	"encoding/binary"

	"minidb/types"
)

/*
A Block is one buffered 4 KiB frame. Record files and index files use the
same self-describing header; the meaning of the three fields depends on the
owning chain:

	Offset  Size  Field
	─────────────────────────────────────────────
	0       4     prev block number, or -1
	4       4     next block number, or -1
	8       4     record count / key count
	12            payload

All header integers are little-endian signed 32-bit. A block is addressed by
(fileID, blockNum); the frame stores the pair rather than a back-pointer to
the file handle, so the pool owns every cross-reference.
*/

const (
	BlockSize   = types.BlockSize
	HeaderSize  = types.BlockHeaderSize
	PayloadSize = types.BlockPayloadSize
)

type Block struct {
	FileID   uint32
	BlockNum int32
	Data     []byte
	IsDirty  bool

	// nextFree links unbound frames in the pool's free-frame list.
	nextFree *Block
}

func NewBlock() *Block {
	return &Block{Data: make([]byte, BlockSize)}
}

func (b *Block) NextFree() *Block       { return b.nextFree }
func (b *Block) SetNextFree(blk *Block) { b.nextFree = blk }

func (b *Block) getInt32(off int) int32 {
	return int32(binary.LittleEndian.Uint32(b.Data[off:]))
}

func (b *Block) putInt32(off int, v int32) {
	binary.LittleEndian.PutUint32(b.Data[off:], uint32(v))
}

func (b *Block) PrevBlockNum() int32 { return b.getInt32(0) }

func (b *Block) SetPrevBlockNum(num int32) {
	b.putInt32(0, num)
	b.IsDirty = true
}

func (b *Block) NextBlockNum() int32 { return b.getInt32(4) }

func (b *Block) SetNextBlockNum(num int32) {
	b.putInt32(4, num)
	b.IsDirty = true
}

func (b *Block) Count() int32 { return b.getInt32(8) }

func (b *Block) SetCount(count int32) {
	b.putInt32(8, count)
	b.IsDirty = true
}

// Payload returns the 4084 bytes after the header. Mutating it does not mark
// the frame dirty; callers go through the pool's WriteBlock.
func (b *Block) Payload() []byte { return b.Data[HeaderSize:] }

// Zero wipes the whole frame. Used when a recycled block must not leak the
// previous tenant's bytes.
func (b *Block) Zero() {
	for i := range b.Data {
		b.Data[i] = 0
	}
}

// Rebind points the frame at a different block and resets its state.
// The caller decides whether to read from disk or start from zeroes.
func (b *Block) Rebind(fileID uint32, blockNum int32) {
	b.FileID = fileID
	b.BlockNum = blockNum
	b.IsDirty = false
}
