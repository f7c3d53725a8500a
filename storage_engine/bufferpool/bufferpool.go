package bufferpool

import (
	"fmt"

	diskmanager "minidb/storage_engine/disk_manager"
	"minidb/storage_engine/page"
)

/*
This file is the main file of the buffer pool.
The pool hands out mutable in-memory frames for (fileID, blockNum) pairs with
bounded memory use and write-back semantics. Replacement is least recently
used, tracked with an access-order list; the age counters of the original
per-access scheme collapse into list position, which gives the same victim.
A hit scans the list linearly to move its key to the most recently used end.

Ownership: the pool exclusively owns every frame. Callers hold a borrow that
stays valid until the pool next has to evict — in practice, as long as one
statement touches fewer blocks than the pool holds frames, which the capacity
of 300 guarantees by a wide margin. Callers never cache frame pointers across
statements.
*/

func NewBufferPool(capacity int, diskManager *diskmanager.DiskManager) *BufferPool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BufferPool{
		frames:      make(map[int64]*page.Block, capacity),
		capacity:    capacity,
		accessOrder: make([]int64, 0, capacity),
		freeHead:    page.NewBlock(), // sentinel, never bound
		diskManager: diskManager,
	}
}

func frameKey(fileID uint32, blockNum int32) int64 {
	return int64(fileID)<<32 | int64(uint32(blockNum))
}

// GetBlock returns the frame holding block blockNum of the file, reading it
// in if it is not resident. The returned frame is the most recently used.
func (bp *BufferPool) GetBlock(fileID uint32, blockNum int32) (*page.Block, error) {
	if blockNum < 0 {
		return nil, fmt.Errorf("invalid block number %d", blockNum)
	}

	key := frameKey(fileID, blockNum)
	if blk, exists := bp.frames[key]; exists {
		bp.touch(key)
		return blk, nil
	}

	blk, err := bp.takeFrame()
	if err != nil {
		return nil, err
	}

	blk.Rebind(fileID, blockNum)
	if err := bp.diskManager.ReadBlock(fileID, blockNum, blk.Data); err != nil {
		// The read failed; the frame is still unbound state-wise, return it
		// to the free list and report upward.
		bp.pushFree(blk)
		return nil, err
	}

	bp.frames[key] = blk
	bp.accessOrder = append(bp.accessOrder, key)

	if bp.Trace {
		fmt.Printf("[BufferPool] MISS file=%d block=%d (resident=%d free=%d)\n",
			fileID, blockNum, len(bp.frames), bp.freeCount)
	}
	return blk, nil
}

// WriteBlock marks the frame dirty. The frame stays resident; bytes reach
// disk on eviction or FlushAll.
func (bp *BufferPool) WriteBlock(blk *page.Block) {
	blk.IsDirty = true
}

// FlushAll writes every dirty frame to disk in access order and clears the
// dirty flags. Called at every statement boundary.
func (bp *BufferPool) FlushAll() error {
	for _, key := range bp.accessOrder {
		blk, exists := bp.frames[key]
		if !exists || !blk.IsDirty {
			continue
		}
		if err := bp.diskManager.WriteBlock(blk.FileID, blk.BlockNum, blk.Data); err != nil {
			return err
		}
		blk.IsDirty = false
	}
	return nil
}

// takeFrame produces an unbound frame: from the free list, by allocating
// below capacity, or by evicting the least recently used resident frame.
func (bp *BufferPool) takeFrame() (*page.Block, error) {
	if blk := bp.popFree(); blk != nil {
		return blk, nil
	}
	if bp.alloced < bp.capacity {
		bp.alloced++
		return page.NewBlock(), nil
	}
	blk, err := bp.evict()
	if err != nil {
		return nil, err
	}
	// The evicted frame returns to the free list and is consumed from it.
	bp.pushFree(blk)
	return bp.popFree(), nil
}

// evict removes the least recently used frame, writing it back first when
// dirty, and hands the frame to the caller for rebinding. With no dirty
// frame resident the choice is the same: the oldest clean frame.
func (bp *BufferPool) evict() (*page.Block, error) {
	if len(bp.accessOrder) == 0 {
		return nil, fmt.Errorf("buffer pool has no frame to evict")
	}

	key := bp.accessOrder[0]
	blk := bp.frames[key]

	if blk.IsDirty {
		if err := bp.diskManager.WriteBlock(blk.FileID, blk.BlockNum, blk.Data); err != nil {
			return nil, err
		}
		blk.IsDirty = false
	}

	if bp.Trace {
		fmt.Printf("[BufferPool] EVICT file=%d block=%d\n", blk.FileID, blk.BlockNum)
	}

	delete(bp.frames, key)
	bp.accessOrder = bp.accessOrder[1:]
	return blk, nil
}

// touch moves key to the most recently used end of the access order.
func (bp *BufferPool) touch(key int64) {
	for i, k := range bp.accessOrder {
		if k == key {
			bp.accessOrder = append(bp.accessOrder[:i], bp.accessOrder[i+1:]...)
			break
		}
	}
	bp.accessOrder = append(bp.accessOrder, key)
}

// DiscardFile drops every resident frame of the file without write-back and
// returns the frames to the free list. Used when a table, index or database
// is dropped: the backing file is about to disappear, so its bytes must not
// be flushed over a recycled path.
func (bp *BufferPool) DiscardFile(fileID uint32) {
	kept := bp.accessOrder[:0]
	for _, key := range bp.accessOrder {
		blk := bp.frames[key]
		if blk != nil && blk.FileID == fileID {
			delete(bp.frames, key)
			blk.IsDirty = false
			bp.pushFree(blk)
			continue
		}
		kept = append(kept, key)
	}
	bp.accessOrder = kept
}

// pushFree prepends a frame to the free-frame list.
func (bp *BufferPool) pushFree(blk *page.Block) {
	blk.SetNextFree(bp.freeHead.NextFree())
	bp.freeHead.SetNextFree(blk)
	bp.freeCount++
}

// popFree removes and returns the free-list head, or nil when empty.
func (bp *BufferPool) popFree() *page.Block {
	blk := bp.freeHead.NextFree()
	if blk == nil {
		return nil
	}
	bp.freeHead.SetNextFree(blk.NextFree())
	blk.SetNextFree(nil)
	bp.freeCount--
	return blk
}
