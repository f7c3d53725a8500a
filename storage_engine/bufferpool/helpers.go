package bufferpool

/*
This file holds helper functions for the buffer pool.
*/

// GetStats returns a snapshot of the pool's occupancy.
func (bp *BufferPool) GetStats() BufferPoolStats {
	stats := BufferPoolStats{
		Resident:   len(bp.frames),
		FreeFrames: bp.freeCount,
		Capacity:   bp.capacity,
	}
	for _, blk := range bp.frames {
		if blk.IsDirty {
			stats.DirtyPages++
		}
	}
	return stats
}

// Size returns the number of resident frames.
func (bp *BufferPool) Size() int { return len(bp.frames) }

// Capacity returns the frame budget.
func (bp *BufferPool) Capacity() int { return bp.capacity }

// FreeFrames returns the length of the free-frame list.
func (bp *BufferPool) FreeFrames() int { return bp.freeCount }

// Resident reports whether the block is currently cached, without touching
// the access order. Testing hook.
func (bp *BufferPool) Resident(fileID uint32, blockNum int32) bool {
	_, ok := bp.frames[frameKey(fileID, blockNum)]
	return ok
}
