package bufferpool

import (
	diskmanager "minidb/storage_engine/disk_manager"
	"minidb/storage_engine/page"
)

// DefaultCapacity is the reference frame budget shared by every open file.
const DefaultCapacity = 300

type BufferPool struct {
	frames   map[int64]*page.Block // key = fileID<<32 | blockNum
	capacity int
	alloced  int // frames ever allocated, bounded by capacity

	// accessOrder holds resident frame keys, least recently used first.
	accessOrder []int64

	// freeHead is a sentinel for the singly linked list of frames not
	// currently bound to any block. GetBlock consumes from it; eviction
	// and DiscardFile return frames to it.
	freeHead  *page.Block
	freeCount int

	diskManager *diskmanager.DiskManager

	// Trace turns on the per-event lines, printed to stdout. Off by default
	// so scripted runs stay quiet.
	Trace bool
}

type BufferPoolStats struct {
	Resident   int
	FreeFrames int
	DirtyPages int
	Capacity   int
}
