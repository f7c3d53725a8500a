package bufferpool

import (
	"path/filepath"
	"testing"

	diskmanager "minidb/storage_engine/disk_manager"
	"minidb/storage_engine/page"
)

func newTestPool(t *testing.T, capacity int) (*BufferPool, uint32) {
	t.Helper()
	disk := diskmanager.NewDiskManager(t.TempDir())
	fileID, err := disk.OpenFile(filepath.Join(disk.Root(), "db", "t.records"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	return NewBufferPool(capacity, disk), fileID
}

func TestGetBlockReadsZeroedFreshBlocks(t *testing.T) {
	pool, fileID := newTestPool(t, 4)

	blk, err := pool.GetBlock(fileID, 0)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if blk.PrevBlockNum() != 0 || blk.NextBlockNum() != 0 || blk.Count() != 0 {
		t.Error("a never-written block must read as zeroes")
	}
	if blk.FileID != fileID || blk.BlockNum != 0 {
		t.Errorf("frame bound to (%d,%d), want (%d,0)", blk.FileID, blk.BlockNum, fileID)
	}
}

func TestWriteBackAndHit(t *testing.T) {
	pool, fileID := newTestPool(t, 4)

	blk, _ := pool.GetBlock(fileID, 2)
	blk.SetPrevBlockNum(-1)
	blk.SetNextBlockNum(-1)
	blk.SetCount(7)
	copy(blk.Payload(), "hello")
	pool.WriteBlock(blk)

	if err := pool.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}
	if blk.IsDirty {
		t.Error("flush must clear the dirty flag")
	}

	// A hit returns the same frame.
	again, _ := pool.GetBlock(fileID, 2)
	if again != blk {
		t.Error("resident block must come back as the same frame")
	}
	if again.Count() != 7 || string(again.Payload()[:5]) != "hello" {
		t.Error("frame lost its contents on hit")
	}
}

func TestEvictionWritesDirtyVictimAndRereads(t *testing.T) {
	pool, fileID := newTestPool(t, 2)

	// Dirty block 0, then push it out with blocks 1 and 2.
	b0, _ := pool.GetBlock(fileID, 0)
	b0.SetCount(42)
	copy(b0.Payload(), "victim")
	pool.WriteBlock(b0)

	if _, err := pool.GetBlock(fileID, 1); err != nil {
		t.Fatalf("GetBlock(1): %v", err)
	}
	if _, err := pool.GetBlock(fileID, 2); err != nil {
		t.Fatalf("GetBlock(2): %v", err)
	}

	if pool.Size() != 2 {
		t.Fatalf("pool holds %d frames, capacity is 2", pool.Size())
	}
	if pool.Resident(fileID, 0) {
		t.Fatal("block 0 should have been the LRU victim")
	}

	// The victim was dirty; its bytes must have reached disk.
	b0again, err := pool.GetBlock(fileID, 0)
	if err != nil {
		t.Fatalf("re-read evicted block: %v", err)
	}
	if b0again.Count() != 42 || string(b0again.Payload()[:6]) != "victim" {
		t.Error("dirty victim was not written back on eviction")
	}
}

func TestLRUTouchOrder(t *testing.T) {
	pool, fileID := newTestPool(t, 2)

	if _, err := pool.GetBlock(fileID, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.GetBlock(fileID, 1); err != nil {
		t.Fatal(err)
	}
	// Touch 0 so 1 becomes the LRU.
	if _, err := pool.GetBlock(fileID, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.GetBlock(fileID, 2); err != nil {
		t.Fatal(err)
	}

	if !pool.Resident(fileID, 0) {
		t.Error("recently touched block 0 must survive the eviction")
	}
	if pool.Resident(fileID, 1) {
		t.Error("least recently used block 1 must be the victim")
	}
}

func TestDiscardFileFeedsFreeList(t *testing.T) {
	pool, fileID := newTestPool(t, 4)

	for i := int32(0); i < 3; i++ {
		blk, _ := pool.GetBlock(fileID, i)
		blk.SetCount(i)
		pool.WriteBlock(blk)
	}

	pool.DiscardFile(fileID)
	if pool.Size() != 0 {
		t.Fatalf("%d frames still resident after DiscardFile", pool.Size())
	}
	if pool.FreeFrames() != 3 {
		t.Fatalf("free list has %d frames, want 3", pool.FreeFrames())
	}

	// The next miss consumes the free list instead of allocating.
	var blk *page.Block
	var err error
	if blk, err = pool.GetBlock(fileID, 0); err != nil {
		t.Fatalf("GetBlock after discard: %v", err)
	}
	if pool.FreeFrames() != 2 {
		t.Errorf("free list has %d frames, want 2", pool.FreeFrames())
	}
	// Discarded dirty state must not have leaked to disk.
	if blk.Count() != 0 {
		t.Error("discarded frame was flushed; drop must not write back")
	}
}

func TestStats(t *testing.T) {
	pool, fileID := newTestPool(t, 4)
	blk, _ := pool.GetBlock(fileID, 0)
	blk.SetCount(1)
	pool.WriteBlock(blk)

	stats := pool.GetStats()
	if stats.Resident != 1 || stats.DirtyPages != 1 || stats.Capacity != 4 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
