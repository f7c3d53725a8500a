package recordmanager

import (
	"fmt"

	"minidb/storage_engine/bufferpool"
	"minidb/storage_engine/catalog"
	diskmanager "minidb/storage_engine/disk_manager"
	"minidb/storage_engine/page"
	"minidb/types"

	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
)

/*
This is the main file of the record manager.
The record manager executes INSERT / SELECT / DELETE / UPDATE against one
table's heap of blocks. Each table owns two chains threaded through the
block headers of its records file:

  - the live list, a doubly linked chain of blocks holding at least one
    record, anchored at the table's FirstBlockNum
  - the free (rubbish) list, a doubly linked chain of empty blocks ready
    for reuse, anchored at FirstRubbishNum

A block is always on exactly one of the two. BlockCount only ever grows;
free-listed blocks keep their numbers and are reused before the file grows.

The record manager knows the disk manager for file naming and the buffer
pool for every block access; it never touches file offsets itself.
*/

type RecordManager struct {
	cat  *catalog.CatalogManager
	pool *bufferpool.BufferPool
	disk *diskmanager.DiskManager

	dbName string
}

func New(cat *catalog.CatalogManager, pool *bufferpool.BufferPool,
	disk *diskmanager.DiskManager, dbName string) *RecordManager {
	return &RecordManager{cat: cat, pool: pool, disk: disk, dbName: dbName}
}

// table resolves a table of the current database.
func (rm *RecordManager) table(name string) (*catalog.Table, error) {
	if rm.dbName == "" {
		return nil, types.ErrNoDatabaseSelected
	}
	db := rm.cat.GetDB(rm.dbName)
	if db == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrDatabaseNotFound, rm.dbName)
	}
	tbl := db.GetTable(name)
	if tbl == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, name)
	}
	return tbl, nil
}

// getBlock fetches one block of the table's records file through the pool.
func (rm *RecordManager) getBlock(tbl *catalog.Table, blockNum int32) (*page.Block, error) {
	fileID, err := rm.disk.OpenFile(rm.disk.RecordFilePath(rm.dbName, tbl.Name))
	if err != nil {
		return nil, err
	}
	return rm.pool.GetBlock(fileID, blockNum)
}

// openIndex binds a B+ tree to one of the table's indexes. The index file
// opens lazily on first use and stays open.
func (rm *RecordManager) openIndex(tbl *catalog.Table, idx *catalog.Index) (*bplus.BPlusTree, error) {
	fileID, err := rm.disk.OpenFile(rm.disk.IndexFilePath(rm.dbName, tbl.Name, idx.Name))
	if err != nil {
		return nil, err
	}
	return bplus.Open(idx, fileID, rm.pool), nil
}
