package storageengine

import (
	"fmt"

	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
	recordmanager "minidb/storage_engine/access/record_manager"
	"minidb/storage_engine/catalog"
	"minidb/types"
)

/*
Index statements. Index names are scoped to the database, so existence
checks and DROP INDEX walk every table. A new index over a populated table
is bulk-loaded from the live list before the statement commits.
*/

func (se *StorageEngine) execCreateIndex(st types.SQLCreateIndex) (*ExecResult, error) {
	db, err := se.requireDatabase()
	if err != nil {
		return nil, err
	}

	if db.CheckIfIndexExists(st.IndexName) {
		return nil, fmt.Errorf("%w: %s", types.ErrIndexExists, st.IndexName)
	}

	tbl := db.GetTable(st.TBName)
	if tbl == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, st.TBName)
	}
	attr := tbl.GetAttribute(st.ColName)
	if attr == nil {
		return nil, fmt.Errorf("%w: %s.%s", types.ErrAttributeNotFound, st.TBName, st.ColName)
	}

	tbl.Indexes = append(tbl.Indexes, catalog.Index{
		Name:     st.IndexName,
		AttrName: attr.Name,
		KeyType:  attr.DataType,
		KeyLen:   attr.Length,
		Rank:     bplus.ComputeRank(attr.Length),
		Root:     -1,
		LeafHead: -1,
		Rubbish:  -1,
	})
	idx := &tbl.Indexes[len(tbl.Indexes)-1]

	rm := recordmanager.New(se.CatalogManager, se.BufferPool, se.DiskManager, db.Name)
	if err := rm.BuildIndex(tbl, idx); err != nil {
		// The statement failed; drop the half-built metadata and the
		// half-built file so the schema never points at a broken tree and a
		// retry starts clean.
		tbl.Indexes = tbl.Indexes[:len(tbl.Indexes)-1]
		path := se.DiskManager.IndexFilePath(db.Name, tbl.Name, st.IndexName)
		if fileID, rmErr := se.DiskManager.RemoveFile(path); rmErr == nil && fileID != 0 {
			se.BufferPool.DiscardFile(fileID)
		}
		return nil, err
	}

	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("index %s created on %s(%s)",
		st.IndexName, st.TBName, st.ColName)}, nil
}

func (se *StorageEngine) execDropIndex(st types.SQLDropIndex) (*ExecResult, error) {
	db, err := se.requireDatabase()
	if err != nil {
		return nil, err
	}

	tbl, err := db.DropIndex(st.IndexName)
	if err != nil {
		return nil, err
	}

	fileID, err := se.DiskManager.RemoveFile(
		se.DiskManager.IndexFilePath(db.Name, tbl.Name, st.IndexName))
	if err != nil {
		return nil, err
	}
	if fileID != 0 {
		se.BufferPool.DiscardFile(fileID)
	}

	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("index %s dropped", st.IndexName)}, nil
}
