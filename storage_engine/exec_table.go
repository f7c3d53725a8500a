package storageengine

import (
	"fmt"

	"minidb/types"
)

/*
Table-level statements. CREATE TABLE registers the schema and touches the
records file into existence; DROP TABLE removes the records file, every
index file and all their cached frames before the schema entry goes.
*/

func (se *StorageEngine) execCreateTable(st types.SQLCreateTable) (*ExecResult, error) {
	db, err := se.requireDatabase()
	if err != nil {
		return nil, err
	}

	tbl, err := db.CreateTable(st)
	if err != nil {
		return nil, err
	}

	if _, err := se.DiskManager.OpenFile(se.DiskManager.RecordFilePath(db.Name, tbl.Name)); err != nil {
		return nil, err
	}

	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("table %s created", tbl.Name)}, nil
}

func (se *StorageEngine) execDropTable(st types.SQLDropTable) (*ExecResult, error) {
	db, err := se.requireDatabase()
	if err != nil {
		return nil, err
	}

	tbl := db.GetTable(st.TBName)
	if tbl == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, st.TBName)
	}

	paths := []string{se.DiskManager.RecordFilePath(db.Name, tbl.Name)}
	for i := range tbl.Indexes {
		paths = append(paths, se.DiskManager.IndexFilePath(db.Name, tbl.Name, tbl.Indexes[i].Name))
	}
	for _, path := range paths {
		fileID, err := se.DiskManager.RemoveFile(path)
		if err != nil {
			return nil, err
		}
		if fileID != 0 {
			se.BufferPool.DiscardFile(fileID)
		}
	}

	if err := db.DropTable(st.TBName); err != nil {
		return nil, err
	}
	se.bumpVersion(db.Name, st.TBName)

	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("table %s dropped", st.TBName)}, nil
}
