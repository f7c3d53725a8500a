package storageengine

import (
	"fmt"
	"os"
	"path/filepath"

	"minidb/types"
)

/*
Database-level statements. CREATE and DROP touch both the catalog and the
filesystem: each database owns a directory under the data root holding its
record and index files.
*/

func (se *StorageEngine) execCreateDatabase(st types.SQLCreateDatabase) (*ExecResult, error) {
	if err := se.CatalogManager.CreateDatabase(st.DBName); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(se.root, st.DBName), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %v", types.ErrIO, err)
	}
	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("database %s created", st.DBName)}, nil
}

func (se *StorageEngine) execDropDatabase(st types.SQLDropDatabase) (*ExecResult, error) {
	db := se.CatalogManager.GetDB(st.DBName)
	if db == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrDatabaseNotFound, st.DBName)
	}

	// Cached frames of the database's files must not outlive the files.
	dir := filepath.Join(se.root, st.DBName)
	for _, fileID := range se.DiskManager.CloseUnder(dir) {
		se.BufferPool.DiscardFile(fileID)
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("%w: failed to remove database directory: %v", types.ErrIO, err)
	}

	for i := range db.Tables {
		se.bumpVersion(st.DBName, db.Tables[i].Name)
	}
	if err := se.CatalogManager.DeleteDatabase(st.DBName); err != nil {
		return nil, err
	}
	if se.currDB == st.DBName {
		se.currDB = ""
	}
	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("database %s dropped", st.DBName)}, nil
}

func (se *StorageEngine) execUse(st types.SQLUse) (*ExecResult, error) {
	if se.CatalogManager.GetDB(st.DBName) == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrDatabaseNotFound, st.DBName)
	}
	se.currDB = st.DBName
	return &ExecResult{Message: fmt.Sprintf("using database %s", st.DBName)}, nil
}
