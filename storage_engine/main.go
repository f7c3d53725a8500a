package storageengine

import (
	"fmt"
	"os"

	"github.com/dgraph-io/ristretto/v2"

	"minidb/storage_engine/bufferpool"
	"minidb/storage_engine/catalog"
	diskmanager "minidb/storage_engine/disk_manager"
	"minidb/types"
)

/*
The main file of the storage engine: construction, statement dispatch and
the statement boundary.

Each statement is the transactional unit. A successful statement ends with
every dirty frame flushed and the catalog archive rewritten atomically; a
failed statement skips both. There is no rollback: frames and catalog fields
a failed statement already changed in memory reach disk with the next
successful statement's flush and archive write.
*/

func NewStorageEngine(root string, frames int) (*StorageEngine, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data root: %v", types.ErrIO, err)
	}

	catalogManager, err := catalog.NewCatalogManager(root)
	if err != nil {
		return nil, fmt.Errorf("failed to init catalog manager: %w", err)
	}

	disk := diskmanager.NewDiskManager(root)

	cache, err := ristretto.NewCache(&ristretto.Config[string, *SelectResult]{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init select cache: %w", err)
	}

	se := &StorageEngine{
		DiskManager:    disk,
		BufferPool:     bufferpool.NewBufferPool(frames, disk),
		CatalogManager: catalogManager,
		root:           root,
		selectCache:    cache,
		tableVersions:  make(map[string]uint64),
	}
	return se, nil
}

// CurrentDatabase returns the database USE selected, or "".
func (se *StorageEngine) CurrentDatabase() string { return se.currDB }

// SetTrace toggles the buffer pool event lines.
func (se *StorageEngine) SetTrace(on bool) {
	se.Trace = on
	se.BufferPool.Trace = on
}

// requireDatabase resolves the currently selected database.
func (se *StorageEngine) requireDatabase() (*catalog.Database, error) {
	if se.currDB == "" {
		return nil, types.ErrNoDatabaseSelected
	}
	db := se.CatalogManager.GetDB(se.currDB)
	if db == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrDatabaseNotFound, se.currDB)
	}
	return db, nil
}

// endStatement is the statement boundary: dirty frames out, catalog archive
// rewritten.
func (se *StorageEngine) endStatement() error {
	if err := se.BufferPool.FlushAll(); err != nil {
		return err
	}
	return se.CatalogManager.WriteArchiveFile()
}

// bumpVersion makes every cached SELECT over the table unreachable. The
// counter is monotonic per name and survives drops, so a recreated table
// can never resurrect stale results.
func (se *StorageEngine) bumpVersion(db, table string) {
	se.tableVersions[db+"."+table]++
}

// Execute dispatches one parsed statement. The *ExecResult carries whatever
// the shell needs to render; the error is the first failure, which aborts
// the statement.
func (se *StorageEngine) Execute(stmt types.Statement) (*ExecResult, error) {
	switch st := stmt.(type) {
	case types.SQLCreateDatabase:
		return se.execCreateDatabase(st)
	case types.SQLDropDatabase:
		return se.execDropDatabase(st)
	case types.SQLUse:
		return se.execUse(st)
	case types.SQLCreateTable:
		return se.execCreateTable(st)
	case types.SQLDropTable:
		return se.execDropTable(st)
	case types.SQLCreateIndex:
		return se.execCreateIndex(st)
	case types.SQLDropIndex:
		return se.execDropIndex(st)
	case types.SQLInsert:
		return se.execInsert(st)
	case types.SQLSelect:
		return se.execSelect(st)
	case types.SQLDelete:
		return se.execDelete(st)
	case types.SQLUpdate:
		return se.execUpdate(st)
	case types.SQLExec:
		return se.execScript(st)
	case types.SQLQuit:
		return se.execQuit()
	}
	return nil, fmt.Errorf("unsupported statement %T", stmt)
}

// Close flushes everything and closes the open files. Idempotent enough to
// call on shutdown paths.
func (se *StorageEngine) Close() error {
	if err := se.BufferPool.FlushAll(); err != nil {
		return err
	}
	if err := se.CatalogManager.WriteArchiveFile(); err != nil {
		return err
	}
	return se.DiskManager.CloseAll()
}
