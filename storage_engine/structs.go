package storageengine

import (
	"github.com/dgraph-io/ristretto/v2"

	"minidb/storage_engine/bufferpool"
	"minidb/storage_engine/catalog"
	diskmanager "minidb/storage_engine/disk_manager"
)

// StorageEngine is the explicit context every operation runs against: the
// disk manager, the shared buffer pool and the catalog. There are no
// package-level singletons; everything the engine owns hangs off this
// struct.
type StorageEngine struct {
	DiskManager    *diskmanager.DiskManager
	BufferPool     *bufferpool.BufferPool
	CatalogManager *catalog.CatalogManager

	root   string
	currDB string

	// selectCache memoizes rendered SELECT results. Keys embed a per-table
	// version counter, so any write to a table makes its cached results
	// unreachable without an explicit invalidation pass.
	selectCache   *ristretto.Cache[string, *SelectResult]
	tableVersions map[string]uint64

	// Trace turns on the buffer pool's per-event lines.
	Trace bool
}
