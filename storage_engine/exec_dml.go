package storageengine

import (
	"fmt"
	"strings"

	recordmanager "minidb/storage_engine/access/record_manager"
	"minidb/types"
)

/*
DML dispatch. The record manager does the work; this layer owns the
statement boundary and the SELECT result cache.

The cache key embeds the table's version counter, bumped on every write, so
invalidation is free: a stale entry simply stops being asked for and ages
out under ristretto's admission policy.
*/

func (se *StorageEngine) recordManager() (*recordmanager.RecordManager, error) {
	db, err := se.requireDatabase()
	if err != nil {
		return nil, err
	}
	return recordmanager.New(se.CatalogManager, se.BufferPool, se.DiskManager, db.Name), nil
}

func (se *StorageEngine) execInsert(st types.SQLInsert) (*ExecResult, error) {
	rm, err := se.recordManager()
	if err != nil {
		return nil, err
	}
	if err := rm.Insert(st); err != nil {
		return nil, err
	}
	se.bumpVersion(se.currDB, st.TBName)
	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: "1 row inserted"}, nil
}

func (se *StorageEngine) execSelect(st types.SQLSelect) (*ExecResult, error) {
	rm, err := se.recordManager()
	if err != nil {
		return nil, err
	}

	key := se.selectCacheKey(st)
	if cached, ok := se.selectCache.Get(key); ok {
		return &ExecResult{Select: cached,
			Message: fmt.Sprintf("%d row(s)", len(cached.Rows))}, nil
	}

	rows, err := rm.Select(st)
	if err != nil {
		return nil, err
	}
	result := renderRows(st.TBName, rows)
	se.selectCache.Set(key, result, int64(len(result.Rows)+1))

	return &ExecResult{Select: result,
		Message: fmt.Sprintf("%d row(s)", len(result.Rows))}, nil
}

func (se *StorageEngine) execDelete(st types.SQLDelete) (*ExecResult, error) {
	rm, err := se.recordManager()
	if err != nil {
		return nil, err
	}
	deleted, err := rm.Delete(st)
	if err != nil {
		return nil, err
	}
	se.bumpVersion(se.currDB, st.TBName)
	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("%d row(s) deleted", deleted)}, nil
}

func (se *StorageEngine) execUpdate(st types.SQLUpdate) (*ExecResult, error) {
	rm, err := se.recordManager()
	if err != nil {
		return nil, err
	}
	updated, err := rm.Update(st)
	if err != nil {
		return nil, err
	}
	se.bumpVersion(se.currDB, st.TBName)
	if err := se.endStatement(); err != nil {
		return nil, err
	}
	return &ExecResult{Message: fmt.Sprintf("%d row(s) updated", updated)}, nil
}

// selectCacheKey fingerprints a SELECT: database, table, table version and
// the normalized WHERE conjunction.
func (se *StorageEngine) selectCacheKey(st types.SQLSelect) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\x1f%s\x1f%d", se.currDB, st.TBName,
		se.tableVersions[se.currDB+"."+st.TBName])
	for _, where := range st.Wheres {
		fmt.Fprintf(&sb, "\x1f%s %s %s", where.Key, where.Op, where.Text)
	}
	return sb.String()
}
