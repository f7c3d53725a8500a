package recordmanager

import (
	"fmt"

	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
	"minidb/storage_engine/catalog"
	"minidb/types"
)

// BuildIndex bulk-loads a freshly created index from the table's live list,
// one Add per live record. CREATE INDEX on a populated table must leave the
// index with exactly one entry per record.
func (rm *RecordManager) BuildIndex(tbl *catalog.Table, idx *catalog.Index) error {
	pos := tbl.AttributeIndex(idx.AttrName)
	if pos < 0 {
		return fmt.Errorf("%w: %s.%s", types.ErrAttributeNotFound, tbl.Name, idx.AttrName)
	}

	tree, err := rm.openIndex(tbl, idx)
	if err != nil {
		return err
	}

	blockNum := tbl.FirstBlockNum
	for blockNum != -1 {
		blk, err := rm.getBlock(tbl, blockNum)
		if err != nil {
			return err
		}
		count := int(blk.Count())
		next := blk.NextBlockNum()
		for j := 0; j < count; j++ {
			record := decodeRecord(tbl, blk, j)
			loc := bplus.Locator{Block: blockNum, Offset: int32(j)}
			if err := tree.Add(record[pos], loc); err != nil {
				return fmt.Errorf("index %s: %w", idx.Name, err)
			}
		}
		blockNum = next
	}
	return nil
}
