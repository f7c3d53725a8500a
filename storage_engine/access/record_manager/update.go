package recordmanager

import (
	"fmt"

	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
	"minidb/types"
)

/*
UPDATE. Records are rewritten in place — the locator never changes — so the
only index work is swapping keys: for every index covering a changed
attribute, the old key leaves and the new key arrives with the same
(block, offset).
*/

type assignment struct {
	attrPos int
	key     types.TKey
}

func (rm *RecordManager) Update(st types.SQLUpdate) (int, error) {
	tbl, err := rm.table(st.TBName)
	if err != nil {
		return 0, err
	}

	// Resolve assignments against the schema.
	assigns := make([]assignment, 0, len(st.Assigns))
	changed := make(map[int]bool)
	for _, a := range st.Assigns {
		pos := tbl.AttributeIndex(a.Key)
		if pos < 0 {
			return 0, fmt.Errorf("%w: %s.%s", types.ErrAttributeNotFound, tbl.Name, a.Key)
		}
		k := tbl.Attributes[pos].NewKey()
		if err := k.ReadValue(a.Text); err != nil {
			return 0, fmt.Errorf("attribute %s: %w", a.Key, err)
		}
		assigns = append(assigns, assignment{attrPos: pos, key: k})
		changed[pos] = true
	}

	// An assignment targeting the primary key runs the same uniqueness
	// check as INSERT against the new value.
	pk := tbl.PrimaryKeyIndex()
	if pk >= 0 && changed[pk] {
		var newPK types.TKey
		for _, a := range assigns {
			if a.attrPos == pk {
				newPK = a.key
			}
		}
		if idx := tbl.IndexOn(tbl.Attributes[pk].Name); idx != nil {
			tree, err := rm.openIndex(tbl, idx)
			if err != nil {
				return 0, err
			}
			_, found, err := tree.GetVal(newPK)
			if err != nil {
				return 0, err
			}
			if found {
				return 0, fmt.Errorf("%w: %s = %s", types.ErrPrimaryKeyConflict,
					tbl.Attributes[pk].Name, newPK)
			}
		} else {
			dup, err := rm.scanForKey(tbl, pk, newPK)
			if err != nil {
				return 0, err
			}
			if dup {
				return 0, fmt.Errorf("%w: %s = %s", types.ErrPrimaryKeyConflict,
					tbl.Attributes[pk].Name, newPK)
			}
		}
	}

	updated := 0
	blockNum := tbl.FirstBlockNum
	for blockNum != -1 {
		blk, err := rm.getBlock(tbl, blockNum)
		if err != nil {
			return updated, err
		}
		next := blk.NextBlockNum()
		count := int(blk.Count())

		for j := 0; j < count; j++ {
			record := decodeRecord(tbl, blk, j)
			sats, err := rm.satisfiesAll(tbl, record, st.Wheres)
			if err != nil {
				return updated, err
			}
			if !sats {
				continue
			}

			// Old keys leave the indexes that cover a changed attribute.
			for i := range tbl.Indexes {
				idx := &tbl.Indexes[i]
				pos := tbl.AttributeIndex(idx.AttrName)
				if !changed[pos] {
					continue
				}
				tree, err := rm.openIndex(tbl, idx)
				if err != nil {
					return updated, err
				}
				if err := tree.Remove(record[pos]); err != nil {
					return updated, err
				}
			}

			blk, err = rm.getBlock(tbl, blockNum)
			if err != nil {
				return updated, err
			}
			for _, a := range assigns {
				encodeAttribute(tbl, blk, j, a.attrPos, a.key)
			}
			rm.pool.WriteBlock(blk)

			// New keys arrive with the unchanged locator.
			newRecord := decodeRecord(tbl, blk, j)
			for i := range tbl.Indexes {
				idx := &tbl.Indexes[i]
				pos := tbl.AttributeIndex(idx.AttrName)
				if !changed[pos] {
					continue
				}
				tree, err := rm.openIndex(tbl, idx)
				if err != nil {
					return updated, err
				}
				loc := bplus.Locator{Block: blockNum, Offset: int32(j)}
				if err := tree.Add(newRecord[pos], loc); err != nil {
					return updated, fmt.Errorf("index %s: %w", idx.Name, err)
				}
			}
			updated++
		}
		blockNum = next
	}
	return updated, nil
}
