package recordmanager

import (
	"fmt"

	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
	"minidb/storage_engine/catalog"
	"minidb/types"
)

/*
INSERT. Placement order, most to least preferred:

 1. the first live block with room — append at its next slot
 2. the free-list head — record written at slot 0, block spliced to the
    live-list tail
 3. a brand-new block at id BlockCount — prepended at the live-list head

The asymmetry between 2 and 3 is deliberate; the reuse-before-grow law
depends on the free list being drained before the file grows.
*/

func (rm *RecordManager) Insert(st types.SQLInsert) error {
	tbl, err := rm.table(st.TBName)
	if err != nil {
		return err
	}

	values, err := rm.buildValues(tbl, st.Values)
	if err != nil {
		return err
	}

	// Uniqueness checks run before any byte is placed, so a conflict never
	// leaves a half-inserted record behind.
	// Every index is unique by design, so each indexed attribute is probed;
	// a primary key without an index falls back to a full scan.
	pk := tbl.PrimaryKeyIndex()
	for i := range tbl.Indexes {
		idx := &tbl.Indexes[i]
		pos := tbl.AttributeIndex(idx.AttrName)
		if pos < 0 {
			return fmt.Errorf("%w: index %s covers unknown attribute %s",
				types.ErrAttributeNotFound, idx.Name, idx.AttrName)
		}
		tree, err := rm.openIndex(tbl, idx)
		if err != nil {
			return err
		}
		_, found, err := tree.GetVal(values[pos])
		if err != nil {
			return err
		}
		if found {
			if pos == pk {
				return fmt.Errorf("%w: %s = %s", types.ErrPrimaryKeyConflict,
					idx.AttrName, values[pos])
			}
			return fmt.Errorf("%w: %s = %s on index %s", bplus.ErrDuplicateKey,
				idx.AttrName, values[pos], idx.Name)
		}
	}
	if pk >= 0 && tbl.IndexOn(tbl.Attributes[pk].Name) == nil {
		dup, err := rm.scanForKey(tbl, pk, values[pk])
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: %s = %s", types.ErrPrimaryKeyConflict,
				tbl.Attributes[pk].Name, values[pk])
		}
	}

	blockNum, offset, err := rm.placeRecord(tbl, values)
	if err != nil {
		return err
	}

	// If an index exists on any attribute, it gets the new locator.
	for i := range tbl.Indexes {
		idx := &tbl.Indexes[i]
		pos := tbl.AttributeIndex(idx.AttrName)
		tree, err := rm.openIndex(tbl, idx)
		if err != nil {
			return err
		}
		if err := tree.Add(values[pos], bplus.Locator{Block: blockNum, Offset: offset}); err != nil {
			return fmt.Errorf("index %s: %w", idx.Name, err)
		}
	}

	return nil
}

// placeRecord finds a home for the record and returns its locator.
func (rm *RecordManager) placeRecord(tbl *catalog.Table, values []types.TKey) (int32, int32, error) {
	maxCount := int32(tbl.MaxRecordsPerBlock())

	// 1. First live block with room.
	lastLive := int32(-1)
	ub := tbl.FirstBlockNum
	for ub != -1 {
		blk, err := rm.getBlock(tbl, ub)
		if err != nil {
			return 0, 0, err
		}
		lastLive = ub
		if blk.Count() == maxCount {
			ub = blk.NextBlockNum()
			continue
		}
		slot := blk.Count()
		encodeRecord(tbl, blk, int(slot), values)
		blk.SetCount(slot + 1)
		rm.pool.WriteBlock(blk)
		return ub, slot, nil
	}

	// 2. Reuse the free-list head.
	if tbl.FirstRubbishNum != -1 {
		frb := tbl.FirstRubbishNum
		blk, err := rm.getBlock(tbl, frb)
		if err != nil {
			return 0, 0, err
		}

		// Pop from the free list.
		nextRubbish := blk.NextBlockNum()
		tbl.FirstRubbishNum = nextRubbish
		if nextRubbish != -1 {
			nb, err := rm.getBlock(tbl, nextRubbish)
			if err != nil {
				return 0, 0, err
			}
			nb.SetPrevBlockNum(-1)
			rm.pool.WriteBlock(nb)
		}

		blk, err = rm.getBlock(tbl, frb)
		if err != nil {
			return 0, 0, err
		}
		encodeRecord(tbl, blk, 0, values)
		blk.SetCount(1)

		// Splice at the live-list tail.
		if lastLive == -1 {
			blk.SetPrevBlockNum(-1)
			blk.SetNextBlockNum(-1)
			tbl.FirstBlockNum = frb
		} else {
			lb, err := rm.getBlock(tbl, lastLive)
			if err != nil {
				return 0, 0, err
			}
			lb.SetNextBlockNum(frb)
			rm.pool.WriteBlock(lb)

			blk, err = rm.getBlock(tbl, frb)
			if err != nil {
				return 0, 0, err
			}
			blk.SetPrevBlockNum(lastLive)
			blk.SetNextBlockNum(-1)
		}
		rm.pool.WriteBlock(blk)
		return frb, 0, nil
	}

	// 3. Allocate a new block and prepend it at the live-list head.
	num := tbl.BlockCount
	if tbl.FirstBlockNum != -1 {
		ob, err := rm.getBlock(tbl, tbl.FirstBlockNum)
		if err != nil {
			return 0, 0, err
		}
		ob.SetPrevBlockNum(num)
		rm.pool.WriteBlock(ob)
	}

	blk, err := rm.getBlock(tbl, num)
	if err != nil {
		return 0, 0, err
	}
	blk.SetPrevBlockNum(-1)
	blk.SetNextBlockNum(tbl.FirstBlockNum)
	blk.SetCount(1)
	encodeRecord(tbl, blk, 0, values)
	rm.pool.WriteBlock(blk)

	tbl.FirstBlockNum = num
	tbl.BlockCount++
	return num, 0, nil
}
