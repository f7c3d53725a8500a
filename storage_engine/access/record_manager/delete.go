package recordmanager

import (
	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
	"minidb/storage_engine/catalog"
	"minidb/types"
)

/*
DELETE. A victim is removed by swapping the block's last record into its
slot, so the live records of a block are always a prefix of its slots. The
swap invalidates the moved record's index locators, so every index covering
a table attribute gets the moved record's entry repointed as part of the
same operation. A block whose record count reaches zero leaves the live
list and is prepended to the free list.
*/

func (rm *RecordManager) Delete(st types.SQLDelete) (int, error) {
	tbl, err := rm.table(st.TBName)
	if err != nil {
		return 0, err
	}

	if idx, whereIdx := pickIndex(tbl, st.Wheres); idx != nil {
		destKey := idx.NewKey()
		if err := destKey.ReadValue(st.Wheres[whereIdx].Text); err != nil {
			return 0, err
		}
		tree, err := rm.openIndex(tbl, idx)
		if err != nil {
			return 0, err
		}
		loc, found, err := tree.GetVal(destKey)
		if err != nil || !found {
			return 0, err
		}

		blk, err := rm.getBlock(tbl, loc.Block)
		if err != nil {
			return 0, err
		}
		victim := decodeRecord(tbl, blk, int(loc.Offset))
		sats, err := rm.satisfiesAll(tbl, victim, st.Wheres)
		if err != nil || !sats {
			return 0, err
		}
		if err := rm.deleteRecordAt(tbl, loc.Block, int(loc.Offset), victim); err != nil {
			return 0, err
		}
		return 1, nil
	}

	// Full scan. The next pointer is captured before any unlink can rewrite
	// it, and a matched slot is re-examined because the swap put a fresh
	// record there.
	deleted := 0
	blockNum := tbl.FirstBlockNum
	for blockNum != -1 {
		blk, err := rm.getBlock(tbl, blockNum)
		if err != nil {
			return deleted, err
		}
		next := blk.NextBlockNum()

		j := 0
		for j < int(blk.Count()) {
			victim := decodeRecord(tbl, blk, j)
			sats, err := rm.satisfiesAll(tbl, victim, st.Wheres)
			if err != nil {
				return deleted, err
			}
			if !sats {
				j++
				continue
			}
			if err := rm.deleteRecordAt(tbl, blockNum, j, victim); err != nil {
				return deleted, err
			}
			deleted++
		}
		blockNum = next
	}
	return deleted, nil
}

// deleteRecordAt removes the record at (blockNum, offset): swap-with-last,
// index maintenance for both the victim and the moved record, and free-list
// handling when the block empties.
func (rm *RecordManager) deleteRecordAt(tbl *catalog.Table, blockNum int32, offset int, victim []types.TKey) error {
	blk, err := rm.getBlock(tbl, blockNum)
	if err != nil {
		return err
	}

	last := int(blk.Count()) - 1
	rl := tbl.RecordLength
	payload := blk.Payload()

	var moved []types.TKey
	if offset != last {
		moved = decodeRecord(tbl, blk, last)
		copy(payload[offset*rl:(offset+1)*rl], payload[last*rl:(last+1)*rl])
	}
	blk.SetCount(int32(last))
	rm.pool.WriteBlock(blk)

	// Index maintenance: drop the victim's keys and repoint the moved
	// record's entries at its new slot.
	for i := range tbl.Indexes {
		idx := &tbl.Indexes[i]
		pos := tbl.AttributeIndex(idx.AttrName)
		tree, err := rm.openIndex(tbl, idx)
		if err != nil {
			return err
		}
		if err := tree.Remove(victim[pos]); err != nil {
			return err
		}
		if moved != nil {
			if err := tree.UpdateVal(moved[pos], bplus.Locator{Block: blockNum, Offset: int32(offset)}); err != nil {
				return err
			}
		}
	}

	if last > 0 {
		return nil
	}

	// The block is empty: unlink it from the live list and prepend it to
	// the free list.
	blk, err = rm.getBlock(tbl, blockNum)
	if err != nil {
		return err
	}
	prev := blk.PrevBlockNum()
	next := blk.NextBlockNum()

	if prev != -1 {
		pb, err := rm.getBlock(tbl, prev)
		if err != nil {
			return err
		}
		pb.SetNextBlockNum(next)
		rm.pool.WriteBlock(pb)
	} else {
		tbl.FirstBlockNum = next
	}
	if next != -1 {
		nb, err := rm.getBlock(tbl, next)
		if err != nil {
			return err
		}
		nb.SetPrevBlockNum(prev)
		rm.pool.WriteBlock(nb)
	}

	if tbl.FirstRubbishNum != -1 {
		fb, err := rm.getBlock(tbl, tbl.FirstRubbishNum)
		if err != nil {
			return err
		}
		fb.SetPrevBlockNum(blockNum)
		rm.pool.WriteBlock(fb)
	}

	blk, err = rm.getBlock(tbl, blockNum)
	if err != nil {
		return err
	}
	blk.SetPrevBlockNum(-1)
	blk.SetNextBlockNum(tbl.FirstRubbishNum)
	rm.pool.WriteBlock(blk)
	tbl.FirstRubbishNum = blockNum
	return nil
}
