package recordmanager

import (
	"minidb/storage_engine/catalog"
	"minidb/types"
)

/*
SELECT. A single equality conjunct over an indexed attribute turns the scan
into one point lookup; anything else walks the live list head to tail and
filters by the conjunction of all WHERE clauses.
*/

// Rows is a materialized result set: the schema the records follow plus the
// decoded records themselves.
type Rows struct {
	Attributes []catalog.Attribute
	Records    [][]types.TKey
}

func (rm *RecordManager) Select(st types.SQLSelect) (*Rows, error) {
	tbl, err := rm.table(st.TBName)
	if err != nil {
		return nil, err
	}

	// Every conjunct must name an attribute and carry an operand of its
	// type, even when no record is ever compared.
	for _, where := range st.Wheres {
		if _, _, err := rm.whereKey(tbl, where); err != nil {
			return nil, err
		}
	}

	rows := &Rows{Attributes: tbl.Attributes}

	if idx, whereIdx := pickIndex(tbl, st.Wheres); idx != nil {
		// Point lookup: at most one locator.
		destKey := idx.NewKey()
		if err := destKey.ReadValue(st.Wheres[whereIdx].Text); err != nil {
			return nil, err
		}
		tree, err := rm.openIndex(tbl, idx)
		if err != nil {
			return nil, err
		}
		loc, found, err := tree.GetVal(destKey)
		if err != nil {
			return nil, err
		}
		if !found {
			return rows, nil
		}

		blk, err := rm.getBlock(tbl, loc.Block)
		if err != nil {
			return nil, err
		}
		record := decodeRecord(tbl, blk, int(loc.Offset))
		sats, err := rm.satisfiesAll(tbl, record, st.Wheres)
		if err != nil {
			return nil, err
		}
		if sats {
			rows.Records = append(rows.Records, record)
		}
		return rows, nil
	}

	// Full scan of the live list.
	blockNum := tbl.FirstBlockNum
	for blockNum != -1 {
		blk, err := rm.getBlock(tbl, blockNum)
		if err != nil {
			return nil, err
		}
		count := int(blk.Count())
		next := blk.NextBlockNum()
		for j := 0; j < count; j++ {
			record := decodeRecord(tbl, blk, j)
			sats, err := rm.satisfiesAll(tbl, record, st.Wheres)
			if err != nil {
				return nil, err
			}
			if sats {
				rows.Records = append(rows.Records, record)
			}
		}
		blockNum = next
	}
	return rows, nil
}
