package recordmanager

import (
	"fmt"

	"minidb/storage_engine/catalog"
	"minidb/storage_engine/page"
	"minidb/types"
)

/*
The schema-driven record codec and the WHERE machinery. Every read and write
of record bytes goes through these helpers; nothing else in the engine does
arithmetic on record offsets.

Record layout inside a block: slot i starts at payload byte i*record_length;
attribute j starts at the sum of the lengths of the attributes before it.
*/

// attrOffset returns the byte offset of attribute attrPos within a slot.
func attrOffset(tbl *catalog.Table, attrPos int) int {
	off := 0
	for i := 0; i < attrPos; i++ {
		off += tbl.Attributes[i].Length
	}
	return off
}

// decodeRecord copies slot `offset` of the block out into typed keys.
func decodeRecord(tbl *catalog.Table, blk *page.Block, offset int) []types.TKey {
	slot := blk.Payload()[offset*tbl.RecordLength:]
	keys := make([]types.TKey, 0, len(tbl.Attributes))
	pos := 0
	for i := range tbl.Attributes {
		at := &tbl.Attributes[i]
		k := at.NewKey()
		copy(k.Data, slot[pos:pos+at.Length])
		keys = append(keys, k)
		pos += at.Length
	}
	return keys
}

// encodeRecord writes typed keys into slot `offset` of the block. The
// caller marks the frame dirty through the pool.
func encodeRecord(tbl *catalog.Table, blk *page.Block, offset int, keys []types.TKey) {
	slot := blk.Payload()[offset*tbl.RecordLength:]
	pos := 0
	for i := range tbl.Attributes {
		copy(slot[pos:pos+tbl.Attributes[i].Length], keys[i].Data)
		pos += tbl.Attributes[i].Length
	}
}

// encodeAttribute overwrites a single attribute of slot `offset` in place.
func encodeAttribute(tbl *catalog.Table, blk *page.Block, offset, attrPos int, key types.TKey) {
	slot := blk.Payload()[offset*tbl.RecordLength:]
	off := attrOffset(tbl, attrPos)
	copy(slot[off:off+tbl.Attributes[attrPos].Length], key.Data)
}

// buildValues validates an INSERT value list against the schema and
// materializes it into fixed-length typed keys.
func (rm *RecordManager) buildValues(tbl *catalog.Table, values []types.SQLValue) ([]types.TKey, error) {
	if len(values) != len(tbl.Attributes) {
		return nil, fmt.Errorf("%w: table %s has %d attributes, got %d values",
			types.ErrTypeMismatch, tbl.Name, len(tbl.Attributes), len(values))
	}

	keys := make([]types.TKey, 0, len(values))
	for i, val := range values {
		at := &tbl.Attributes[i]
		if !literalFits(val.Type, at.DataType) {
			return nil, fmt.Errorf("%w: attribute %s is %s, got a %s literal",
				types.ErrTypeMismatch, at.Name, at.DataType, val.Type)
		}
		k := at.NewKey()
		if err := k.ReadValue(val.Text); err != nil {
			return nil, fmt.Errorf("attribute %s: %w", at.Name, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// literalFits reports whether a literal family is assignable to a column
// family. An int literal is an acceptable float.
func literalFits(literal, attr types.DataType) bool {
	if literal == attr {
		return true
	}
	return attr == types.TypeFloat && literal == types.TypeInt
}

// whereKey resolves the attribute a WHERE conjunct names and parses its
// operand into that attribute's key shape.
func (rm *RecordManager) whereKey(tbl *catalog.Table, where types.SQLWhere) (int, types.TKey, error) {
	pos := tbl.AttributeIndex(where.Key)
	if pos < 0 {
		return -1, types.TKey{}, fmt.Errorf("%w: %s.%s", types.ErrAttributeNotFound, tbl.Name, where.Key)
	}
	k := tbl.Attributes[pos].NewKey()
	if err := k.ReadValue(where.Text); err != nil {
		return -1, types.TKey{}, fmt.Errorf("attribute %s: %w", where.Key, err)
	}
	return pos, k, nil
}

// satisfiesAll reports whether a record passes the conjunction of all
// WHERE clauses.
func (rm *RecordManager) satisfiesAll(tbl *catalog.Table, record []types.TKey, wheres []types.SQLWhere) (bool, error) {
	for _, where := range wheres {
		pos, operand, err := rm.whereKey(tbl, where)
		if err != nil {
			return false, err
		}
		if !record[pos].Satisfies(where.Op, operand) {
			return false, nil
		}
	}
	return true, nil
}

// pickIndex chooses an index usable for the WHERE set: its attribute must
// appear in an equality conjunct. Returns the index and the position of the
// matching conjunct, or (nil, -1).
func pickIndex(tbl *catalog.Table, wheres []types.SQLWhere) (*catalog.Index, int) {
	var chosen *catalog.Index
	whereIdx := -1
	for i := range tbl.Indexes {
		idx := &tbl.Indexes[i]
		for j := range wheres {
			if idx.AttrName == wheres[j].Key && wheres[j].Op == types.OpEq {
				chosen = idx
				whereIdx = j
			}
		}
	}
	return chosen, whereIdx
}

// scanForKey walks the live list looking for a record whose attribute at
// attrPos equals key. Used for primary-key checks when no index covers the
// primary key.
func (rm *RecordManager) scanForKey(tbl *catalog.Table, attrPos int, key types.TKey) (bool, error) {
	blockNum := tbl.FirstBlockNum
	for blockNum != -1 {
		blk, err := rm.getBlock(tbl, blockNum)
		if err != nil {
			return false, err
		}
		count := int(blk.Count())
		for j := 0; j < count; j++ {
			record := decodeRecord(tbl, blk, j)
			if record[attrPos].Compare(key) == 0 {
				return true, nil
			}
		}
		blockNum = blk.NextBlockNum()
	}
	return false, nil
}
