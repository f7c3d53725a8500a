package catalog

import (
	"minidb/types"
)

/*
Schema structures. The whole catalog serializes as one archive file; every
field that must survive a restart carries a json tag. Anchor fields the
record manager and B+ tree mutate (list heads, block counts, tree metadata)
live here so a single archive write persists them all.
*/

// Attribute is one column: name, family, byte length and role.
type Attribute struct {
	Name     string         `json:"name"`
	DataType types.DataType `json:"data_type"`
	Length   int            `json:"length"`
	AttrType int            `json:"attr_type"` // AttrNormal or AttrPrimaryKey
}

func (a *Attribute) IsPrimaryKey() bool { return a.AttrType == types.AttrPrimaryKey }

// NewKey returns a zero TKey shaped like this attribute.
func (a *Attribute) NewKey() types.TKey {
	return types.NewTKey(a.DataType, a.Length)
}

// Index is the persistent metadata of one B+ tree. The tree code mutates
// the anchor fields in place through a pointer into the owning table.
type Index struct {
	Name     string         `json:"name"`
	AttrName string         `json:"attr_name"`
	KeyType  types.DataType `json:"key_type"`
	KeyLen   int            `json:"key_len"`

	// Rank is the fanout: the maximum number of keys a node holds,
	// computed from the block payload and key length at creation.
	Rank int `json:"rank"`

	Root      int32 `json:"root"`      // -1 = empty tree
	LeafHead  int32 `json:"leaf_head"` // leftmost leaf, -1 when empty
	Rubbish   int32 `json:"rubbish"`   // head of the free-node chain, -1 when empty
	KeyCount  int   `json:"key_count"`
	Level     int   `json:"level"` // depth of every leaf; 0 when empty
	NodeCount int32 `json:"node_count"`
}

// MinKeys is the underflow threshold for non-root nodes. Half the fanout,
// rounded down: an internal merge joins min-1 keys, one separator and min
// keys, and 2*min must not exceed the fanout.
func (ix *Index) MinKeys() int { return ix.Rank / 2 }

// NewKey returns a zero TKey shaped like this index's keys.
func (ix *Index) NewKey() types.TKey {
	return types.NewTKey(ix.KeyType, ix.KeyLen)
}

// Table owns its attributes, its indexes and the three anchors of the two
// per-table block chains.
type Table struct {
	Name         string `json:"name"`
	RecordLength int    `json:"record_length"`

	FirstBlockNum   int32 `json:"first_block_num"`   // live-list head, -1 = empty
	FirstRubbishNum int32 `json:"first_rubbish_num"` // free-list head, -1 = empty
	BlockCount      int32 `json:"block_count"`       // blocks ever allocated

	Attributes []Attribute `json:"attributes"`
	Indexes    []Index     `json:"indexes"`
}

// GetAttribute returns the named attribute, or nil.
func (t *Table) GetAttribute(name string) *Attribute {
	for i := range t.Attributes {
		if t.Attributes[i].Name == name {
			return &t.Attributes[i]
		}
	}
	return nil
}

// AttributeIndex returns the position of the named attribute, or -1.
func (t *Table) AttributeIndex(name string) int {
	for i := range t.Attributes {
		if t.Attributes[i].Name == name {
			return i
		}
	}
	return -1
}

// PrimaryKeyIndex returns the position of the primary-key attribute, or -1.
func (t *Table) PrimaryKeyIndex() int {
	for i := range t.Attributes {
		if t.Attributes[i].IsPrimaryKey() {
			return i
		}
	}
	return -1
}

// MaxRecordsPerBlock is how many fixed-length records fit in one payload.
func (t *Table) MaxRecordsPerBlock() int {
	return types.BlockPayloadSize / t.RecordLength
}

// GetIndex returns the named index on this table, or nil.
func (t *Table) GetIndex(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// IndexOn returns the index built over the named attribute, or nil.
func (t *Table) IndexOn(attrName string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].AttrName == attrName {
			return &t.Indexes[i]
		}
	}
	return nil
}

// Database owns tables. Index names are scoped to the database, not the
// table, which is why index existence checks walk every table.
type Database struct {
	Name   string  `json:"name"`
	Tables []Table `json:"tables"`
}

// GetTable returns the named table, or nil.
func (d *Database) GetTable(name string) *Table {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i]
		}
	}
	return nil
}

// CheckIfIndexExists reports whether any table owns an index of this name.
func (d *Database) CheckIfIndexExists(indexName string) bool {
	_, ix := d.FindIndex(indexName)
	return ix != nil
}

// FindIndex locates an index by name across all tables of the database.
func (d *Database) FindIndex(indexName string) (*Table, *Index) {
	for i := range d.Tables {
		if ix := d.Tables[i].GetIndex(indexName); ix != nil {
			return &d.Tables[i], ix
		}
	}
	return nil, nil
}
