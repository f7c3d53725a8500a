package catalog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"minidb/types"
)

/*
This file is the main access of the catalog manager.
The catalog manager maintains the metadata of every database — tables,
attributes, primary keys, index metadata and the per-table block-chain
anchors — and persists all of it as one archive file.

The archive is rewritten at every statement boundary that mutates it, and
the rewrite is atomic: the payload goes to a temp file in the same directory
and is renamed over the old archive, so a crash mid-write can never leave
the schema unreadable. A blake3 checksum of the payload is embedded in the
envelope and verified on load; a mismatch surfaces as an i/o error instead
of a silently garbled schema.
*/

// ArchiveName is the file the serialized catalog lives in, under the data
// directory root.
const ArchiveName = "catalog.minidb"

type CatalogManager struct {
	path string
	dbs  []Database
}

// archiveEnvelope is the on-disk shape: checksum over the raw databases
// payload, then the payload itself.
type archiveEnvelope struct {
	Checksum  string          `json:"checksum"`
	Databases json.RawMessage `json:"databases"`
}

// NewCatalogManager loads the archive under root if one exists, otherwise
// starts with an empty catalog.
func NewCatalogManager(root string) (*CatalogManager, error) {
	cm := &CatalogManager{path: filepath.Join(root, ArchiveName)}
	if err := cm.ReadArchiveFile(); err != nil {
		return nil, err
	}
	return cm, nil
}

// Path returns the archive location. Testing hook.
func (cm *CatalogManager) Path() string { return cm.path }

// Databases returns the database list. Callers must treat it as read-only.
func (cm *CatalogManager) Databases() []Database { return cm.dbs }

// GetDB returns the named database, or nil.
func (cm *CatalogManager) GetDB(name string) *Database {
	for i := range cm.dbs {
		if cm.dbs[i].Name == name {
			return &cm.dbs[i]
		}
	}
	return nil
}

// CreateDatabase registers a new empty database.
func (cm *CatalogManager) CreateDatabase(name string) error {
	if cm.GetDB(name) != nil {
		return fmt.Errorf("%w: %s", types.ErrDatabaseExists, name)
	}
	cm.dbs = append(cm.dbs, Database{Name: name})
	return nil
}

// DeleteDatabase removes a database and everything it owns from the schema.
// The caller is responsible for the files on disk.
func (cm *CatalogManager) DeleteDatabase(name string) error {
	for i := range cm.dbs {
		if cm.dbs[i].Name == name {
			cm.dbs = append(cm.dbs[:i], cm.dbs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", types.ErrDatabaseNotFound, name)
}

// CreateTable validates a CREATE TABLE statement against the database and
// appends the new table with its record length computed from the attribute
// lengths. The returned pointer aliases d.Tables and, like GetTable's, stays
// valid only until the table list next changes.
func (d *Database) CreateTable(st types.SQLCreateTable) (*Table, error) {
	if d.GetTable(st.TBName) != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrTableExists, st.TBName)
	}

	tbl := Table{
		Name:            st.TBName,
		FirstBlockNum:   -1,
		FirstRubbishNum: -1,
	}

	pkSeen := false
	for _, def := range st.Attrs {
		if tbl.GetAttribute(def.Name) != nil {
			return nil, fmt.Errorf("duplicate attribute %q in table %s", def.Name, st.TBName)
		}
		length := def.Length
		if def.Type != types.TypeChar {
			length = 4
		}
		if def.Type == types.TypeChar && length <= 0 {
			return nil, fmt.Errorf("%w: char attribute %q needs a positive length", types.ErrTypeMismatch, def.Name)
		}
		role := types.AttrNormal
		if def.PrimaryKey {
			if pkSeen {
				return nil, fmt.Errorf("table %s declares more than one primary key", st.TBName)
			}
			pkSeen = true
			role = types.AttrPrimaryKey
		}
		tbl.Attributes = append(tbl.Attributes, Attribute{
			Name:     def.Name,
			DataType: def.Type,
			Length:   length,
			AttrType: role,
		})
		tbl.RecordLength += length
	}

	if tbl.RecordLength <= 0 || tbl.RecordLength > types.BlockPayloadSize {
		return nil, fmt.Errorf("record length %d does not fit a block payload", tbl.RecordLength)
	}

	d.Tables = append(d.Tables, tbl)
	return &d.Tables[len(d.Tables)-1], nil
}

// DropTable removes the table from the schema. The caller removes files.
func (d *Database) DropTable(name string) error {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			d.Tables = append(d.Tables[:i], d.Tables[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", types.ErrTableNotFound, name)
}

// DropIndex removes the named index from whichever table owns it and
// returns that table, so the caller can delete the index file.
func (d *Database) DropIndex(indexName string) (*Table, error) {
	for i := range d.Tables {
		tbl := &d.Tables[i]
		for j := range tbl.Indexes {
			if tbl.Indexes[j].Name == indexName {
				tbl.Indexes = append(tbl.Indexes[:j], tbl.Indexes[j+1:]...)
				return tbl, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", types.ErrIndexNotFound, indexName)
}

// ReadArchiveFile loads and verifies the archive. A missing archive is a
// fresh installation, not an error.
func (cm *CatalogManager) ReadArchiveFile() error {
	data, err := os.ReadFile(cm.path)
	if err != nil {
		if os.IsNotExist(err) {
			cm.dbs = nil
			return nil
		}
		return fmt.Errorf("%w: failed to read catalog archive: %v", types.ErrIO, err)
	}

	var env archiveEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: catalog archive is not valid: %v", types.ErrIO, err)
	}

	sum := blake3.Sum256(env.Databases)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return fmt.Errorf("%w: catalog archive checksum mismatch", types.ErrIO)
	}

	var dbs []Database
	if err := json.Unmarshal(env.Databases, &dbs); err != nil {
		return fmt.Errorf("%w: catalog archive payload is not valid: %v", types.ErrIO, err)
	}
	cm.dbs = dbs
	return nil
}

// WriteArchiveFile rewrites the archive atomically: the whole archive goes to
// a temp file, which is then renamed over the old one. The temp file is
// closed but not synced before the rename.
func (cm *CatalogManager) WriteArchiveFile() error {
	payload, err := json.Marshal(cm.dbs)
	if err != nil {
		return fmt.Errorf("failed to serialize catalog: %w", err)
	}

	sum := blake3.Sum256(payload)
	env := archiveEnvelope{
		Checksum:  hex.EncodeToString(sum[:]),
		Databases: payload,
	}

	// Compact encoding: the payload must reach disk byte for byte as it was
	// hashed, so ReadArchiveFile can checksum the raw bytes it reads back.
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize catalog envelope: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cm.path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create catalog directory: %v", types.ErrIO, err)
	}

	tmp := cm.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write catalog temp file: %v", types.ErrIO, err)
	}
	if err := os.Rename(tmp, cm.path); err != nil {
		return fmt.Errorf("%w: failed to replace catalog archive: %v", types.ErrIO, err)
	}
	return nil
}
