package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"minidb/types"
)

func studentTable() types.SQLCreateTable {
	return types.SQLCreateTable{
		TBName: "students",
		Attrs: []types.AttrDef{
			{Name: "id", Type: types.TypeInt, Length: 4, PrimaryKey: true},
			{Name: "name", Type: types.TypeChar, Length: 8},
			{Name: "score", Type: types.TypeFloat, Length: 4},
		},
	}
}

func TestCreateTableComputesLayout(t *testing.T) {
	db := &Database{Name: "school"}
	tbl, err := db.CreateTable(studentTable())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	if tbl.RecordLength != 16 {
		t.Errorf("record length = %d, want 16", tbl.RecordLength)
	}
	if got := tbl.MaxRecordsPerBlock(); got != types.BlockPayloadSize/16 {
		t.Errorf("max records per block = %d", got)
	}
	if tbl.FirstBlockNum != -1 || tbl.FirstRubbishNum != -1 || tbl.BlockCount != 0 {
		t.Error("fresh table must start with empty chains")
	}
	if tbl.PrimaryKeyIndex() != 0 {
		t.Errorf("primary key index = %d, want 0", tbl.PrimaryKeyIndex())
	}

	if _, err := db.CreateTable(studentTable()); !errors.Is(err, types.ErrTableExists) {
		t.Errorf("duplicate table: got %v", err)
	}
}

func TestCreateTableRejectsTwoPrimaryKeys(t *testing.T) {
	db := &Database{Name: "d"}
	_, err := db.CreateTable(types.SQLCreateTable{
		TBName: "t",
		Attrs: []types.AttrDef{
			{Name: "a", Type: types.TypeInt, PrimaryKey: true},
			{Name: "b", Type: types.TypeInt, PrimaryKey: true},
		},
	})
	if err == nil {
		t.Fatal("two primary keys must be rejected")
	}
}

func TestIndexNameIsDatabaseScoped(t *testing.T) {
	db := &Database{Name: "d"}
	_, _ = db.CreateTable(types.SQLCreateTable{TBName: "t1",
		Attrs: []types.AttrDef{{Name: "a", Type: types.TypeInt}}})
	_, _ = db.CreateTable(types.SQLCreateTable{TBName: "t2",
		Attrs: []types.AttrDef{{Name: "a", Type: types.TypeInt}}})

	// Looked up after both creates: the second append may have moved the
	// table list.
	t1 := db.GetTable("t1")

	t1.Indexes = append(t1.Indexes, Index{Name: "ix", AttrName: "a",
		KeyType: types.TypeInt, KeyLen: 4, Root: -1, LeafHead: -1, Rubbish: -1})

	if !db.CheckIfIndexExists("ix") {
		t.Error("index must be visible database-wide")
	}
	owner, ix := db.FindIndex("ix")
	if owner == nil || owner.Name != "t1" || ix == nil {
		t.Error("FindIndex must locate the owning table")
	}

	dropped, err := db.DropIndex("ix")
	if err != nil || dropped.Name != "t1" {
		t.Fatalf("DropIndex: %v", err)
	}
	if db.CheckIfIndexExists("ix") {
		t.Error("index still visible after drop")
	}
	if _, err := db.DropIndex("ix"); !errors.Is(err, types.ErrIndexNotFound) {
		t.Errorf("second drop: got %v", err)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	root := t.TempDir()
	cm, err := NewCatalogManager(root)
	if err != nil {
		t.Fatalf("NewCatalogManager: %v", err)
	}

	if err := cm.CreateDatabase("school"); err != nil {
		t.Fatal(err)
	}
	db := cm.GetDB("school")
	tbl, _ := db.CreateTable(studentTable())
	tbl.FirstBlockNum = 2
	tbl.FirstRubbishNum = 5
	tbl.BlockCount = 7
	tbl.Indexes = append(tbl.Indexes, Index{
		Name: "ix_id", AttrName: "id", KeyType: types.TypeInt, KeyLen: 4,
		Rank: 339, Root: 1, LeafHead: 1, Rubbish: -1, KeyCount: 12, Level: 1, NodeCount: 2,
	})

	if err := cm.WriteArchiveFile(); err != nil {
		t.Fatalf("WriteArchiveFile: %v", err)
	}

	// A fresh manager must load a structurally identical catalog.
	cm2, err := NewCatalogManager(root)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(cm.Databases(), cm2.Databases()) {
		t.Errorf("round trip mismatch:\n saved  %+v\n loaded %+v",
			cm.Databases(), cm2.Databases())
	}

	// No temp file may survive the atomic rewrite.
	if _, err := os.Stat(cm.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after rename")
	}
}

func TestArchiveChecksumRejectsCorruption(t *testing.T) {
	root := t.TempDir()
	cm, _ := NewCatalogManager(root)
	_ = cm.CreateDatabase("d")
	if err := cm.WriteArchiveFile(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(root, ArchiveName)
	data, _ := os.ReadFile(path)
	// Flip a byte inside the payload region.
	for i := len(data) - 2; i > 0; i-- {
		if data[i] == '"' {
			data[i-1] ^= 0x01
			break
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCatalogManager(root); !errors.Is(err, types.ErrIO) {
		t.Errorf("corrupted archive must fail with ErrIO, got %v", err)
	}
}

func TestDatabaseLifecycle(t *testing.T) {
	cm, _ := NewCatalogManager(t.TempDir())
	if err := cm.CreateDatabase("a"); err != nil {
		t.Fatal(err)
	}
	if err := cm.CreateDatabase("a"); !errors.Is(err, types.ErrDatabaseExists) {
		t.Errorf("duplicate database: got %v", err)
	}
	if err := cm.DeleteDatabase("a"); err != nil {
		t.Fatal(err)
	}
	if err := cm.DeleteDatabase("a"); !errors.Is(err, types.ErrDatabaseNotFound) {
		t.Errorf("deleting a missing database: got %v", err)
	}
}
