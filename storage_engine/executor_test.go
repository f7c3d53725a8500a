package storageengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	lex "minidb/query_parser/lexer"
	"minidb/query_parser/parser"
	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
	"minidb/storage_engine/catalog"
	"minidb/types"
)

func newTestEngine(t *testing.T) *StorageEngine {
	t.Helper()
	se, err := NewStorageEngine(t.TempDir(), 300)
	if err != nil {
		t.Fatalf("NewStorageEngine: %v", err)
	}
	return se
}

func run(t *testing.T, se *StorageEngine, sql string) *ExecResult {
	t.Helper()
	res, err := tryRun(se, sql)
	if err != nil {
		t.Fatalf("%s: %v", sql, err)
	}
	return res
}

func tryRun(se *StorageEngine, sql string) (*ExecResult, error) {
	stmt, err := parser.New(lex.New(sql)).ParseStatement()
	if err != nil {
		return nil, err
	}
	return se.Execute(stmt)
}

// liveAndFreeSets walks both block chains of a table, checking that each is
// a well-formed doubly linked list, and returns the block sets.
func liveAndFreeSets(t *testing.T, se *StorageEngine, tbl *catalog.Table) (map[int32]bool, map[int32]bool) {
	t.Helper()
	fileID, err := se.DiskManager.OpenFile(se.DiskManager.RecordFilePath(se.currDB, tbl.Name))
	if err != nil {
		t.Fatalf("open records file: %v", err)
	}

	walk := func(head int32, wantEmpty bool) map[int32]bool {
		set := make(map[int32]bool)
		prev := int32(-1)
		num := head
		for num != -1 {
			if num < 0 || num >= tbl.BlockCount {
				t.Fatalf("block %d outside [0,%d)", num, tbl.BlockCount)
			}
			if set[num] {
				t.Fatalf("block %d appears twice in one chain", num)
			}
			set[num] = true

			blk, err := se.BufferPool.GetBlock(fileID, num)
			if err != nil {
				t.Fatalf("GetBlock(%d): %v", num, err)
			}
			if blk.PrevBlockNum() != prev {
				t.Fatalf("block %d prev=%d, want %d", num, blk.PrevBlockNum(), prev)
			}
			if wantEmpty && blk.Count() != 0 {
				t.Fatalf("free block %d has %d records", num, blk.Count())
			}
			if !wantEmpty && (blk.Count() < 1 || int(blk.Count()) > tbl.MaxRecordsPerBlock()) {
				t.Fatalf("live block %d has %d records", num, blk.Count())
			}
			prev = num
			num = blk.NextBlockNum()
		}
		return set
	}

	live := walk(tbl.FirstBlockNum, false)
	free := walk(tbl.FirstRubbishNum, true)
	for num := range free {
		if live[num] {
			t.Fatalf("block %d is on both chains", num)
		}
	}
	if len(live)+len(free) != int(tbl.BlockCount) {
		t.Fatalf("live(%d) + free(%d) != blockCount(%d)", len(live), len(free), tbl.BlockCount)
	}
	return live, free
}

func table(t *testing.T, se *StorageEngine, name string) *catalog.Table {
	t.Helper()
	db := se.CatalogManager.GetDB(se.currDB)
	if db == nil {
		t.Fatal("no current database")
	}
	tbl := db.GetTable(name)
	if tbl == nil {
		t.Fatalf("table %s not found", name)
	}
	return tbl
}

// TestPrimaryKeyConflictScenario is end-to-end scenario 1: the second insert
// of the same primary key fails and the table keeps exactly one row.
func TestPrimaryKeyConflictScenario(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")
	run(t, se, `INSERT INTO t VALUES (1, "alice")`)

	if _, err := tryRun(se, `INSERT INTO t VALUES (1, "bob")`); !errors.Is(err, types.ErrPrimaryKeyConflict) {
		t.Fatalf("duplicate pk: got %v", err)
	}

	res := run(t, se, "SELECT * FROM t")
	if len(res.Select.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Select.Rows))
	}
	if res.Select.Rows[0][0] != "1" || res.Select.Rows[0][1] != "alice" {
		t.Errorf("row = %v", res.Select.Rows[0])
	}
}

// TestBlockAllocationScenario is scenario 2: 682 rows of a 12-byte record
// (340 per block) fill exactly three blocks, and the chains stay sound.
func TestBlockAllocationScenario(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")

	for i := 1; i <= 682; i++ {
		run(t, se, fmt.Sprintf(`INSERT INTO t VALUES (%d, "r%d")`, i, i%100))
	}

	tbl := table(t, se, "t")
	if tbl.RecordLength != 12 || tbl.MaxRecordsPerBlock() != 340 {
		t.Fatalf("layout: recordLength=%d maxRecords=%d", tbl.RecordLength, tbl.MaxRecordsPerBlock())
	}
	if tbl.BlockCount != 3 {
		t.Fatalf("blockCount = %d, want 3", tbl.BlockCount)
	}

	live, free := liveAndFreeSets(t, se, tbl)
	if len(live) != 3 || len(free) != 0 {
		t.Fatalf("live=%d free=%d", len(live), len(free))
	}

	res := run(t, se, "SELECT * FROM t")
	if len(res.Select.Rows) != 682 {
		t.Fatalf("SELECT * returned %d rows, want 682", len(res.Select.Rows))
	}
}

// TestIndexedLookupScenario is scenario 3: an index created over a populated
// table carries one entry per row and answers point queries.
func TestIndexedLookupScenario(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")
	for i := 1; i <= 682; i++ {
		run(t, se, fmt.Sprintf(`INSERT INTO t VALUES (%d, "r%d")`, i, i%100))
	}

	run(t, se, "CREATE INDEX ix ON t (id)")

	tbl := table(t, se, "t")
	idx := tbl.GetIndex("ix")
	if idx == nil {
		t.Fatal("index ix missing from catalog")
	}
	if idx.KeyCount != 682 {
		t.Fatalf("index keyCount = %d, want 682", idx.KeyCount)
	}

	res := run(t, se, "SELECT * FROM t WHERE id = 500")
	if len(res.Select.Rows) != 1 || res.Select.Rows[0][0] != "500" {
		t.Fatalf("indexed lookup: %v", res.Select.Rows)
	}

	// Point lookups through the index must resolve every row (P4).
	for i := 1; i <= 682; i++ {
		res := run(t, se, fmt.Sprintf("SELECT * FROM t WHERE id = %d", i))
		if len(res.Select.Rows) != 1 {
			t.Fatalf("id=%d: %d rows", i, len(res.Select.Rows))
		}
	}
}

// TestRangeDeleteScenario is scenario 4: a range delete keeps the chains,
// the counts and the index in agreement.
func TestRangeDeleteScenario(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")
	for i := 1; i <= 682; i++ {
		run(t, se, fmt.Sprintf(`INSERT INTO t VALUES (%d, "r%d")`, i, i%100))
	}
	run(t, se, "CREATE INDEX ix ON t (id)")

	res := run(t, se, "DELETE FROM t WHERE id < 100")
	if res.Message != "99 row(s) deleted" {
		t.Fatalf("delete message: %q", res.Message)
	}

	tbl := table(t, se, "t")
	liveAndFreeSets(t, se, tbl)

	if tbl.GetIndex("ix").KeyCount != 682-99 {
		t.Fatalf("index keyCount = %d after delete", tbl.GetIndex("ix").KeyCount)
	}

	res = run(t, se, "SELECT * FROM t")
	if len(res.Select.Rows) != 682-99 {
		t.Fatalf("%d rows after delete", len(res.Select.Rows))
	}
	// Uniqueness of the primary key survives the swaps (P3), and every
	// survivor still resolves through the index (P4).
	seen := make(map[string]bool)
	for _, row := range res.Select.Rows {
		if seen[row[0]] {
			t.Fatalf("duplicate pk %s after delete", row[0])
		}
		seen[row[0]] = true
	}
	for i := 100; i <= 682; i++ {
		res := run(t, se, fmt.Sprintf("SELECT * FROM t WHERE id = %d", i))
		if len(res.Select.Rows) != 1 {
			t.Fatalf("id=%d unresolvable after delete", i)
		}
	}

	// Emptying every record of the first allocated block moves it to the
	// free list.
	run(t, se, "DELETE FROM t WHERE id <= 340")
	tbl = table(t, se, "t")
	_, free := liveAndFreeSets(t, se, tbl)
	if len(free) == 0 {
		t.Fatal("an emptied block must move to the free list")
	}
}

// TestFreeBlockReuseScenario is scenario 5 on a two-records-per-block table:
// a freed block is reused before the file grows.
func TestFreeBlockReuseScenario(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE r (id int primary key, pad char(2000))")

	tbl := table(t, se, "r")
	if tbl.MaxRecordsPerBlock() != 2 {
		t.Fatalf("maxRecords = %d, want 2", tbl.MaxRecordsPerBlock())
	}

	for i := 1; i <= 5; i++ {
		run(t, se, fmt.Sprintf(`INSERT INTO r VALUES (%d, "p%d")`, i, i))
	}
	if tbl.BlockCount != 3 {
		t.Fatalf("blockCount = %d, want 3", tbl.BlockCount)
	}

	// Rows 1 and 2 fill the first allocated block; deleting both frees it.
	run(t, se, "DELETE FROM r WHERE id = 1")
	run(t, se, "DELETE FROM r WHERE id = 2")
	if tbl.FirstRubbishNum != 0 {
		t.Fatalf("firstRubbishNum = %d, want 0", tbl.FirstRubbishNum)
	}

	// Fill the remaining live space, then one more: the free block must be
	// reused and the file must not grow.
	run(t, se, `INSERT INTO r VALUES (6, "p6")`)
	run(t, se, `INSERT INTO r VALUES (7, "p7")`)
	if tbl.BlockCount != 3 {
		t.Fatalf("blockCount grew to %d before the free list drained", tbl.BlockCount)
	}
	if tbl.FirstRubbishNum != -1 {
		t.Fatalf("free list should be drained, head=%d", tbl.FirstRubbishNum)
	}

	live, free := liveAndFreeSets(t, se, tbl)
	if len(live) != 3 || len(free) != 0 {
		t.Fatalf("live=%d free=%d", len(live), len(free))
	}

	res := run(t, se, "SELECT * FROM r")
	if len(res.Select.Rows) != 5 {
		t.Fatalf("%d rows, want 5", len(res.Select.Rows))
	}
}

// TestUpdatePrimaryKeyScenario is scenario 6: an indexed primary key update
// swaps the key and keeps the locator honest.
func TestUpdatePrimaryKeyScenario(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")
	for i := 40; i <= 45; i++ {
		run(t, se, fmt.Sprintf(`INSERT INTO t VALUES (%d, "n%d")`, i, i))
	}
	run(t, se, "CREATE INDEX ix ON t (id)")

	res := run(t, se, "UPDATE t SET id = 999 WHERE id = 42")
	if res.Message != "1 row(s) updated" {
		t.Fatalf("update message: %q", res.Message)
	}

	if r := run(t, se, "SELECT * FROM t WHERE id = 42"); len(r.Select.Rows) != 0 {
		t.Fatal("id 42 still resolvable after update")
	}
	r := run(t, se, "SELECT * FROM t WHERE id = 999")
	if len(r.Select.Rows) != 1 || r.Select.Rows[0][1] != "n42" {
		t.Fatalf("id 999 lookup: %v", r.Select.Rows)
	}

	// Updating onto an existing key is a conflict.
	if _, err := tryRun(se, "UPDATE t SET id = 999 WHERE id = 43"); !errors.Is(err, types.ErrPrimaryKeyConflict) {
		t.Fatalf("pk conflict on update: got %v", err)
	}
}

// TestSwapWithLastRepointsIndex pins down the §9 fix: after a middle-of-block
// delete, the relocated record keeps resolving through the index.
func TestSwapWithLastRepointsIndex(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")
	run(t, se, "CREATE INDEX ix ON t (id)")
	for i := 1; i <= 10; i++ {
		run(t, se, fmt.Sprintf(`INSERT INTO t VALUES (%d, "n%d")`, i, i))
	}

	// Row 10 sits in the last slot; deleting row 5 swaps it into slot 4.
	run(t, se, "DELETE FROM t WHERE id = 5")

	res := run(t, se, "SELECT * FROM t WHERE id = 10")
	if len(res.Select.Rows) != 1 || res.Select.Rows[0][1] != "n10" {
		t.Fatalf("moved record lost: %v", res.Select.Rows)
	}

	tbl := table(t, se, "t")
	idx := tbl.GetIndex("ix")
	fileID, err := se.DiskManager.OpenFile(se.DiskManager.IndexFilePath("d", "t", "ix"))
	if err != nil {
		t.Fatal(err)
	}
	tree := bplus.Open(idx, fileID, se.BufferPool)
	key := types.NewTKey(types.TypeInt, 4)
	_ = key.ReadValue("10")
	loc, found, err := tree.GetVal(key)
	if err != nil || !found {
		t.Fatalf("GetVal(10): %v found=%v", err, found)
	}
	if loc.Offset != 4 {
		t.Errorf("locator offset = %d, want the victim's slot 4", loc.Offset)
	}
}

func TestSelectCacheSeesWrites(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")
	run(t, se, `INSERT INTO t VALUES (1, "a")`)

	if res := run(t, se, "SELECT * FROM t"); len(res.Select.Rows) != 1 {
		t.Fatalf("first select: %d rows", len(res.Select.Rows))
	}
	run(t, se, `INSERT INTO t VALUES (2, "b")`)
	if res := run(t, se, "SELECT * FROM t"); len(res.Select.Rows) != 2 {
		t.Fatalf("select after insert: %d rows; stale cache", len(res.Select.Rows))
	}
}

func TestStatementErrors(t *testing.T) {
	se := newTestEngine(t)

	if _, err := tryRun(se, "SELECT * FROM t"); !errors.Is(err, types.ErrNoDatabaseSelected) {
		t.Errorf("no database: got %v", err)
	}
	if _, err := tryRun(se, "USE nope"); !errors.Is(err, types.ErrDatabaseNotFound) {
		t.Errorf("missing database: got %v", err)
	}

	run(t, se, "CREATE DATABASE d")
	if _, err := tryRun(se, "CREATE DATABASE d"); !errors.Is(err, types.ErrDatabaseExists) {
		t.Errorf("duplicate database: got %v", err)
	}
	run(t, se, "USE d")

	if _, err := tryRun(se, "SELECT * FROM nope"); !errors.Is(err, types.ErrTableNotFound) {
		t.Errorf("missing table: got %v", err)
	}

	run(t, se, "CREATE TABLE t (id int primary key, name char(4))")
	if _, err := tryRun(se, `INSERT INTO t VALUES ("x", "y")`); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("type mismatch: got %v", err)
	}
	if _, err := tryRun(se, `INSERT INTO t VALUES (1, "toolong")`); !errors.Is(err, types.ErrValueLengthOverflow) {
		t.Errorf("length overflow: got %v", err)
	}
	if _, err := tryRun(se, `INSERT INTO t VALUES (1)`); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("arity: got %v", err)
	}
	if _, err := tryRun(se, "SELECT * FROM t WHERE nope = 1"); !errors.Is(err, types.ErrAttributeNotFound) {
		t.Errorf("missing attribute: got %v", err)
	}

	run(t, se, "CREATE INDEX ix ON t (id)")
	if _, err := tryRun(se, "CREATE INDEX ix ON t (name)"); !errors.Is(err, types.ErrIndexExists) {
		t.Errorf("duplicate index name: got %v", err)
	}
	if _, err := tryRun(se, "DROP INDEX nope"); !errors.Is(err, types.ErrIndexNotFound) {
		t.Errorf("missing index: got %v", err)
	}
	if _, err := tryRun(se, "DROP TABLE nope"); !errors.Is(err, types.ErrTableNotFound) {
		t.Errorf("drop missing table: got %v", err)
	}
}

func TestExecScript(t *testing.T) {
	se := newTestEngine(t)
	script := filepath.Join(t.TempDir(), "seed.sql")
	body := `CREATE DATABASE d;
USE d;
CREATE TABLE t (id int primary key, name char(8));
INSERT INTO t VALUES (1, "alice");
INSERT INTO t
VALUES (2, "bob");
`
	if err := os.WriteFile(script, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	res := run(t, se, fmt.Sprintf("EXEC %q", script))
	if res.Message == "" {
		t.Error("exec should report what it ran")
	}

	r := run(t, se, "SELECT * FROM t")
	if len(r.Select.Rows) != 2 {
		t.Fatalf("script inserted %d rows, want 2", len(r.Select.Rows))
	}

	// A failing statement stops the script but not the session.
	bad := filepath.Join(t.TempDir(), "bad.sql")
	_ = os.WriteFile(bad, []byte("INSERT INTO t VALUES (1, \"dup\");\nINSERT INTO t VALUES (3, \"c\");\n"), 0644)
	if _, err := tryRun(se, fmt.Sprintf("EXEC %q", bad)); !errors.Is(err, types.ErrPrimaryKeyConflict) {
		t.Fatalf("script error: got %v", err)
	}
	if r := run(t, se, "SELECT * FROM t"); len(r.Select.Rows) != 2 {
		t.Fatalf("statement after the failure must not run; got %d rows", len(r.Select.Rows))
	}
}

func TestEngineSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	se, err := NewStorageEngine(root, 300)
	if err != nil {
		t.Fatal(err)
	}
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key, name char(8))")
	run(t, se, "CREATE INDEX ix ON t (id)")
	for i := 1; i <= 50; i++ {
		run(t, se, fmt.Sprintf(`INSERT INTO t VALUES (%d, "n%d")`, i, i))
	}
	if err := se.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	se2, err := NewStorageEngine(root, 300)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	run(t, se2, "USE d")
	res := run(t, se2, "SELECT * FROM t WHERE id = 37")
	if len(res.Select.Rows) != 1 || res.Select.Rows[0][1] != "n37" {
		t.Fatalf("restart lookup: %v", res.Select.Rows)
	}
	if table(t, se2, "t").GetIndex("ix").KeyCount != 50 {
		t.Error("index metadata lost across restart")
	}
}

func TestDropTableRemovesFiles(t *testing.T) {
	se := newTestEngine(t)
	run(t, se, "CREATE DATABASE d")
	run(t, se, "USE d")
	run(t, se, "CREATE TABLE t (id int primary key)")
	run(t, se, "CREATE INDEX ix ON t (id)")
	run(t, se, "INSERT INTO t VALUES (1)")

	recordsPath := se.DiskManager.RecordFilePath("d", "t")
	indexPath := se.DiskManager.IndexFilePath("d", "t", "ix")

	run(t, se, "DROP TABLE t")
	if _, err := os.Stat(recordsPath); !os.IsNotExist(err) {
		t.Error("records file survived DROP TABLE")
	}
	if _, err := os.Stat(indexPath); !os.IsNotExist(err) {
		t.Error("index file survived DROP TABLE")
	}
	if _, err := tryRun(se, "SELECT * FROM t"); !errors.Is(err, types.ErrTableNotFound) {
		t.Errorf("dropped table still selectable: %v", err)
	}
}
