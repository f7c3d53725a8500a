// Inspect a B+ tree index through the catalog.
// Usage: go run ./cmd/inspect_idx -d <data-dir> <db> <index>
// Example: go run ./cmd/inspect_idx -d minidb_data school ix_students
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	bplus "minidb/storage_engine/access/indexfile_manager/bplustree"
	"minidb/storage_engine/bufferpool"
	"minidb/storage_engine/catalog"
	diskmanager "minidb/storage_engine/disk_manager"
)

var cli struct {
	DataDir string `short:"d" default:"minidb_data" help:"Data directory."`
	DB      string `arg:"" help:"Database name."`
	Index   string `arg:"" help:"Index name."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("inspect_idx"),
		kong.Description("Dump the structure of one B+ tree index."),
	)

	cm, err := catalog.NewCatalogManager(cli.DataDir)
	if err != nil {
		fail(err)
	}
	db := cm.GetDB(cli.DB)
	if db == nil {
		fail(fmt.Errorf("database %s not found", cli.DB))
	}
	tbl, idx := db.FindIndex(cli.Index)
	if idx == nil {
		fail(fmt.Errorf("index %s not found in database %s", cli.Index, cli.DB))
	}

	disk := diskmanager.NewDiskManager(cli.DataDir)
	pool := bufferpool.NewBufferPool(bufferpool.DefaultCapacity, disk)
	fileID, err := disk.OpenFile(disk.IndexFilePath(db.Name, tbl.Name, idx.Name))
	if err != nil {
		fail(err)
	}

	if err := bplus.Open(idx, fileID, pool).Print(os.Stdout); err != nil {
		fail(err)
	}
	_ = disk.CloseAll()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
