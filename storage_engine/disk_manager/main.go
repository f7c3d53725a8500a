package diskmanager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"minidb/types"
)

/*
This is the main file of the disk manager.
It owns:
  - OS file handles (os.File), opened on first access and kept open
  - reading/writing raw 4 KiB blocks at block_num * BlockSize (ReadAt, WriteAt)
  - the fileID ↔ path mapping the buffer pool keys its frames on
  - the deterministic on-disk naming for record and index files

Files are opened lazily and stay open until CloseAll (process shutdown) or
until their table/database is dropped. Reading past the current end of a
file yields a zeroed block — that is how a freshly allocated block number
materialises without an explicit grow call.
*/

type FileDescriptor struct {
	FileID uint32
	Path   string
	File   *os.File
}

type DiskManager struct {
	root       string
	files      map[uint32]*FileDescriptor
	byPath     map[string]uint32
	nextFileID uint32
}

func NewDiskManager(root string) *DiskManager {
	return &DiskManager{
		root:       root,
		files:      make(map[uint32]*FileDescriptor),
		byPath:     make(map[string]uint32),
		nextFileID: 1,
	}
}

// Root returns the data directory all block files live under.
func (dm *DiskManager) Root() string { return dm.root }

// RecordFilePath maps (db, table) to the records file.
func (dm *DiskManager) RecordFilePath(db, table string) string {
	return filepath.Join(dm.root, db, table+".records")
}

// IndexFilePath maps (db, table, index) to the index file.
func (dm *DiskManager) IndexFilePath(db, table, index string) string {
	return filepath.Join(dm.root, db, table+"."+index+".index")
}

// FilePath resolves a block file for the given format.
func (dm *DiskManager) FilePath(db, table string, format types.FileFormat, index string) string {
	if format == types.FormatIndex {
		return dm.IndexFilePath(db, table, index)
	}
	return dm.RecordFilePath(db, table)
}

// OpenFile opens or creates a block file and returns its session fileID.
// Opening the same path twice returns the same ID.
func (dm *DiskManager) OpenFile(path string) (uint32, error) {
	if id, ok := dm.byPath[path]; ok {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("%w: failed to create directory for %s: %v", types.ErrIO, path, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to open file %s: %v", types.ErrIO, path, err)
	}

	fileID := dm.nextFileID
	dm.nextFileID++

	dm.files[fileID] = &FileDescriptor{FileID: fileID, Path: path, File: file}
	dm.byPath[path] = fileID

	return fileID, nil
}

// ReadBlock fills buf with block blockNum of the file. A read past the
// current end of file returns a zeroed block.
func (dm *DiskManager) ReadBlock(fileID uint32, blockNum int32, buf []byte) error {
	fd, exists := dm.files[fileID]
	if !exists {
		return fmt.Errorf("%w: file %d not open", types.ErrIO, fileID)
	}
	if len(buf) != types.BlockSize {
		return fmt.Errorf("%w: read buffer is %d bytes, want %d", types.ErrIO, len(buf), types.BlockSize)
	}

	offset := int64(blockNum) * types.BlockSize
	n, err := fd.File.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: failed to read block %d of %s: %v", types.ErrIO, blockNum, fd.Path, err)
	}
	// Short or empty read: the block has never been written. Zero the tail.
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WriteBlock writes buf as block blockNum of the file.
func (dm *DiskManager) WriteBlock(fileID uint32, blockNum int32, buf []byte) error {
	fd, exists := dm.files[fileID]
	if !exists {
		return fmt.Errorf("%w: file %d not open", types.ErrIO, fileID)
	}
	if len(buf) != types.BlockSize {
		return fmt.Errorf("%w: write buffer is %d bytes, want %d", types.ErrIO, len(buf), types.BlockSize)
	}

	offset := int64(blockNum) * types.BlockSize
	if _, err := fd.File.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("%w: failed to write block %d of %s: %v", types.ErrIO, blockNum, fd.Path, err)
	}
	return nil
}

// RemoveFile closes the handle (if open) and deletes the file from disk.
// Returns the fileID that was bound to the path, or 0 if it was never open.
func (dm *DiskManager) RemoveFile(path string) (uint32, error) {
	var closedID uint32
	if id, ok := dm.byPath[path]; ok {
		fd := dm.files[id]
		if fd.File != nil {
			_ = fd.File.Close()
		}
		delete(dm.files, id)
		delete(dm.byPath, path)
		closedID = id
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return closedID, fmt.Errorf("%w: failed to remove %s: %v", types.ErrIO, path, err)
	}
	return closedID, nil
}

// CloseUnder closes every open file whose path sits under dir and returns
// their fileIDs, so the caller can discard cached frames before the
// directory is deleted.
func (dm *DiskManager) CloseUnder(dir string) []uint32 {
	prefix := dir + string(filepath.Separator)
	var closed []uint32
	for path, id := range dm.byPath {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		fd := dm.files[id]
		if fd.File != nil {
			_ = fd.File.Close()
		}
		delete(dm.files, id)
		delete(dm.byPath, path)
		closed = append(closed, id)
	}
	return closed
}

// Sync flushes every open file to stable storage.
func (dm *DiskManager) Sync() error {
	for _, fd := range dm.files {
		if fd.File == nil {
			continue
		}
		if err := fd.File.Sync(); err != nil {
			return fmt.Errorf("%w: failed to sync %s: %v", types.ErrIO, fd.Path, err)
		}
	}
	return nil
}

// CloseAll syncs and closes every open file. Called at process shutdown.
func (dm *DiskManager) CloseAll() error {
	var lastErr error
	for id, fd := range dm.files {
		if fd.File != nil {
			if err := fd.File.Sync(); err != nil {
				lastErr = err
			}
			if err := fd.File.Close(); err != nil {
				lastErr = err
			}
			fd.File = nil
		}
		delete(dm.byPath, fd.Path)
		delete(dm.files, id)
	}
	if lastErr != nil {
		return fmt.Errorf("%w: close: %v", types.ErrIO, lastErr)
	}
	return nil
}
