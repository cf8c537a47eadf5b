// Package filesys implements the top-level file system (spec §3, §4.6):
// boot/format, hierarchical path resolution, and create/open/remove
// atop Directory/FileHeader/OpenFile/SynchDisk.
//
// Boot's well-known-sector bootstrap is grounded on the teacher's
// mkfs.go (initFs: encode and write-direct the null and root inodes,
// then markAlloc the reserved region of the bitmap), adapted from the
// teacher's flat inode-number space to the spec's BitMap-backed
// FileHeader/Directory files at fixed sectors 0 and 1. Path resolution
// is supplemented from original_source/code/filesys/filesys.cc, since
// the teacher's NFS layer has no concept of a multi-component path.
package filesys

import (
	"fmt"
	"io"
	"strings"

	"github.com/rodaine/table"

	"github.com/go-nachos/nachos/bitmap"
	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/directory"
	"github.com/go-nachos/nachos/filehdr"
	"github.com/go-nachos/nachos/logging"
	"github.com/go-nachos/nachos/openfile"
	"github.com/go-nachos/nachos/synchdisk"
)

// Well-known sectors (spec §3, §6): the free-map file's header lives at
// sector 0, the root directory file's header at sector 1.
const (
	FreeMapSector = 0
	RootSector    = 1
)

// FileSystem is the top-level namespace over one SynchDisk.
type FileSystem struct {
	cfg     config.Config
	sd      *synchdisk.SynchDisk
	freeMap *bitmap.BitMap
}

// Boot initializes (format == true) or reopens the free-map and root
// directory files at their well-known sectors (spec §4.6).
func Boot(sd *synchdisk.SynchDisk, cfg config.Config, format bool) *FileSystem {
	fs := &FileSystem{cfg: cfg, sd: sd}

	if !format {
		fs.freeMap = bitmap.New(cfg.NumSectors)
		hdr := filehdr.New(cfg)
		hdr.FetchFrom(sd, FreeMapSector)
		buf := make([]byte, hdr.NumBytes)
		of := openfile.Open(sd, cfg, FreeMapSector)
		of.ReadAt(buf, uint32(len(buf)), 0)
		of.Close()
		fs.freeMap.Decode(buf)
		return fs
	}

	logging.DPrintf(0, "filesys: Boot: formatting %d sectors\n", cfg.NumSectors)
	freeMap := bitmap.New(cfg.NumSectors)
	freeMap.Mark(FreeMapSector)
	freeMap.Mark(RootSector)

	freeMapHdr := filehdr.New(cfg)
	freeMapBytes := uint32(len(freeMap.Encode()))
	if !freeMapHdr.Allocate(sd, freeMap, freeMapBytes) {
		panic("filesys: Boot: cannot allocate free-map file")
	}
	freeMapHdr.SetCreateTime()
	freeMapHdr.SetVisitTime()
	freeMapHdr.SetModifyTime()
	freeMapHdr.WriteBack(sd, FreeMapSector)

	rootDir := directory.New(cfg)
	rootDirHdr := filehdr.New(cfg)
	rootDirBytes := uint32(len(rootDir.Encode()))
	if !rootDirHdr.Allocate(sd, freeMap, rootDirBytes) {
		panic("filesys: Boot: cannot allocate root directory file")
	}
	rootDirHdr.SetCreateTime()
	rootDirHdr.SetVisitTime()
	rootDirHdr.SetModifyTime()
	rootDirHdr.WriteBack(sd, RootSector)

	of := openfile.Open(sd, cfg, RootSector)
	data := rootDir.Encode()
	of.WriteAt(data, uint32(len(data)), 0)
	of.Close()

	fs.freeMap = freeMap
	fs.flushFreeMap()
	return fs
}

func (fs *FileSystem) flushFreeMap() {
	of := openfile.Open(fs.sd, fs.cfg, FreeMapSector)
	data := fs.freeMap.Encode()
	of.WriteAt(data, uint32(len(data)), 0)
	of.Close()
}

func (fs *FileSystem) loadDirectory(sector uint32) *directory.Directory {
	dir := directory.New(fs.cfg)
	of := openfile.Open(fs.sd, fs.cfg, sector)
	buf := make([]byte, len(dir.Encode()))
	of.ReadAt(buf, uint32(len(buf)), 0)
	of.Close()
	dir.Decode(buf)
	return dir
}

func (fs *FileSystem) storeDirectory(sector uint32, dir *directory.Directory) {
	of := openfile.Open(fs.sd, fs.cfg, sector)
	data := dir.Encode()
	of.WriteAt(data, uint32(len(data)), 0)
	of.Close()
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// GetParentSector recursively walks path and returns the sector of the
// directory file that holds path's final component, along with that
// final component's name (spec §4.6). A bare name or a leading-slash-only
// path resolves to the root sector.
func (fs *FileSystem) GetParentSector(path string) (sector uint32, name string, ok bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return 0, "", false
	}
	sector = RootSector
	for _, part := range parts[:len(parts)-1] {
		dir := fs.loadDirectory(sector)
		next := dir.Find(part)
		if next < 0 {
			return 0, "", false
		}
		isDir, _ := dir.IsDir(part)
		if !isDir {
			return 0, "", false
		}
		sector = uint32(next)
	}
	return sector, parts[len(parts)-1], true
}

// Create allocates a new file (size >= 0) or directory (size < 0) named
// by path (spec §4.6). Any failure partway through leaves no observable
// change: in-memory structures are discarded without being written back.
func (fs *FileSystem) Create(path string, size int) bool {
	parentSector, name, ok := fs.GetParentSector(path)
	if !ok {
		return false
	}
	parent := fs.loadDirectory(parentSector)
	if parent.Find(name) >= 0 {
		return false
	}

	hdrSector := fs.freeMap.Find()
	if hdrSector < 0 {
		return false
	}

	isDir := size < 0
	var byteSize uint32
	if isDir {
		byteSize = uint32(len(directory.New(fs.cfg).Encode()))
	} else {
		byteSize = uint32(size)
	}

	hdr := filehdr.New(fs.cfg)
	if !hdr.Allocate(fs.sd, fs.freeMap, byteSize) {
		fs.freeMap.Clear(uint32(hdrSector))
		return false
	}
	if !parent.Add(name, uint32(hdrSector), isDir) {
		hdr.Deallocate(fs.freeMap, fs.sd)
		fs.freeMap.Clear(uint32(hdrSector))
		return false
	}

	hdr.SetCreateTime()
	hdr.SetVisitTime()
	hdr.SetModifyTime()
	hdr.WriteBack(fs.sd, uint32(hdrSector))

	if isDir {
		of := openfile.Open(fs.sd, fs.cfg, uint32(hdrSector))
		data := directory.New(fs.cfg).Encode()
		of.WriteAt(data, uint32(len(data)), 0)
		of.Close()
	}

	fs.storeDirectory(parentSector, parent)
	fs.flushFreeMap()
	return true
}

// Open resolves path and returns a new OpenFile over its header sector,
// or nil if the path does not name an existing file (spec §4.6).
func (fs *FileSystem) Open(path string) *openfile.OpenFile {
	parentSector, name, ok := fs.GetParentSector(path)
	if !ok {
		return nil
	}
	parent := fs.loadDirectory(parentSector)
	sector := parent.Find(name)
	if sector < 0 {
		return nil
	}
	return openfile.Open(fs.sd, fs.cfg, uint32(sector))
}

// Remove deletes the file or directory named by path, recursing into a
// directory's entries first (spec §4.6).
func (fs *FileSystem) Remove(path string) bool {
	parentSector, name, ok := fs.GetParentSector(path)
	if !ok {
		return false
	}
	parent := fs.loadDirectory(parentSector)
	sector := parent.Find(name)
	if sector < 0 {
		return false
	}

	isDir, _ := parent.IsDir(name)
	if isDir {
		childSector := uint32(sector)
		child := fs.loadDirectory(childSector)
		for _, childName := range child.List() {
			if !fs.Remove(joinPath(path, childName)) {
				return false
			}
		}
	}

	hdr := filehdr.New(fs.cfg)
	hdr.FetchFrom(fs.sd, uint32(sector))
	hdr.Deallocate(fs.freeMap, fs.sd)
	fs.freeMap.Clear(uint32(sector))
	parent.Remove(name)

	fs.storeDirectory(parentSector, parent)
	fs.flushFreeMap()
	return true
}

func joinPath(parent, name string) string {
	if parent == "" || parent == "/" {
		return "/" + name
	}
	return strings.TrimRight(parent, "/") + "/" + name
}

// List returns the names of every entry in the root directory.
func (fs *FileSystem) List() []string {
	return fs.loadDirectory(RootSector).List()
}

// Print writes the root directory listing to w.
func (fs *FileSystem) Print(w io.Writer) {
	fs.loadDirectory(RootSector).Print(w)
}

// Debug dumps the free-map bitmap, the full recursive directory tree,
// and every file's header metadata (supplemented from original_source's
// filesys.cc Print, which dumps exactly this).
func (fs *FileSystem) Debug(w io.Writer) {
	fmt.Fprintln(w, "free map:")
	fs.freeMap.Print(w)
	fmt.Fprintln(w, "directory tree:")
	fs.debugDir(w, RootSector, "/")
}

func (fs *FileSystem) debugDir(w io.Writer, sector uint32, path string) {
	dir := fs.loadDirectory(sector)
	tbl := table.New("path", "sector", "kind")
	tbl.WithWriter(w)
	for _, e := range dir.Entries {
		if !e.InUse {
			continue
		}
		kind := "file"
		if e.IsDir {
			kind = "dir"
		}
		tbl.AddRow(joinPath(path, e.Name), e.Sector, kind)
	}
	tbl.Print()
	for _, e := range dir.Entries {
		if e.InUse && e.IsDir {
			fs.debugDir(w, e.Sector, joinPath(path, e.Name))
		}
	}
}
