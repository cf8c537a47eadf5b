// Package directory implements the fixed-slot name table inside a
// regular file (spec §3, §4.4, §6). Grounded on the teacher's
// dir.go/enc_dec.go (encodeDirEnt/decodeDirEnt, linear-scan
// Find/Add/Remove over directory entries), generalized from the
// teacher's NFS-oriented variable-length linear-scan file to the spec's
// fixed NumDirEntries table and adding the isDir flag the original
// Nachos directory.h carries but the NFS dirent does not.
package directory

import (
	"fmt"
	"io"

	"github.com/rodaine/table"
	"github.com/tchajed/marshal"

	"github.com/go-nachos/nachos/config"
)

// Entry is one fixed-size directory slot (spec §6).
type Entry struct {
	InUse  bool
	Name   string
	Sector uint32
	IsDir  bool
}

// Directory is the fixed-size table of entries backing one directory
// file (spec §3).
type Directory struct {
	cfg     config.Config
	Entries []Entry
}

// New creates an empty directory table of cfg.NumDirEntries slots.
func New(cfg config.Config) *Directory {
	return &Directory{
		cfg:     cfg,
		Entries: make([]Entry, cfg.NumDirEntries),
	}
}

func (d *Directory) nameFits(name string) bool {
	return uint32(len(name)) <= d.cfg.FileNameMaxLen
}

// Find returns the sector of name's header, or -1 if not present.
func (d *Directory) Find(name string) int64 {
	for _, e := range d.Entries {
		if e.InUse && e.Name == name {
			return int64(e.Sector)
		}
	}
	return -1
}

// IsDir reports whether name is present and, if so, whether it is a
// subdirectory.
func (d *Directory) IsDir(name string) (isDir bool, found bool) {
	for _, e := range d.Entries {
		if e.InUse && e.Name == name {
			return e.IsDir, true
		}
	}
	return false, false
}

// Add stores name -> sector in the first empty slot. Fails if name
// already exists, the name is too long, or the table is full (spec
// §4.4, §7 "Duplicate name / directory full").
func (d *Directory) Add(name string, sector uint32, isDir bool) bool {
	if !d.nameFits(name) {
		return false
	}
	if d.Find(name) >= 0 {
		return false
	}
	for i := range d.Entries {
		if !d.Entries[i].InUse {
			d.Entries[i] = Entry{InUse: true, Name: name, Sector: sector, IsDir: isDir}
			return true
		}
	}
	return false
}

// Remove marks name's slot free. Fails if name is not present (spec §7
// "Name not found").
func (d *Directory) Remove(name string) bool {
	for i := range d.Entries {
		if d.Entries[i].InUse && d.Entries[i].Name == name {
			d.Entries[i] = Entry{}
			return true
		}
	}
	return false
}

// List returns the names of every in-use entry.
func (d *Directory) List() []string {
	var names []string
	for _, e := range d.Entries {
		if e.InUse {
			names = append(names, e.Name)
		}
	}
	return names
}

// Print writes a table of every in-use entry (debug output, spec §4.4).
func (d *Directory) Print(w io.Writer) {
	tbl := table.New("name", "sector", "kind")
	tbl.WithWriter(w)
	for _, e := range d.Entries {
		if !e.InUse {
			continue
		}
		kind := "file"
		if e.IsDir {
			kind = "dir"
		}
		tbl.AddRow(e.Name, e.Sector, kind)
	}
	tbl.Print()
}

func nameFieldLen(cfg config.Config) uint32 {
	return cfg.FileNameMaxLen + 1
}

// EntrySize is the on-disk size in bytes of one directory entry (spec
// §6): a padded bool, an int32 sector, a bool isDir, and the bounded
// name field.
func EntrySize(cfg config.Config) uint32 {
	return 1 + 4 + 1 + nameFieldLen(cfg)
}

func fixedBytes(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func trimNul(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func boolByte(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

// Encode serializes the whole table into cfg.NumDirEntries*EntrySize
// bytes, the contents of the directory's backing file (spec §6).
// Grounded on enc_dec.go's encodeDirEnt, generalized to a fixed table
// instead of one entry at a time.
func (d *Directory) Encode() []byte {
	sz := EntrySize(d.cfg)
	enc := marshal.NewEnc(uint64(sz) * uint64(len(d.Entries)))
	for _, e := range d.Entries {
		enc.PutBytes(boolByte(e.InUse))
		enc.PutInt32(e.Sector)
		enc.PutBytes(boolByte(e.IsDir))
		enc.PutBytes(fixedBytes(e.Name, int(nameFieldLen(d.cfg))))
	}
	return enc.Finish()
}

// Decode replaces the table's contents from bytes written by Encode.
func (d *Directory) Decode(data []byte) {
	sz := EntrySize(d.cfg)
	expect := uint64(sz) * uint64(len(d.Entries))
	if uint64(len(data)) != expect {
		panic(fmt.Sprintf("directory: Decode: expected %d bytes, got %d", expect, len(data)))
	}
	dec := marshal.NewDec(data)
	for i := range d.Entries {
		inUse := dec.GetBytes(1)[0] != 0
		sector := dec.GetInt32()
		isDir := dec.GetBytes(1)[0] != 0
		name := trimNul(dec.GetBytes(uint64(nameFieldLen(d.cfg))))
		d.Entries[i] = Entry{InUse: inUse, Name: name, Sector: sector, IsDir: isDir}
	}
}
