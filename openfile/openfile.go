// Package openfile implements the stream view over a FileHeader (spec
// §4.5): positional and seek-relative read/write, integrated with
// SynchDisk's per-header reader/writer and opener coordination.
//
// ReadAt/WriteAt's splice-through-sectors shape is grounded on
// simple/inode.go's Read/Write (read the backing block, copy in/out at
// an offset, mark dirty, write back), generalized from the teacher's
// single-block file to the spec's multi-sector span that may cross
// several sectors per call.
package openfile

import (
	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/filehdr"
	"github.com/go-nachos/nachos/synchdisk"
)

// OpenFile is a stream view over the FileHeader at hdrSector.
type OpenFile struct {
	sd        *synchdisk.SynchDisk
	hdr       *filehdr.FileHeader
	hdrSector uint32
	seekPos   uint32
}

// Open fetches the header at hdrSector from disk and registers this as
// an opener of it (spec §4.5: "Construction calls Open(hdrSector)").
func Open(sd *synchdisk.SynchDisk, cfg config.Config, hdrSector uint32) *OpenFile {
	sd.OpenHeader(hdrSector)
	hdr := filehdr.New(cfg)
	hdr.FetchFrom(sd, hdrSector)
	return &OpenFile{sd: sd, hdr: hdr, hdrSector: hdrSector}
}

// Close releases this opener's registration (spec §4.5: "destruction
// calls Close(hdrSector)").
func (of *OpenFile) Close() {
	of.sd.CloseHeader(of.hdrSector)
}

// HeaderSector returns the sector holding this file's FileHeader.
func (of *OpenFile) HeaderSector() uint32 { return of.hdrSector }

// Header returns the in-memory FileHeader backing this stream.
func (of *OpenFile) Header() *filehdr.FileHeader { return of.hdr }

// Seek repositions the internal cursor used by Read/Write.
func (of *OpenFile) Seek(pos uint32) { of.seekPos = pos }

// Tell reports the internal cursor position.
func (of *OpenFile) Tell() uint32 { return of.seekPos }

// Read transfers up to n bytes starting at the internal cursor,
// advancing it by the count actually transferred.
func (of *OpenFile) Read(buf []byte, n uint32) uint32 {
	count := of.ReadAt(buf, n, of.seekPos)
	of.seekPos += count
	return count
}

// Write transfers up to n bytes starting at the internal cursor,
// advancing it by the count actually transferred.
func (of *OpenFile) Write(buf []byte, n uint32) uint32 {
	count := of.WriteAt(buf, n, of.seekPos)
	of.seekPos += count
	return count
}

func spanSectors(hdr *filehdr.FileHeader, sd *synchdisk.SynchDisk, firstSector, lastSector uint32) []byte {
	sectorSize := sd.SectorSize()
	span := make([]byte, (lastSector-firstSector+1)*sectorSize)
	tmp := make([]byte, sectorSize)
	for s := firstSector; s <= lastSector; s++ {
		sector := hdr.ByteToSector(sd, s*sectorSize)
		sd.ReadSector(sector, tmp)
		copy(span[(s-firstSector)*sectorSize:], tmp)
	}
	return span
}

// ReadAt transfers up to n bytes at the absolute offset, returning the
// count actually transferred (truncated at EOF, spec §4.5). Coordinates
// with concurrent writers of the same header via StartRead/EndRead.
func (of *OpenFile) ReadAt(buf []byte, n uint32, offset uint32) uint32 {
	of.sd.StartRead(of.hdrSector)
	defer of.sd.EndRead(of.hdrSector)

	hdr := of.hdr
	if offset >= hdr.NumBytes {
		return 0
	}
	count := n
	if offset+count > hdr.NumBytes {
		count = hdr.NumBytes - offset
	}
	sectorSize := of.sd.SectorSize()
	firstSector := offset / sectorSize
	lastSector := (offset + count - 1) / sectorSize
	span := spanSectors(hdr, of.sd, firstSector, lastSector)
	start := offset % sectorSize
	copy(buf, span[start:start+count])

	hdr.SetVisitTime()
	hdr.WriteBack(of.sd, of.hdrSector)
	return count
}

// WriteAt transfers up to n bytes at the absolute offset, returning the
// count actually transferred. Writes never extend the file (only
// FileSystem.Create/ExtendLength allocate new sectors); a write wholly
// or partly beyond the current size is truncated at EOF, exactly as
// ReadAt is. Coordinates with readers/writers via StartWrite/EndWrite.
func (of *OpenFile) WriteAt(buf []byte, n uint32, offset uint32) uint32 {
	of.sd.StartWrite(of.hdrSector)
	defer of.sd.EndWrite(of.hdrSector)

	hdr := of.hdr
	if offset >= hdr.NumBytes {
		return 0
	}
	count := n
	if offset+count > hdr.NumBytes {
		count = hdr.NumBytes - offset
	}
	sectorSize := of.sd.SectorSize()
	firstSector := offset / sectorSize
	lastSector := (offset + count - 1) / sectorSize
	span := spanSectors(hdr, of.sd, firstSector, lastSector)
	start := offset % sectorSize
	copy(span[start:start+count], buf[:count])

	for s := firstSector; s <= lastSector; s++ {
		sector := hdr.ByteToSector(of.sd, s*sectorSize)
		of.sd.WriteSector(sector, span[(s-firstSector)*sectorSize:(s-firstSector+1)*sectorSize])
	}

	hdr.SetVisitTime()
	hdr.SetModifyTime()
	hdr.WriteBack(of.sd, of.hdrSector)
	return count
}
