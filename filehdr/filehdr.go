// Package filehdr implements the on-sector inode (spec §3, §4.3, §6):
// direct and single-indirect block maps, timestamps, allocate/
// deallocate/grow/translate.
//
// Encode/Decode are grounded on inode.Encode/Decode
// (mit-pdos-go-nfsd/inode/inode.go), which marshals a fixed-layout
// struct field-by-field with marshal.NewEnc/NewDec; Allocate/Deallocate
// are grounded on alloc.go's findFreeRegion/freeBit bit-at-a-time
// allocation loop, generalized to the spec's direct+second-level-index
// layout (alloc.go's resource is a flat bitmap region, not a two-level
// file map).
package filehdr

import (
	"fmt"
	"io"
	"time"

	"github.com/rodaine/table"
	"github.com/tchajed/marshal"

	"github.com/go-nachos/nachos/bitmap"
	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/logging"
	"github.com/go-nachos/nachos/synchdisk"
)

const timestampLen = 25

// FileHeader is the in-sector inode described in spec §3/§6.
type FileHeader struct {
	cfg         config.Config
	NumBytes    uint32
	NumSectors  uint32
	DataSectors []uint32 // len == cfg.NumDirect+cfg.NumSecondIndex
	CreateTime  string
	VisitTime   string
	ModifyTime  string
}

// New creates an empty FileHeader (zero bytes, no sectors allocated).
func New(cfg config.Config) *FileHeader {
	return &FileHeader{
		cfg:         cfg,
		DataSectors: make([]uint32, cfg.NumDirect+cfg.NumSecondIndex),
	}
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// nowStamp formats the current UTC time as a fixed-width 24-character
// textual timestamp, which fits a 25-byte timestamp field together with
// its NUL terminator.
func nowStamp() string {
	return time.Now().UTC().Format(time.ANSIC)
}

func fixedBytes(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s) // truncates if s is longer than n, NUL-pads otherwise
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

// Encode serializes the header into exactly cfg.SectorSize bytes, per
// the layout in spec §6.
func (h *FileHeader) Encode() []byte {
	enc := marshal.NewEnc(uint64(h.cfg.SectorSize))
	enc.PutInt32(h.NumBytes)
	enc.PutInt32(h.NumSectors)
	for _, s := range h.DataSectors {
		enc.PutInt32(s)
	}
	enc.PutBytes(fixedBytes(h.CreateTime, timestampLen))
	enc.PutBytes(fixedBytes(h.VisitTime, timestampLen))
	enc.PutBytes(fixedBytes(h.ModifyTime, timestampLen))
	return enc.Finish()
}

// Decode populates the header from exactly cfg.SectorSize bytes, as
// written by Encode.
func (h *FileHeader) Decode(data []byte) {
	dec := marshal.NewDec(data)
	h.NumBytes = dec.GetInt32()
	h.NumSectors = dec.GetInt32()
	for i := range h.DataSectors {
		h.DataSectors[i] = dec.GetInt32()
	}
	h.CreateTime = trimNul(dec.GetBytes(timestampLen))
	h.VisitTime = trimNul(dec.GetBytes(timestampLen))
	h.ModifyTime = trimNul(dec.GetBytes(timestampLen))
}

// FetchFrom reads and decodes the header from sector via sd.
func (h *FileHeader) FetchFrom(sd *synchdisk.SynchDisk, sector uint32) {
	buf := make([]byte, h.cfg.SectorSize)
	sd.ReadSector(sector, buf)
	h.Decode(buf)
}

// WriteBack encodes and writes the header to sector via sd.
func (h *FileHeader) WriteBack(sd *synchdisk.SynchDisk, sector uint32) {
	sd.WriteSector(sector, h.Encode())
}

func readIndexSector(sd *synchdisk.SynchDisk, sector uint32, n uint32) []uint32 {
	buf := make([]byte, sd.SectorSize())
	sd.ReadSector(sector, buf)
	dec := marshal.NewDec(buf)
	ptrs := make([]uint32, n)
	for i := range ptrs {
		ptrs[i] = dec.GetInt32()
	}
	return ptrs
}

func writeIndexSector(sd *synchdisk.SynchDisk, sector uint32, ptrs []uint32) {
	enc := marshal.NewEnc(uint64(sd.SectorSize()))
	for _, p := range ptrs {
		enc.PutInt32(p)
	}
	sd.WriteSector(sector, enc.Finish())
}

// growBy reserves `need` additional data sectors from freeMap, filling
// remaining direct slots first and then opening or continuing
// second-level index sectors (spec §4.3 ExtendLength). It implements the
// Open Question's reserve-then-commit decision (SPEC_FULL.md /
// DESIGN.md): on failure every sector reserved during this call is
// returned to freeMap and the header's DataSectors array is restored,
// so a failed grow has no observable effect.
func (h *FileHeader) growBy(sd *synchdisk.SynchDisk, freeMap *bitmap.BitMap, need uint32) bool {
	if need == 0 {
		return true
	}
	secondDirect := h.cfg.SecondDirect()
	type patch struct {
		idx uint32
		old uint32
	}
	var reserved []uint32
	var patches []patch
	setSector := func(idx, val uint32) {
		patches = append(patches, patch{idx: idx, old: h.DataSectors[idx]})
		h.DataSectors[idx] = val
	}
	rollback := func() {
		for _, s := range reserved {
			freeMap.Clear(s)
		}
		for i := len(patches) - 1; i >= 0; i-- {
			h.DataSectors[patches[i].idx] = patches[i].old
		}
	}

	pos := h.NumSectors
	remaining := need

	for pos < h.cfg.NumDirect && remaining > 0 {
		s := freeMap.Find()
		if s < 0 {
			rollback()
			return false
		}
		reserved = append(reserved, uint32(s))
		setSector(pos, uint32(s))
		pos++
		remaining--
	}

	for remaining > 0 {
		if pos >= h.cfg.NumDirect+h.cfg.NumSecondIndex*secondDirect {
			rollback()
			return false
		}
		relative := pos - h.cfg.NumDirect
		bucket := relative / secondDirect
		slot := relative % secondDirect
		idxSlot := h.cfg.NumDirect + bucket

		var indexSector uint32
		var ptrs []uint32
		if slot == 0 {
			s := freeMap.Find()
			if s < 0 {
				rollback()
				return false
			}
			reserved = append(reserved, uint32(s))
			indexSector = uint32(s)
			setSector(idxSlot, indexSector)
			ptrs = make([]uint32, secondDirect)
		} else {
			indexSector = h.DataSectors[idxSlot]
			ptrs = readIndexSector(sd, indexSector, secondDirect)
		}

		for slot < secondDirect && remaining > 0 {
			s := freeMap.Find()
			if s < 0 {
				rollback()
				return false
			}
			reserved = append(reserved, uint32(s))
			ptrs[slot] = uint32(s)
			slot++
			pos++
			remaining--
		}
		writeIndexSector(sd, indexSector, ptrs)
	}
	return true
}

// Allocate lays out fileSize bytes' worth of sectors, failing without
// partial effect if fileSize exceeds MaxFileSize or freeMap lacks enough
// clear sectors (spec §4.3, §7 OutOfSpace).
func (h *FileHeader) Allocate(sd *synchdisk.SynchDisk, freeMap *bitmap.BitMap, fileSize uint32) bool {
	if fileSize > h.cfg.MaxFileSize() {
		logging.DPrintf(1, "filehdr: Allocate: %d exceeds MaxFileSize %d\n", fileSize, h.cfg.MaxFileSize())
		return false
	}
	sectorsNeeded := ceilDiv(fileSize, h.cfg.SectorSize)
	if fileSize == 0 {
		sectorsNeeded = 0
	}
	if freeMap.NumClear() < sectorsNeeded {
		return false
	}
	for i := range h.DataSectors {
		h.DataSectors[i] = 0
	}
	h.NumBytes = 0
	h.NumSectors = 0
	if !h.growBy(sd, freeMap, sectorsNeeded) {
		return false
	}
	h.NumBytes = fileSize
	h.NumSectors = sectorsNeeded
	return true
}

// Deallocate frees every sector this header owns, asserting each was
// marked before clearing it (spec §4.3, §7 corruption asserts).
func (h *FileHeader) Deallocate(freeMap *bitmap.BitMap, sd *synchdisk.SynchDisk) {
	secondDirect := h.cfg.SecondDirect()
	need := h.NumSectors
	pos := uint32(0)

	for pos < h.cfg.NumDirect && need > 0 {
		s := h.DataSectors[pos]
		if !freeMap.Test(s) {
			panic(fmt.Sprintf("filehdr: Deallocate: sector %d already free", s))
		}
		freeMap.Clear(s)
		h.DataSectors[pos] = 0
		pos++
		need--
	}

	for need > 0 {
		relative := pos - h.cfg.NumDirect
		bucket := relative / secondDirect
		idxSlot := h.cfg.NumDirect + bucket
		indexSector := h.DataSectors[idxSlot]
		ptrs := readIndexSector(sd, indexSector, secondDirect)
		slot := relative % secondDirect
		for slot < secondDirect && need > 0 {
			s := ptrs[slot]
			if !freeMap.Test(s) {
				panic(fmt.Sprintf("filehdr: Deallocate: sector %d already free", s))
			}
			freeMap.Clear(s)
			slot++
			pos++
			need--
		}
		if !freeMap.Test(indexSector) {
			panic(fmt.Sprintf("filehdr: Deallocate: index sector %d already free", indexSector))
		}
		freeMap.Clear(indexSector)
		h.DataSectors[idxSlot] = 0
	}
	h.NumBytes = 0
	h.NumSectors = 0
}

// ByteToSector translates a byte offset within the file to the sector
// that holds it (spec §4.3).
func (h *FileHeader) ByteToSector(sd *synchdisk.SynchDisk, offset uint32) uint32 {
	s := offset / h.cfg.SectorSize
	if s < h.cfg.NumDirect {
		return h.DataSectors[s]
	}
	secondDirect := h.cfg.SecondDirect()
	relative := s - h.cfg.NumDirect
	bucket := relative / secondDirect
	slot := relative % secondDirect
	indexSector := h.DataSectors[h.cfg.NumDirect+bucket]
	ptrs := readIndexSector(sd, indexSector, secondDirect)
	return ptrs[slot]
}

// ExtendLength grows the file to newNumBytes, allocating additional
// sectors as needed. Fails without partial effect if the free map runs
// out of space (spec §4.3; see growBy for the rollback mechanism).
func (h *FileHeader) ExtendLength(sd *synchdisk.SynchDisk, freeMap *bitmap.BitMap, newNumBytes uint32) bool {
	if newNumBytes > h.cfg.MaxFileSize() {
		return false
	}
	newNumSectors := ceilDiv(newNumBytes, h.cfg.SectorSize)
	if newNumBytes == 0 {
		newNumSectors = 0
	}
	if newNumSectors > h.NumSectors {
		extra := newNumSectors - h.NumSectors
		if freeMap.NumClear() < extra {
			return false
		}
		if !h.growBy(sd, freeMap, extra) {
			return false
		}
		h.NumSectors = newNumSectors
	}
	h.NumBytes = newNumBytes
	return true
}

// SetCreateTime stamps CreateTime with the current time.
func (h *FileHeader) SetCreateTime() { h.CreateTime = nowStamp() }

// SetVisitTime stamps VisitTime with the current time.
func (h *FileHeader) SetVisitTime() { h.VisitTime = nowStamp() }

// SetModifyTime stamps ModifyTime with the current time.
func (h *FileHeader) SetModifyTime() { h.ModifyTime = nowStamp() }

// Print dumps header metadata (size, sector count, timestamps) — not
// file contents. This resolves the Design Notes open question in favor
// of the metadata-only variant of Nachos's two FileHeader::Print
// implementations; see DESIGN.md.
func (h *FileHeader) Print(w io.Writer) {
	tbl := table.New("numBytes", "numSectors", "created", "visited", "modified")
	tbl.WithWriter(w)
	tbl.AddRow(h.NumBytes, h.NumSectors, h.CreateTime, h.VisitTime, h.ModifyTime)
	tbl.Print()
}
