// Package diskdev is the sector-addressed block device underlying the
// emulated disk. It wraps github.com/tchajed/goose/machine/disk the way
// super.MkFsSuper and cmd/fs-smallfile wrap it: a host-file disk image
// for persistence, an in-memory disk for tests, and an fsync hook for
// durability after a batch of writes.
package diskdev

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"golang.org/x/sys/unix"

	"github.com/go-nachos/nachos/logging"
)

// Device is a fixed-size, sector-addressed block device. Its logical
// SectorSize is cfg.SectorSize (spec §6 — the one value that governs
// both the disk format and filehdr's addressing math), not the
// underlying disk.Disk's fixed disk.BlockSize; several logical sectors
// are packed into each physical disk.BlockSize block.
type Device struct {
	d             disk.Disk
	nSectors      uint32
	sectorSize    uint32
	sectorsPerBlk uint32
	path          string // "" for memory-backed devices
}

// numBlocks returns the number of physical disk.BlockSize blocks needed
// to hold nSectors logical sectors of sectorSize bytes each.
func numBlocks(nSectors, sectorSize uint32) uint64 {
	sectorsPerBlk := uint32(disk.BlockSize) / sectorSize
	return (uint64(nSectors) + uint64(sectorsPerBlk) - 1) / uint64(sectorsPerBlk)
}

// NewFile opens (or creates, zero-filled) a host file backing nSectors
// logical sectors of sectorSize bytes, packed into physical
// disk.BlockSize blocks, grounded on super.MkFsSuper's
// disk.NewFileDisk(name, sz) call.
func NewFile(path string, nSectors, sectorSize uint32) (*Device, error) {
	logging.DPrintf(0, "diskdev: open file disk %s (%d sectors of %d bytes)\n", path, nSectors, sectorSize)
	d, err := disk.NewFileDisk(path, numBlocks(nSectors, sectorSize))
	if err != nil {
		return nil, fmt.Errorf("diskdev: create disk image %s: %w", path, err)
	}
	return newDevice(d, nSectors, sectorSize, path), nil
}

// NewMem creates an in-memory disk, grounded on
// super.MkFsSuper's disk.NewMemDisk(sz) fallback used by tests.
func NewMem(nSectors, sectorSize uint32) *Device {
	logging.DPrintf(0, "diskdev: create mem disk (%d sectors of %d bytes)\n", nSectors, sectorSize)
	return newDevice(disk.NewMemDisk(numBlocks(nSectors, sectorSize)), nSectors, sectorSize, "")
}

func newDevice(d disk.Disk, nSectors, sectorSize uint32, path string) *Device {
	if uint32(disk.BlockSize)%sectorSize != 0 {
		panic(fmt.Sprintf("diskdev: sector size %d does not evenly divide disk.BlockSize %d", sectorSize, disk.BlockSize))
	}
	return &Device{
		d:             d,
		nSectors:      nSectors,
		sectorSize:    sectorSize,
		sectorsPerBlk: uint32(disk.BlockSize) / sectorSize,
		path:          path,
	}
}

// NumSectors reports the device's fixed capacity, in logical sectors.
func (dv *Device) NumSectors() uint32 { return dv.nSectors }

// SectorSize reports the logical sector size in bytes (cfg.SectorSize).
func (dv *Device) SectorSize() uint32 { return dv.sectorSize }

// checkSector asserts the sector index is in range; an out-of-range
// sector request is a programming error in this core, not a recoverable
// failure (spec §7: disk I/O is assumed reliable and corruption asserts
// are fatal).
func (dv *Device) checkSector(sector uint32) {
	if sector >= dv.nSectors {
		panic(fmt.Sprintf("diskdev: sector %d out of range [0,%d)", sector, dv.nSectors))
	}
}

// blockOffset splits a logical sector number into the physical block
// that holds it and the byte offset of the sector within that block.
func (dv *Device) blockOffset(sector uint32) (blk uint64, offset uint32) {
	return uint64(sector / dv.sectorsPerBlk), (sector % dv.sectorsPerBlk) * dv.sectorSize
}

// ReadSector reads exactly SectorSize bytes from sector into buf.
func (dv *Device) ReadSector(sector uint32, buf []byte) {
	dv.checkSector(sector)
	if uint32(len(buf)) != dv.sectorSize {
		panic("diskdev: ReadSector buffer size mismatch")
	}
	blkIdx, offset := dv.blockOffset(sector)
	blk := dv.d.Read(blkIdx)
	copy(buf, blk[offset:offset+dv.sectorSize])
}

// WriteSector writes exactly SectorSize bytes from buf into sector. The
// containing physical block is read-modify-written, since several
// logical sectors share one physical block.
func (dv *Device) WriteSector(sector uint32, buf []byte) {
	dv.checkSector(sector)
	if uint32(len(buf)) != dv.sectorSize {
		panic("diskdev: WriteSector buffer size mismatch")
	}
	blkIdx, offset := dv.blockOffset(sector)
	blk := dv.d.Read(blkIdx)
	out := make(disk.Block, disk.BlockSize)
	copy(out, blk)
	copy(out[offset:offset+dv.sectorSize], buf)
	dv.d.Write(blkIdx, out)
}

// Barrier flushes any buffering the underlying disk implementation does,
// then fsyncs the backing host file if there is one — grounded on
// cmd/fs-smallfile's unix.Fsync(f) call after a batch of host writes.
func (dv *Device) Barrier() {
	dv.d.Barrier()
	if dv.path == "" {
		return
	}
	fd, err := unix.Open(dv.path, unix.O_RDWR, 0)
	if err != nil {
		logging.DPrintf(0, "diskdev: barrier: open %s for fsync: %v\n", dv.path, err)
		return
	}
	defer unix.Close(fd)
	if err := unix.Fsync(fd); err != nil {
		logging.DPrintf(0, "diskdev: barrier: fsync %s: %v\n", dv.path, err)
	}
}

// Close releases the underlying disk.
func (dv *Device) Close() {
	dv.d.Close()
}
