package diskdev

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tchajed/goose/machine/disk"
)

// TestLogicalSectorsCrossingAPhysicalBlockRoundTrip writes to logical
// sectors on both sides of a disk.BlockSize boundary (sectorSize=128
// packs 32 logical sectors per physical block, so sector 31 and sector
// 32 share no physical block but sector 31 and sector 0 do) and
// verifies each is read back intact, without disturbing its neighbors.
func TestLogicalSectorsCrossingAPhysicalBlockRoundTrip(t *testing.T) {
	const sectorSize = 128
	sectorsPerBlock := uint32(disk.BlockSize) / sectorSize
	require.Greater(t, sectorsPerBlock, uint32(1))

	dv := NewMem(sectorsPerBlock*2, sectorSize)

	last := sectorsPerBlock - 1  // last sector of block 0
	first := sectorsPerBlock     // first sector of block 1
	other := sectorsPerBlock + 1 // second sector of block 1

	write := func(sector uint32, b byte) {
		buf := make([]byte, sectorSize)
		for i := range buf {
			buf[i] = b
		}
		dv.WriteSector(sector, buf)
	}
	read := func(sector uint32) []byte {
		buf := make([]byte, sectorSize)
		dv.ReadSector(sector, buf)
		return buf
	}

	write(last, 0xAA)
	write(first, 0xBB)
	write(other, 0xCC)

	require.Equal(t, byte(0xAA), read(last)[0])
	require.Equal(t, byte(0xBB), read(first)[0])
	require.Equal(t, byte(0xCC), read(other)[0])
}

func TestSectorSizeReportsLogicalSize(t *testing.T) {
	dv := NewMem(64, 128)
	require.EqualValues(t, 128, dv.SectorSize())
}

func TestOutOfRangeSectorPanics(t *testing.T) {
	dv := NewMem(4, 128)
	require.Panics(t, func() {
		dv.ReadSector(4, make([]byte, 128))
	})
}
