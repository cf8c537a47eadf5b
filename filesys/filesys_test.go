package filesys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/diskdev"
	"github.com/go-nachos/nachos/synchdisk"
)

func testBoot(t *testing.T) (config.Config, *synchdisk.SynchDisk, *FileSystem) {
	cfg := config.DefaultConfig()
	dev := diskdev.NewMem(cfg.NumSectors, cfg.SectorSize)
	sd := synchdisk.New(dev, cfg.CacheSize)
	t.Cleanup(sd.Close)
	fs := Boot(sd, cfg, true)
	return cfg, sd, fs
}

// S1: format, list root (empty), create a file, list again.
func TestFormatAndList(t *testing.T) {
	_, _, fs := testBoot(t)
	require.Empty(t, fs.List())
	require.True(t, fs.Create("/a.txt", 10))
	require.Equal(t, []string{"a.txt"}, fs.List())
}

// S2: create-read round trip on a freshly created file.
func TestCreateWriteReadRoundTrip(t *testing.T) {
	cfg, _, fs := testBoot(t)
	require.True(t, fs.Create("/a.txt", int(cfg.SectorSize*2)))

	of := fs.Open("/a.txt")
	require.NotNil(t, of)
	payload := bytes.Repeat([]byte{0x5A}, int(cfg.SectorSize*2))
	n := of.WriteAt(payload, uint32(len(payload)), 0)
	require.EqualValues(t, len(payload), n)
	of.Close()

	of2 := fs.Open("/a.txt")
	got := make([]byte, len(payload))
	n2 := of2.ReadAt(got, uint32(len(got)), 0)
	require.EqualValues(t, len(payload), n2)
	require.Equal(t, payload, got)
	of2.Close()
}

// S3: a write spanning a sector boundary is read back intact.
func TestCrossSectorWrite(t *testing.T) {
	cfg, _, fs := testBoot(t)
	require.True(t, fs.Create("/b.txt", int(cfg.SectorSize*2)))
	of := fs.Open("/b.txt")
	offset := cfg.SectorSize - 3
	payload := []byte{1, 2, 3, 4, 5, 6}
	of.WriteAt(payload, uint32(len(payload)), offset)
	of.Close()

	of2 := fs.Open("/b.txt")
	got := make([]byte, len(payload))
	of2.ReadAt(got, uint32(len(got)), offset)
	of2.Close()
	require.Equal(t, payload, got)
}

// A write spanning a physical disk-block boundary (4096 bytes, 32
// logical sectors at the default 128-byte sector size) is read back
// intact — the scenario that silently never exercised diskdev's
// physical/logical sector packing before it was fixed.
func TestWriteAcrossPhysicalBlockBoundary(t *testing.T) {
	cfg, _, fs := testBoot(t)
	size := int(cfg.SectorSize * 34) // a few sectors more than one 4096-byte block holds
	require.True(t, fs.Create("/big.txt", size))

	// On a freshly formatted disk the file's header, data and index
	// sectors are taken consecutively from disk sector 5 onward, so its 34
	// data sectors run past disk sector 31, the last logical sector of the
	// first physical block; writing the whole file crosses that boundary.
	of := fs.Open("/big.txt")
	offset := uint32(0)
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	n := of.WriteAt(payload, uint32(len(payload)), offset)
	require.EqualValues(t, len(payload), n)
	of.Close()

	of2 := fs.Open("/big.txt")
	got := make([]byte, len(payload))
	of2.ReadAt(got, uint32(len(got)), offset)
	of2.Close()
	require.Equal(t, payload, got)
}

// S4: removing a directory recursively removes its contents.
func TestHierarchicalRemove(t *testing.T) {
	_, _, fs := testBoot(t)
	require.True(t, fs.Create("/sub", -1))
	require.True(t, fs.Create("/sub/x.txt", 5))
	require.True(t, fs.Create("/sub/y.txt", 5))

	require.True(t, fs.Remove("/sub"))
	require.Empty(t, fs.List())
	require.Nil(t, fs.Open("/sub/x.txt"))
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	_, _, fs := testBoot(t)
	require.True(t, fs.Create("/dup", 5))
	require.False(t, fs.Create("/dup", 5))
}

func TestCreateInMissingParentFails(t *testing.T) {
	_, _, fs := testBoot(t)
	require.False(t, fs.Create("/nosuchdir/a.txt", 5))
}

func TestOpenMissingFileReturnsNil(t *testing.T) {
	_, _, fs := testBoot(t)
	require.Nil(t, fs.Open("/missing"))
}

func TestRebootReopensExistingFiles(t *testing.T) {
	cfg, sd, fs := testBoot(t)
	require.True(t, fs.Create("/a.txt", int(cfg.SectorSize)))

	fs2 := Boot(sd, cfg, false)
	require.Equal(t, []string{"a.txt"}, fs2.List())
}
