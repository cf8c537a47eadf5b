package directory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-nachos/nachos/config"
)

func TestAddFindRemove(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)
	require.True(t, d.Add("a.txt", 5, false))
	require.EqualValues(t, 5, d.Find("a.txt"))
	require.Equal(t, int64(-1), d.Find("missing"))

	require.True(t, d.Remove("a.txt"))
	require.Equal(t, int64(-1), d.Find("a.txt"))
	require.False(t, d.Remove("a.txt"))
}

func TestAddRejectsDuplicateName(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)
	require.True(t, d.Add("x", 1, false))
	require.False(t, d.Add("x", 2, false))
}

func TestAddRejectsWhenFull(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)
	for i := uint32(0); i < cfg.NumDirEntries; i++ {
		require.True(t, d.Add(string(rune('a'+i)), i, false))
	}
	require.False(t, d.Add("overflow", 99, false))
}

func TestIsDirFlag(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)
	d.Add("sub", 3, true)
	d.Add("file", 4, false)
	isDir, found := d.IsDir("sub")
	require.True(t, found)
	require.True(t, isDir)
	isDir, found = d.IsDir("file")
	require.True(t, found)
	require.False(t, isDir)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)
	d.Add("one", 1, false)
	d.Add("two", 2, true)

	data := d.Encode()
	require.Len(t, data, int(EntrySize(cfg))*len(d.Entries))

	d2 := New(cfg)
	d2.Decode(data)
	require.Equal(t, d.Entries, d2.Entries)
}

func TestUniqueNamesInvariantAcrossSequence(t *testing.T) {
	cfg := config.DefaultConfig()
	d := New(cfg)
	d.Add("a", 1, false)
	d.Remove("a")
	d.Add("a", 2, false)
	d.Add("b", 3, false)
	d.Remove("b")
	d.Add("a2", 4, false)

	seen := map[string]bool{}
	for _, e := range d.Entries {
		if !e.InUse {
			continue
		}
		require.False(t, seen[e.Name], "duplicate name %q", e.Name)
		seen[e.Name] = true
	}
}
