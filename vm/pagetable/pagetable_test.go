package pagetable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-nachos/nachos/config"
)

func TestLinearSetLookupInvalidate(t *testing.T) {
	cfg := config.DefaultConfig()
	pt := NewLinear(cfg)
	_, ok := pt.Lookup(4)
	require.False(t, ok)

	pt.Set(PageTableEntry{VirtualPage: 4, PhysicalPage: 9, Valid: true})
	got, ok := pt.Lookup(4)
	require.True(t, ok)
	require.EqualValues(t, 9, got.PhysicalPage)

	pt.Invalidate(4)
	_, ok = pt.Lookup(4)
	require.False(t, ok)
}

func TestInvertedSetLookupInvalidate(t *testing.T) {
	cfg := config.DefaultConfig()
	pt := NewInverted(cfg)
	pt.Set(PageTableEntry{VirtualPage: 2, PhysicalPage: 0, Valid: true})
	pt.Set(PageTableEntry{VirtualPage: 7, PhysicalPage: 1, Valid: true})

	got, ok := pt.Lookup(7)
	require.True(t, ok)
	require.EqualValues(t, 1, got.PhysicalPage)

	pt.Invalidate(2)
	_, ok = pt.Lookup(2)
	require.False(t, ok)
	_, ok = pt.Lookup(7)
	require.True(t, ok)
}

func TestNewSelectsKindFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PageTableKind = config.PageTableInverted
	_, ok := New(cfg).(*InvertedPageTable)
	require.True(t, ok)

	cfg.PageTableKind = config.PageTableLinear
	_, ok = New(cfg).(*LinearPageTable)
	require.True(t, ok)
}

func TestPhysicalPageTablePicksInvalidFrameFirst(t *testing.T) {
	cfg := config.DefaultConfig()
	ppt := NewPhysicalPageTable(cfg)
	ppt.Install(0, FrameRecord{Valid: true, LastHitTime: 100})
	victim := ppt.PickVictim()
	require.EqualValues(t, 1, victim, "first invalid frame should be picked over any valid one")
}

func TestPhysicalPageTablePicksLRUWhenAllValid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NumPhysPages = 3
	ppt := NewPhysicalPageTable(cfg)
	for i := uint32(0); i < cfg.NumPhysPages; i++ {
		ppt.Install(i, FrameRecord{Valid: true, LastHitTime: uint64(10 - i)})
	}
	victim := ppt.PickVictim()
	require.EqualValues(t, cfg.NumPhysPages-1, victim)
}
