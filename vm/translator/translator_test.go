package translator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/vm/backingstore"
	"github.com/go-nachos/nachos/vm/pagetable"
	"github.com/go-nachos/nachos/vm/tlb"
)

func newTestTranslator(t *testing.T, cfg config.Config) *Translator {
	tl := tlb.New(cfg)
	ppt := pagetable.NewPhysicalPageTable(cfg)
	pt := pagetable.New(cfg)
	store, err := backingstore.New(cfg, "")
	require.NoError(t, err)
	return New(cfg, tl, ppt, pt, store, 1)
}

func TestAlignmentErrorsBeforeTLBLookup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BackingStoreKind = config.BackingStoreMemory
	tr := newTestTranslator(t, cfg)

	_, exc := tr.Translate(2, 4, false)
	require.Equal(t, AddressErrorException, exc)
	_, exc = tr.Translate(1, 2, false)
	require.Equal(t, AddressErrorException, exc)
}

func TestMissThenFaultHandlerRetrySucceeds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BackingStoreKind = config.BackingStoreMemory
	tr := newTestTranslator(t, cfg)

	physAddr, exc := tr.HandlePageFaultAndRetry(cfg.PageSize()*3, 1, false)
	require.Equal(t, NoException, exc)
	require.EqualValues(t, physAddr%cfg.PageSize(), 0)
}

func TestReadOnlyViolation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BackingStoreKind = config.BackingStoreMemory
	tr := newTestTranslator(t, cfg)

	_, exc := tr.HandlePageFaultAndRetry(0, 1, false)
	require.Equal(t, NoException, exc)
	idx, ok := tr.tlb.Probe(0)
	require.True(t, ok)
	tr.tlb.MarkUse(idx, false)
	entry := tr.tlb.Entry(idx)
	entry.ReadOnly = true
	// Refill picks a victim slot rather than the slot already mapping vpn 0,
	// so drop the old mapping first; the refill then reuses that freed slot.
	tr.tlb.Invalidate(0)
	tr.tlb.Refill(entry) // reinstall with ReadOnly set, same vpn/ppn

	_, exc = tr.Translate(0, 1, true)
	require.Equal(t, ReadOnlyException, exc)
}

func TestAllocatePhysicalPageEvictsDirtyVictimAndWritesBack(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BackingStoreKind = config.BackingStoreMemory
	cfg.NumPhysPages = 1
	tr := newTestTranslator(t, cfg)

	_, exc := tr.HandlePageFaultAndRetry(0, 1, true) // dirty vpn 0 into the only frame
	require.Equal(t, NoException, exc)

	// Write a recognizable byte into the frame via a raw Translate+memcpy
	// simulation, then force vpn 1 to evict vpn 0.
	physAddr, _ := tr.Translate(0, 1, true)
	tr.physMem[physAddr] = 0x7A

	tr.AllocatePhysicalPage(1)

	got := make([]byte, 1)
	tr.store.ReadAt(got, 0)
	require.Equal(t, byte(0x7A), got[0])
}
