package tlb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-nachos/nachos/config"
)

func TestProbeMissOnEmptyTLB(t *testing.T) {
	tl := New(config.DefaultConfig())
	_, ok := tl.Probe(7)
	require.False(t, ok)
}

func TestRefillThenProbeHits(t *testing.T) {
	tl := New(config.DefaultConfig())
	tl.Refill(TranslationEntry{VirtualPage: 3, PhysicalPage: 9, Valid: true})
	idx, ok := tl.Probe(3)
	require.True(t, ok)
	require.EqualValues(t, 9, tl.Entry(idx).PhysicalPage)
}

func TestFIFOEvictsOldestFillFirst(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TLBSize = 2
	cfg.TLBPolicy = config.TLBFifo
	tl := New(cfg)
	tl.Refill(TranslationEntry{VirtualPage: 1, Valid: true})
	tl.Refill(TranslationEntry{VirtualPage: 2, Valid: true})
	_, hadValid := tl.Refill(TranslationEntry{VirtualPage: 3, Valid: true})
	require.True(t, hadValid)
	_, ok := tl.Probe(1)
	require.False(t, ok, "oldest fill should have been evicted")
	_, ok = tl.Probe(2)
	require.True(t, ok)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TLBSize = 2
	cfg.TLBPolicy = config.TLBLru
	tl := New(cfg)
	tl.Refill(TranslationEntry{VirtualPage: 1, Valid: true})
	tl.Refill(TranslationEntry{VirtualPage: 2, Valid: true})
	idx, _ := tl.Probe(1)
	tl.MarkUse(idx, false) // touch vpn 1 so vpn 2 becomes the LRU victim
	tl.Refill(TranslationEntry{VirtualPage: 3, Valid: true})
	_, ok := tl.Probe(2)
	require.False(t, ok)
	_, ok = tl.Probe(1)
	require.True(t, ok)
}

func TestInvalidateClearsSlot(t *testing.T) {
	tl := New(config.DefaultConfig())
	tl.Refill(TranslationEntry{VirtualPage: 5, Valid: true})
	require.True(t, tl.Invalidate(5))
	_, ok := tl.Probe(5)
	require.False(t, ok)
	require.False(t, tl.Invalidate(5))
}
