// Package tlb implements the fixed-size translation-lookaside-buffer
// cache of TranslationEntry values (spec §3, §4.7): a linear-searched
// associative cache with selectable FIFO/LRU eviction.
//
// Grounded on other_examples/Tressand-tp-ssoo-1c2025's tlb.go
// (lookupTlb's linear scan, AddEntry's capacity-triggered FIFO-by-
// truncation or LRU-by-linear-scan eviction), adapted from that file's
// package-global slice and wall-clock LastUsed to a struct owned by the
// kernel and a monotonic tick counter (matching synchdisk's lru scheme
// elsewhere in this module).
package tlb

import (
	"io"

	"github.com/rodaine/table"

	"github.com/go-nachos/nachos/config"
)

// TranslationEntry is one vpn->ppn mapping (spec §3).
type TranslationEntry struct {
	VirtualPage  uint32
	PhysicalPage uint32
	Valid        bool
	Dirty        bool
	Use          bool
	ReadOnly     bool
	InTime       uint64 // tick at which this slot was filled (FIFO)
	LastHitTime  uint64 // tick of the most recent reference (LRU)
}

// TLB is the fixed-size, linearly-searched slot array (spec §4.7).
type TLB struct {
	cfg     config.Config
	entries []TranslationEntry
	tick    uint64
}

// New creates an empty TLB of cfg.TLBSize slots.
func New(cfg config.Config) *TLB {
	return &TLB{cfg: cfg, entries: make([]TranslationEntry, cfg.TLBSize)}
}

func (t *TLB) nextTick() uint64 {
	t.tick++
	return t.tick
}

// Probe searches for a valid entry mapping vpn, returning its slot index
// on a hit.
func (t *TLB) Probe(vpn uint32) (idx int, ok bool) {
	for i := range t.entries {
		if t.entries[i].Valid && t.entries[i].VirtualPage == vpn {
			return i, true
		}
	}
	return 0, false
}

// Entry returns a copy of the entry in slot idx.
func (t *TLB) Entry(idx int) TranslationEntry { return t.entries[idx] }

// MarkUse records a reference to the entry in slot idx, updating LRU
// bookkeeping and, if writing, the dirty bit (spec §4.8 Translate).
func (t *TLB) MarkUse(idx int, writing bool) {
	e := &t.entries[idx]
	e.Use = true
	e.LastHitTime = t.nextTick()
	if writing {
		e.Dirty = true
	}
}

func (t *TLB) pickVictim() int {
	for i := range t.entries {
		if !t.entries[i].Valid {
			return i
		}
	}
	victim := 0
	switch t.cfg.TLBPolicy {
	case config.TLBLru:
		for i := 1; i < len(t.entries); i++ {
			if t.entries[i].LastHitTime < t.entries[victim].LastHitTime {
				victim = i
			}
		}
	default: // FIFO
		for i := 1; i < len(t.entries); i++ {
			if t.entries[i].InTime < t.entries[victim].InTime {
				victim = i
			}
		}
	}
	return victim
}

// Refill evicts a slot (FIFO/LRU per cfg.TLBPolicy, preferring any
// invalid slot first) and installs entry into it, returning the evicted
// entry so the caller can write it back into the owning page table
// (spec §4.7: "the evicted slot, if valid, is written back").
func (t *TLB) Refill(entry TranslationEntry) (evicted TranslationEntry, hadValid bool) {
	victim := t.pickVictim()
	evicted = t.entries[victim]
	hadValid = evicted.Valid
	now := t.nextTick()
	entry.InTime = now
	entry.LastHitTime = now
	t.entries[victim] = entry
	return evicted, hadValid
}

// Invalidate clears the slot mapping vpn, if any, returning whether one
// was found. Used when a physical frame backing vpn is reassigned
// elsewhere (spec §4.8 step 2).
func (t *TLB) Invalidate(vpn uint32) bool {
	for i := range t.entries {
		if t.entries[i].Valid && t.entries[i].VirtualPage == vpn {
			t.entries[i] = TranslationEntry{}
			return true
		}
	}
	return false
}

// Print dumps the TLB's contents (debug aid).
func (t *TLB) Print(w io.Writer) {
	tbl := table.New("slot", "vpn", "ppn", "valid", "dirty", "use", "readonly")
	tbl.WithWriter(w)
	for i, e := range t.entries {
		tbl.AddRow(i, e.VirtualPage, e.PhysicalPage, e.Valid, e.Dirty, e.Use, e.ReadOnly)
	}
	tbl.Print()
}
