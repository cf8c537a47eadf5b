// Package pagetable implements the per-address-space page table (spec
// §3, §4.7), pluggable between a linear (slice-indexed-by-vpn) and an
// inverted (array-indexed-by-frame, scanned for vpn) representation,
// plus the single global PhysicalPageTable frame arena.
//
// Grounded on the Design Notes' "central arena of frame records keyed
// by index, non-owning thread handle" guidance and on
// ejdavenheimer-TP-Sistemas-Operativos-UTN-FRBA-1c2025's
// memoria/models FrameTable/ProcessFramesTable split (a flat frame
// array plus a per-process record of which frames it owns), adapted
// from that repo's HTTP-service globals to struct fields owned by
// kernel.Kernel.
package pagetable

import (
	"io"

	"github.com/rodaine/table"

	"github.com/go-nachos/nachos/config"
)

// PageTableEntry is one per-space vpn->ppn mapping (spec §3).
type PageTableEntry struct {
	VirtualPage  uint32
	PhysicalPage uint32
	Valid        bool
	Dirty        bool
	Use          bool
	ReadOnly     bool
}

// PageTable is the per-address-space mapping, pluggable between a
// linear and an inverted representation (spec §4.7).
type PageTable interface {
	// Lookup returns the entry for vpn and whether it is present.
	Lookup(vpn uint32) (PageTableEntry, bool)
	// Set installs or replaces the entry for vpn.
	Set(entry PageTableEntry)
	// Invalidate clears the entry for vpn, if present.
	Invalidate(vpn uint32)
}

// LinearPageTable is the default per-space table: a slice indexed
// directly by virtual page number.
type LinearPageTable struct {
	entries []PageTableEntry
	present []bool
}

// NewLinear creates a LinearPageTable with initial room for
// cfg.NumPhysPages virtual pages. Set grows the table to fit a larger
// vpn, since an address space may map more virtual pages than there are
// physical frames (the rest live in its backing store).
func NewLinear(cfg config.Config) *LinearPageTable {
	return &LinearPageTable{
		entries: make([]PageTableEntry, cfg.NumPhysPages),
		present: make([]bool, cfg.NumPhysPages),
	}
}

func (t *LinearPageTable) Lookup(vpn uint32) (PageTableEntry, bool) {
	if vpn >= uint32(len(t.entries)) || !t.present[vpn] {
		return PageTableEntry{}, false
	}
	return t.entries[vpn], true
}

func (t *LinearPageTable) Set(entry PageTableEntry) {
	if entry.VirtualPage >= uint32(len(t.entries)) {
		n := entry.VirtualPage + 1
		entries := make([]PageTableEntry, n)
		copy(entries, t.entries)
		present := make([]bool, n)
		copy(present, t.present)
		t.entries, t.present = entries, present
	}
	t.entries[entry.VirtualPage] = entry
	t.present[entry.VirtualPage] = true
}

func (t *LinearPageTable) Invalidate(vpn uint32) {
	if vpn < uint32(len(t.entries)) {
		t.present[vpn] = false
		t.entries[vpn] = PageTableEntry{}
	}
}

// InvertedPageTable is the alternate, global representation: indexed by
// physical frame, linear-scanned to find the entry for a given vpn
// (spec §4.7).
type InvertedPageTable struct {
	entries []PageTableEntry
	present []bool
}

// NewInverted creates an InvertedPageTable with cfg.NumPhysPages frame
// slots.
func NewInverted(cfg config.Config) *InvertedPageTable {
	return &InvertedPageTable{
		entries: make([]PageTableEntry, cfg.NumPhysPages),
		present: make([]bool, cfg.NumPhysPages),
	}
}

func (t *InvertedPageTable) Lookup(vpn uint32) (PageTableEntry, bool) {
	for i := range t.entries {
		if t.present[i] && t.entries[i].VirtualPage == vpn {
			return t.entries[i], true
		}
	}
	return PageTableEntry{}, false
}

func (t *InvertedPageTable) Set(entry PageTableEntry) {
	for i := range t.entries {
		if t.present[i] && t.entries[i].VirtualPage == entry.VirtualPage {
			t.entries[i] = entry
			return
		}
	}
	for i := range t.entries {
		if !t.present[i] {
			t.entries[i] = entry
			t.present[i] = true
			return
		}
	}
	panic("pagetable: InvertedPageTable: no free slot for Set")
}

func (t *InvertedPageTable) Invalidate(vpn uint32) {
	for i := range t.entries {
		if t.present[i] && t.entries[i].VirtualPage == vpn {
			t.present[i] = false
			t.entries[i] = PageTableEntry{}
			return
		}
	}
}

// New builds a PageTable of the kind selected by cfg.PageTableKind.
func New(cfg config.Config) PageTable {
	if cfg.PageTableKind == config.PageTableInverted {
		return NewInverted(cfg)
	}
	return NewLinear(cfg)
}

// FrameRecord is one slot of the global PhysicalPageTable (spec §3): an
// owning-thread handle rather than a back-pointer, per the Design Notes'
// cyclic-ownership guidance.
type FrameRecord struct {
	Valid             bool
	Dirty             bool
	LastHitTime       uint64
	VirtualPageNumber uint32
	OwnerThread       uint64 // stable thread id, 0 == no owner
}

// PhysicalPageTable is the single global arena of frame records that
// lives for the machine's lifetime (spec §3, §4.8).
type PhysicalPageTable struct {
	frames []FrameRecord
	tick   uint64
}

// NewPhysicalPageTable creates an all-invalid frame table of
// cfg.NumPhysPages entries.
func NewPhysicalPageTable(cfg config.Config) *PhysicalPageTable {
	return &PhysicalPageTable{frames: make([]FrameRecord, cfg.NumPhysPages)}
}

// NumFrames reports the fixed frame count.
func (p *PhysicalPageTable) NumFrames() int { return len(p.frames) }

// Frame returns a copy of the frame record at ppn.
func (p *PhysicalPageTable) Frame(ppn uint32) FrameRecord { return p.frames[ppn] }

// NextTick returns a fresh monotonically increasing timestamp, used to
// stamp LastHitTime on both frame records and TLB entries that touch
// this table.
func (p *PhysicalPageTable) NextTick() uint64 {
	p.tick++
	return p.tick
}

// PickVictim selects the first invalid frame, else the frame with the
// smallest LastHitTime (spec §4.8 step 1).
func (p *PhysicalPageTable) PickVictim() uint32 {
	for i := range p.frames {
		if !p.frames[i].Valid {
			return uint32(i)
		}
	}
	victim := uint32(0)
	for i := uint32(1); i < uint32(len(p.frames)); i++ {
		if p.frames[i].LastHitTime < p.frames[victim].LastHitTime {
			victim = i
		}
	}
	return victim
}

// Install writes rec into frame ppn (spec §4.8 step 4).
func (p *PhysicalPageTable) Install(ppn uint32, rec FrameRecord) {
	p.frames[ppn] = rec
}

// MarkUse stamps frame ppn's LastHitTime and, if writing, its dirty bit
// (spec §4.8 Translate).
func (p *PhysicalPageTable) MarkUse(ppn uint32, writing bool) {
	p.frames[ppn].LastHitTime = p.NextTick()
	if writing {
		p.frames[ppn].Dirty = true
	}
}

// Print dumps the frame table (debug aid).
func (p *PhysicalPageTable) Print(w io.Writer) {
	tbl := table.New("ppn", "valid", "dirty", "vpn", "owner", "lastHit")
	tbl.WithWriter(w)
	for i, f := range p.frames {
		tbl.AddRow(i, f.Valid, f.Dirty, f.VirtualPageNumber, f.OwnerThread, f.LastHitTime)
	}
	tbl.Print()
}
