// Package translator implements virtual-to-physical address translation
// and demand-paging frame allocation (spec §4.8): the single machine-
// wide translation unit, holding the shared TLB, the global
// PhysicalPageTable, and a flat physical memory buffer, plus the
// currently scheduled thread's per-space PageTable and BackingStore
// (swapped in on a context switch, per the single-core cooperative
// model of spec §5).
//
// Translate's alignment-check/exception-ordering sequence is grounded on
// original_source/code/machine/translate.cc's Machine::Translate; the
// vpn/offset split is grounded on
// other_examples/Tressand-tp-ssoo-1c2025's mmu.go TraducirDireccion.
// AllocatePhysicalPage's evict/writeback/swap-in/install sequence is
// grounded on translate.cc's FIFO_TLB/LRU_TLB AllocatePhysicalPage call
// site and on
// ejdavenheimer-TP-Sistemas-Operativos-UTN-FRBA-1c2025/memoria/services
// swap.go's victim-frame writeback-then-free shape.
package translator

import (
	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/vm/backingstore"
	"github.com/go-nachos/nachos/vm/pagetable"
	"github.com/go-nachos/nachos/vm/tlb"
)

// Exception is the taxonomy raised by Translate (spec §4.8).
type Exception int

const (
	NoException Exception = iota
	AddressErrorException
	PageFaultException
	ReadOnlyException
	BusErrorException
	SyscallException
	IllegalInstrException
)

func (e Exception) String() string {
	switch e {
	case NoException:
		return "NoException"
	case AddressErrorException:
		return "AddressErrorException"
	case PageFaultException:
		return "PageFaultException"
	case ReadOnlyException:
		return "ReadOnlyException"
	case BusErrorException:
		return "BusErrorException"
	case SyscallException:
		return "SyscallException"
	case IllegalInstrException:
		return "IllegalInstrException"
	default:
		return "UnknownException"
	}
}

// Translator is the machine's single translation unit.
type Translator struct {
	cfg      config.Config
	tlb      *tlb.TLB
	ppt      *pagetable.PhysicalPageTable
	physMem  []byte
	pt       pagetable.PageTable
	store    backingstore.BackingStore
	threadID uint64
}

// New creates a Translator over the shared TLB and PhysicalPageTable,
// initially scheduling the address space described by pt/store/threadID.
func New(cfg config.Config, tl *tlb.TLB, ppt *pagetable.PhysicalPageTable, pt pagetable.PageTable, store backingstore.BackingStore, threadID uint64) *Translator {
	return &Translator{
		cfg:      cfg,
		tlb:      tl,
		ppt:      ppt,
		physMem:  make([]byte, uint64(cfg.NumPhysPages)*uint64(cfg.PageSize())),
		pt:       pt,
		store:    store,
		threadID: threadID,
	}
}

// SwitchAddressSpace installs a new currently-running address space,
// the idiomatic analogue of a context switch (spec §5: "the TLB and
// page tables are accessed only by the running thread's machine steps").
func (t *Translator) SwitchAddressSpace(pt pagetable.PageTable, store backingstore.BackingStore, threadID uint64) {
	t.pt = pt
	t.store = store
	t.threadID = threadID
}

func (t *Translator) frame(ppn uint32) []byte {
	pageSize := uint64(t.cfg.PageSize())
	start := uint64(ppn) * pageSize
	return t.physMem[start : start+pageSize]
}

// AllocatePhysicalPage chooses a frame for vpn, evicting and writing
// back a dirty victim if necessary, swapping vpn's contents in from the
// current thread's backing store, and installing the new mapping in
// both the PhysicalPageTable and the current page table (spec §4.8
// steps 1-4). Returns the assigned physical page number.
func (t *Translator) AllocatePhysicalPage(vpn uint32) uint32 {
	ppn := t.ppt.PickVictim()
	victim := t.ppt.Frame(ppn)

	if victim.Valid {
		t.tlb.Invalidate(victim.VirtualPageNumber)
		t.pt.Invalidate(victim.VirtualPageNumber)
		if victim.Dirty {
			t.store.WriteAt(t.frame(ppn), victim.VirtualPageNumber*t.cfg.PageSize())
		}
	}

	t.store.ReadAt(t.frame(ppn), vpn*t.cfg.PageSize())

	now := t.ppt.NextTick()
	t.ppt.Install(ppn, pagetable.FrameRecord{
		Valid:             true,
		Dirty:             false,
		LastHitTime:       now,
		VirtualPageNumber: vpn,
		OwnerThread:       t.threadID,
	})
	t.pt.Set(pagetable.PageTableEntry{VirtualPage: vpn, PhysicalPage: ppn, Valid: true})
	return ppn
}

// handlePageFault refills one TLB slot for vpn: the evicted slot (if
// valid) is written back into the page table, and vpn's page-table
// entry is copied in, allocating a fresh frame first if vpn has no
// page-table entry yet (spec §4.7).
func (t *Translator) handlePageFault(vpn uint32) {
	entry, ok := t.pt.Lookup(vpn)
	if !ok {
		ppn := t.AllocatePhysicalPage(vpn)
		entry, _ = t.pt.Lookup(vpn)
		_ = ppn
	}

	newEntry := tlb.TranslationEntry{
		VirtualPage:  vpn,
		PhysicalPage: entry.PhysicalPage,
		Valid:        true,
		Dirty:        entry.Dirty,
		Use:          entry.Use,
		ReadOnly:     entry.ReadOnly,
	}
	evicted, hadValid := t.tlb.Refill(newEntry)
	if hadValid {
		t.pt.Set(pagetable.PageTableEntry{
			VirtualPage:  evicted.VirtualPage,
			PhysicalPage: evicted.PhysicalPage,
			Valid:        evicted.Valid,
			Dirty:        evicted.Dirty,
			Use:          evicted.Use,
			ReadOnly:     evicted.ReadOnly,
		})
	}
}

// Translate performs spec §4.8's full translation sequence: alignment
// check, vpn/offset split, TLB search, read-only/range checks, and
// use/dirty/LastHitTime bookkeeping. On a TLB miss it returns
// PageFaultException without refilling; HandlePageFaultAndRetry is the
// caller-facing helper that performs the refill-then-retry the original
// Machine::ReadMem/WriteMem loop implements.
func (t *Translator) Translate(virtAddr uint32, size int, writing bool) (physAddr uint32, exc Exception) {
	if (size == 4 && virtAddr&0x3 != 0) || (size == 2 && virtAddr&0x1 != 0) {
		return 0, AddressErrorException
	}

	vpn := virtAddr / t.cfg.PageSize()
	offset := virtAddr % t.cfg.PageSize()

	idx, ok := t.tlb.Probe(vpn)
	if !ok {
		return 0, PageFaultException
	}
	entry := t.tlb.Entry(idx)

	if entry.ReadOnly && writing {
		return 0, ReadOnlyException
	}
	if entry.PhysicalPage >= t.cfg.NumPhysPages {
		return 0, BusErrorException
	}

	t.tlb.MarkUse(idx, writing)
	t.ppt.MarkUse(entry.PhysicalPage, writing)
	if writing {
		pte, ptOK := t.pt.Lookup(vpn)
		if ptOK {
			pte.Dirty = true
			t.pt.Set(pte)
		}
	}

	return entry.PhysicalPage*t.cfg.PageSize() + offset, NoException
}

// HandlePageFaultAndRetry retries Translate after a page fault refill,
// mirroring Machine::ReadMem/WriteMem's retry-on-PageFaultException
// loop (original_source/code/machine/translate.cc). Other exceptions are
// returned immediately without retrying.
func (t *Translator) HandlePageFaultAndRetry(virtAddr uint32, size int, writing bool) (physAddr uint32, exc Exception) {
	physAddr, exc = t.Translate(virtAddr, size, writing)
	if exc != PageFaultException {
		return physAddr, exc
	}
	vpn := virtAddr / t.cfg.PageSize()
	t.handlePageFault(vpn)
	return t.Translate(virtAddr, size, writing)
}
