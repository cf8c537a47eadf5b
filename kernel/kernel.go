// Package kernel bundles every subsystem handle into one struct
// constructed once at boot and threaded through constructors, instead
// of scattering package-level globals (Design Notes, "Global state").
//
// Grounded on the teacher's fs.FsSuper/Nfs pattern of bundling related
// subsystem handles (superblock geometry, buffer cache, transaction
// log) into one struct passed to every operation, generalized here to
// bundle SynchDisk, FileSystem, and the virtual-memory translation unit
// instead of NFS's on-disk layout and transaction machinery.
package kernel

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-nachos/nachos/config"
	"github.com/go-nachos/nachos/diskdev"
	"github.com/go-nachos/nachos/filesys"
	"github.com/go-nachos/nachos/openfile"
	"github.com/go-nachos/nachos/synchdisk"
	"github.com/go-nachos/nachos/vm/backingstore"
	"github.com/go-nachos/nachos/vm/pagetable"
	"github.com/go-nachos/nachos/vm/tlb"
	"github.com/go-nachos/nachos/vm/translator"
)

// Kernel bundles the subsystems a running thread needs: the disk cache,
// the file system namespace, the virtual-memory translation unit, and
// the per-kernel open-file-handle table that syscalls index into
// (grounded on original_source/code/userprog/exception.cc's
// OpenFileTable pattern).
type Kernel struct {
	Cfg   config.Config
	Disk  *synchdisk.SynchDisk
	FS    *filesys.FileSystem
	TLB   *tlb.TLB
	PPT   *pagetable.PhysicalPageTable
	Trans *translator.Translator

	handlesMu  sync.Mutex
	handles    map[int]*openfile.OpenFile
	nextHandle int
}

// Boot constructs a Kernel over a memory-backed disk, formatting it if
// format is true, and wires a default single address space's virtual
// memory state (Linear or Inverted page table per cfg.PageTableKind,
// an in-memory or file-backed store per cfg.BackingStoreKind). When
// BackingStoreKind is file-backed, the swap file is a fresh host-file
// path of its own, since there is no disk image path to derive one
// from.
func Boot(cfg config.Config, format bool) (*Kernel, error) {
	dev := diskdev.NewMem(cfg.NumSectors, cfg.SectorSize)
	swapPath, err := newSwapPath(cfg, "")
	if err != nil {
		return nil, err
	}
	return bootWithDevice(cfg, dev, swapPath, format)
}

// BootFile is Boot over a host-file-backed disk at path; its swap file
// is derived from path.
func BootFile(cfg config.Config, path string, format bool) (*Kernel, error) {
	dev, err := diskdev.NewFile(path, cfg.NumSectors, cfg.SectorSize)
	if err != nil {
		return nil, err
	}
	swapPath, err := newSwapPath(cfg, path)
	if err != nil {
		return nil, err
	}
	return bootWithDevice(cfg, dev, swapPath, format)
}

// newSwapPath picks the backing-store file path for a kernel booted
// from diskPath ("" for a memory-backed disk). A memory-backed disk has
// no disk-image path to derive a swap path from, so it gets a fresh
// temp file instead.
func newSwapPath(cfg config.Config, diskPath string) (string, error) {
	if cfg.BackingStoreKind == config.BackingStoreMemory {
		return "", nil // unused by the memory-backed store
	}
	if diskPath != "" {
		return diskPath + ".swap", nil
	}
	f, err := os.CreateTemp("", "nachos-swap-*")
	if err != nil {
		return "", fmt.Errorf("kernel: create swap file: %w", err)
	}
	path := f.Name()
	f.Close()
	return path, nil
}

func bootWithDevice(cfg config.Config, dev *diskdev.Device, swapPath string, format bool) (*Kernel, error) {
	sd := synchdisk.New(dev, cfg.CacheSize)
	fs := filesys.Boot(sd, cfg, format)

	tl := tlb.New(cfg)
	ppt := pagetable.NewPhysicalPageTable(cfg)
	pt := pagetable.New(cfg)
	store, err := backingstore.New(cfg, swapPath)
	if err != nil {
		return nil, fmt.Errorf("kernel: boot backing store: %w", err)
	}
	trans := translator.New(cfg, tl, ppt, pt, store, 1)

	return &Kernel{
		Cfg:     cfg,
		Disk:    sd,
		FS:      fs,
		TLB:     tl,
		PPT:     ppt,
		Trans:   trans,
		handles: make(map[int]*openfile.OpenFile),
	}, nil
}

// Shutdown flushes and closes the underlying disk.
func (k *Kernel) Shutdown() {
	k.Disk.Close()
}

// AddHandle registers of under a fresh handle and returns it.
func (k *Kernel) AddHandle(of *openfile.OpenFile) int {
	k.handlesMu.Lock()
	defer k.handlesMu.Unlock()
	k.nextHandle++
	h := k.nextHandle
	k.handles[h] = of
	return h
}

// Handle looks up a previously registered OpenFile by handle.
func (k *Kernel) Handle(h int) (*openfile.OpenFile, bool) {
	k.handlesMu.Lock()
	defer k.handlesMu.Unlock()
	of, ok := k.handles[h]
	return of, ok
}

// RemoveHandle unregisters handle, closing its OpenFile if present.
func (k *Kernel) RemoveHandle(h int) bool {
	k.handlesMu.Lock()
	defer k.handlesMu.Unlock()
	of, ok := k.handles[h]
	if !ok {
		return false
	}
	of.Close()
	delete(k.handles, h)
	return true
}
