// Package synchdisk wraps an asynchronous block device behind a
// blocking, mutex-serialized API (spec §4.2) and layers a write-back
// block cache on top. The "asynchronous device completing one request
// at a time via an interrupt that signals a binary semaphore" of the
// original is modeled as a goroutine owning the device handle, reached
// over a request channel whose reply channel close is the interrupt;
// receiving on it is the idiomatic Go analogue of the cooperative
// thread's semaphore wait named in spec §5.
//
// Grounded on the teacher's bcache.go (Bcache wrapping disk.Disk) for
// the device-wrapping shape and on cache.go's slot-based eviction for
// the victim-selection idea, generalized from the teacher's
// write-through, ref-counted cache to the spec's fixed-array,
// write-back CacheEntry{valid,dirty,sector,lru} model (spec §3).
package synchdisk

import (
	"io"
	"sync"
	"time"

	"github.com/go-nachos/nachos/diskdev"
	"github.com/go-nachos/nachos/logging"
	"github.com/go-nachos/nachos/stats"
)

type ioRequest struct {
	write  bool
	sector uint32
	data   []byte
	done   chan struct{}
}

type cacheEntry struct {
	valid  bool
	dirty  bool
	sector uint32
	lru    uint64
	data   []byte
}

// SynchDisk serializes ReadSector/WriteSector with a mutex and caches
// recently used sectors write-back.
type SynchDisk struct {
	mu    sync.Mutex // serializes ReadSector/WriteSector end to end
	dev   *diskdev.Device
	cache []cacheEntry
	tick  uint64

	reqCh chan *ioRequest

	headersMu sync.Mutex
	headers   map[uint32]*headerState

	readOp  stats.Op
	writeOp stats.Op
}

// New creates a SynchDisk of the given cache size over dev, and starts
// the simulated asynchronous device goroutine.
func New(dev *diskdev.Device, cacheSize uint32) *SynchDisk {
	sd := &SynchDisk{
		dev:     dev,
		cache:   make([]cacheEntry, cacheSize),
		reqCh:   make(chan *ioRequest),
		headers: make(map[uint32]*headerState),
	}
	for i := range sd.cache {
		sd.cache[i].data = make([]byte, dev.SectorSize())
	}
	go sd.deviceLoop()
	return sd
}

// deviceLoop is the simulated asynchronous device: one request
// in flight at a time, completion signaled by closing req.done (the
// "interrupt" of spec §4.2).
func (sd *SynchDisk) deviceLoop() {
	for req := range sd.reqCh {
		if req.write {
			sd.dev.WriteSector(req.sector, req.data)
		} else {
			sd.dev.ReadSector(req.sector, req.data)
		}
		close(req.done)
	}
}

// deviceRead issues a blocking read through the simulated device.
func (sd *SynchDisk) deviceRead(sector uint32) []byte {
	buf := make([]byte, sd.dev.SectorSize())
	req := &ioRequest{write: false, sector: sector, data: buf, done: make(chan struct{})}
	sd.reqCh <- req
	<-req.done
	return buf
}

// deviceWrite issues a blocking write through the simulated device.
func (sd *SynchDisk) deviceWrite(sector uint32, data []byte) {
	req := &ioRequest{write: true, sector: sector, data: data, done: make(chan struct{})}
	sd.reqCh <- req
	<-req.done
}

// NumSectors reports the underlying device's fixed capacity.
func (sd *SynchDisk) NumSectors() uint32 { return sd.dev.NumSectors() }

// SectorSize reports the fixed sector size in bytes.
func (sd *SynchDisk) SectorSize() uint32 { return sd.dev.SectorSize() }

// lookup scans the cache for sector, returning its index or -1. Must be
// called with sd.mu held.
func (sd *SynchDisk) lookup(sector uint32) int {
	for i := range sd.cache {
		if sd.cache[i].valid && sd.cache[i].sector == sector {
			return i
		}
	}
	return -1
}

// pickVictim returns the first invalid entry, else the entry with the
// smallest lru (ties broken by lowest index, per spec §4.2). Must be
// called with sd.mu held.
func (sd *SynchDisk) pickVictim() int {
	for i := range sd.cache {
		if !sd.cache[i].valid {
			return i
		}
	}
	victim := 0
	for i := 1; i < len(sd.cache); i++ {
		if sd.cache[i].lru < sd.cache[victim].lru {
			victim = i
		}
	}
	return victim
}

// fill evicts (flushing if dirty) and loads sector into a cache slot,
// returning its index. Must be called with sd.mu held.
func (sd *SynchDisk) fill(sector uint32) int {
	victim := sd.pickVictim()
	e := &sd.cache[victim]
	if e.valid && e.dirty {
		logging.DPrintf(5, "synchdisk: flush dirty sector %d from slot %d\n", e.sector, victim)
		sd.deviceWrite(e.sector, e.data)
	}
	data := sd.deviceRead(sector)
	e.valid = true
	e.dirty = false
	e.sector = sector
	copy(e.data, data)
	sd.tick++
	e.lru = sd.tick
	return victim
}

// ReadSector copies sector's contents into buf, which must be exactly
// SectorSize bytes.
func (sd *SynchDisk) ReadSector(sector uint32, buf []byte) {
	defer sd.readOp.Record(time.Now())
	if sector >= sd.dev.NumSectors() {
		panic("synchdisk: ReadSector: sector out of range")
	}
	sd.mu.Lock()
	defer sd.mu.Unlock()

	i := sd.lookup(sector)
	if i < 0 {
		i = sd.fill(sector)
	}
	sd.tick++
	sd.cache[i].lru = sd.tick
	copy(buf, sd.cache[i].data)
}

// WriteSector writes buf (exactly SectorSize bytes) into sector. A hit
// marks the slot dirty without touching the device; a miss reads the
// sector first (to preserve sector semantics under partial writes, per
// spec §4.2) before applying the write and marking dirty.
func (sd *SynchDisk) WriteSector(sector uint32, buf []byte) {
	defer sd.writeOp.Record(time.Now())
	if sector >= sd.dev.NumSectors() {
		panic("synchdisk: WriteSector: sector out of range")
	}
	sd.mu.Lock()
	defer sd.mu.Unlock()

	i := sd.lookup(sector)
	if i < 0 {
		i = sd.fill(sector)
	}
	copy(sd.cache[i].data, buf)
	sd.cache[i].dirty = true
	sd.tick++
	sd.cache[i].lru = sd.tick
}

// Barrier flushes every dirty cache entry to the device and fsyncs the
// backing device.
func (sd *SynchDisk) Barrier() {
	sd.mu.Lock()
	for i := range sd.cache {
		e := &sd.cache[i]
		if e.valid && e.dirty {
			sd.deviceWrite(e.sector, e.data)
			e.dirty = false
		}
	}
	sd.mu.Unlock()
	sd.dev.Barrier()
}

// Stats writes a read/write latency table to w.
func (sd *SynchDisk) Stats(w io.Writer) {
	stats.WriteTable([]string{"read", "write"}, []stats.Op{sd.readOp, sd.writeOp}, w)
}

// Close stops the device goroutine and releases the underlying device.
func (sd *SynchDisk) Close() {
	sd.Barrier()
	close(sd.reqCh)
	sd.dev.Close()
}
