package synchdisk

import "sync"

// FairRW is the condition-variable-based reader/writer discipline named
// in spec §5 as "a second reader/writer construction... used in
// user-visible test code": writers wait while readers are active, and on
// writer-exit both pending readers and pending writers are woken, in
// that order, so neither readers nor writers starve. Grounded on Go's
// sync.Cond as the idiomatic replacement for Nachos's raw condition
// variables (Design Notes: avoid hand-rolled primitives where the
// standard library already expresses the same contract).
type FairRW struct {
	mu sync.Mutex

	readersActive int
	writerActive  bool
	writersQueued int

	readersOK *sync.Cond // broadcast when a writer finishes
	writersOK *sync.Cond // signaled when a writer finishes, after readers
}

// NewFairRW constructs a FairRW in the idle state.
func NewFairRW() *FairRW {
	f := &FairRW{}
	f.readersOK = sync.NewCond(&f.mu)
	f.writersOK = sync.NewCond(&f.mu)
	return f
}

// StartRead blocks while a writer is active or queued. Unlike the
// reader-preferring discipline in rwcoord.go, a reader that is already
// active is never asked to yield — only new readers wait behind a
// queued writer, which is what keeps a steady stream of arriving
// readers from starving it out indefinitely (spec §5, Testable
// Property #7).
func (f *FairRW) StartRead() {
	f.mu.Lock()
	for f.writerActive || f.writersQueued > 0 {
		f.readersOK.Wait()
	}
	f.readersActive++
	f.mu.Unlock()
}

// EndRead releases one reader; the last reader out wakes any queued
// writer.
func (f *FairRW) EndRead() {
	f.mu.Lock()
	f.readersActive--
	if f.readersActive == 0 {
		f.writersOK.Signal()
	}
	f.mu.Unlock()
}

// StartWrite queues as a writer, then blocks until no readers or writer
// are active.
func (f *FairRW) StartWrite() {
	f.mu.Lock()
	f.writersQueued++
	for f.writerActive || f.readersActive > 0 {
		f.writersOK.Wait()
	}
	f.writersQueued--
	f.writerActive = true
	f.mu.Unlock()
}

// EndWrite releases the writer and wakes pending readers, then pending
// writers, in that order (spec §5).
func (f *FairRW) EndWrite() {
	f.mu.Lock()
	f.writerActive = false
	f.readersOK.Broadcast()
	f.writersOK.Signal()
	f.mu.Unlock()
}
