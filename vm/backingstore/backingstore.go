// Package backingstore implements the per-address-space store that a
// faulted-out page's contents are written to and read from (spec §4.8
// step 2): either a per-space host file, or an in-memory shadow buffer,
// selected by config.Config.BackingStoreKind.
//
// The file-backed implementation is grounded on diskdev.Device's direct
// unix.Fsync-backed host-file I/O; the in-memory variant is grounded on
// ejdavenheimer-TP-Sistemas-Operativos-UTN-FRBA-1c2025's
// memoria/models.UserMemory flat byte-slice backing store.
package backingstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/go-nachos/nachos/config"
)

// BackingStore holds one address space's out-of-core page contents,
// indexed by byte offset (vpn * PageSize).
type BackingStore interface {
	ReadAt(buf []byte, offset uint32)
	WriteAt(data []byte, offset uint32)
	Close()
}

// New builds a BackingStore of the kind selected by cfg.BackingStoreKind.
// path is only consulted for the file-backed kind.
func New(cfg config.Config, path string) (BackingStore, error) {
	if cfg.BackingStoreKind == config.BackingStoreMemory {
		return newMemStore(cfg), nil
	}
	return newFileStore(cfg, path)
}

type memStore struct {
	pageSize uint32
	data     []byte
}

func newMemStore(cfg config.Config) *memStore {
	return &memStore{pageSize: cfg.PageSize(), data: make([]byte, cfg.PageSize()*cfg.NumPhysPages)}
}

func (m *memStore) ensure(offset uint32, n uint32) {
	need := offset + n
	if need <= uint32(len(m.data)) {
		return
	}
	grown := make([]byte, need)
	copy(grown, m.data)
	m.data = grown
}

func (m *memStore) ReadAt(buf []byte, offset uint32) {
	m.ensure(offset, uint32(len(buf)))
	copy(buf, m.data[offset:offset+uint32(len(buf))])
}

func (m *memStore) WriteAt(data []byte, offset uint32) {
	m.ensure(offset, uint32(len(data)))
	copy(m.data[offset:offset+uint32(len(data))], data)
}

func (m *memStore) Close() {}

type fileStore struct {
	f *os.File
}

func newFileStore(cfg config.Config, path string) (*fileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("backingstore: open %s: %w", path, err)
	}
	return &fileStore{f: f}, nil
}

func (fs *fileStore) ReadAt(buf []byte, offset uint32) {
	n, err := fs.f.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		// Never-written page: treat as a zero page, same as a freshly
		// extended file (spec §4.3 growth semantics).
		for i := range buf {
			buf[i] = 0
		}
	}
}

func (fs *fileStore) WriteAt(data []byte, offset uint32) {
	if _, err := fs.f.WriteAt(data, int64(offset)); err != nil {
		panic(fmt.Sprintf("backingstore: WriteAt: %v", err))
	}
}

func (fs *fileStore) Close() {
	unix.Fsync(int(fs.f.Fd()))
	fs.f.Close()
}
