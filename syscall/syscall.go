// Package syscall implements the user-visible system call surface (spec
// §6), one function per numbered call. Register decoding and dispatch
// are the emulator's job and explicitly out of scope (spec §1); each
// function here takes a *kernel.Kernel plus already-decoded arguments
// and returns a result/error pair.
//
// Supplemented from original_source/code/userprog/exception.cc, since
// spec §6 lists the syscall surface but assigns it no module home: the
// per-kernel open-file-handle table mirrors exception.cc's
// OpenFileTable, and Create/Open/Close/Write/Read's argument shapes
// mirror its case SC_Create/SC_Open/... branches (adapted from raw
// register/user-memory access to direct Go parameters).
package syscall

import (
	"errors"

	"github.com/go-nachos/nachos/kernel"
)

// ErrNotImplemented is returned by syscalls whose semantics depend on
// the thread scheduler/emulator, both out of scope here (spec §1
// Non-goals: no SMP/scheduler emulation).
var ErrNotImplemented = errors.New("syscall: not implemented")

// ErrBadHandle is returned when a syscall is given a handle not present
// in the kernel's open-file-handle table.
var ErrBadHandle = errors.New("syscall: bad handle")

// ErrNotFound is returned by Open when path does not name an existing
// file.
var ErrNotFound = errors.New("syscall: not found")

// ErrFailed is a catch-all for FileSystem operations (Create/MkDir/
// RmDir/Remove) that return false without a more specific error.
var ErrFailed = errors.New("syscall: operation failed")

// Halt stops the machine. In this emulator-less core it is a no-op that
// flushes the disk, the closest analogue to Nachos's Halt shutting down
// the simulated machine cleanly.
func Halt(k *kernel.Kernel) {
	k.Disk.Barrier()
}

// Exit terminates the calling thread with the given status. Thread
// lifecycle is the scheduler's responsibility (out of scope); Exit is
// recorded for callers that want to observe the terminal code.
func Exit(k *kernel.Kernel, code int) int {
	return code
}

// Create creates a new file of size bytes named by path (spec §6).
func Create(k *kernel.Kernel, path string, size int) error {
	if !k.FS.Create(path, size) {
		return ErrFailed
	}
	return nil
}

// Open opens path and returns a fresh handle into the kernel's
// open-file-handle table.
func Open(k *kernel.Kernel, path string) (int, error) {
	of := k.FS.Open(path)
	if of == nil {
		return 0, ErrNotFound
	}
	return k.AddHandle(of), nil
}

// Close releases handle.
func Close(k *kernel.Kernel, handle int) error {
	if !k.RemoveHandle(handle) {
		return ErrBadHandle
	}
	return nil
}

// Write writes buf through handle at its current seek position,
// returning the count actually transferred.
func Write(k *kernel.Kernel, handle int, buf []byte) (int, error) {
	of, ok := k.Handle(handle)
	if !ok {
		return 0, ErrBadHandle
	}
	n := of.Write(buf, uint32(len(buf)))
	return int(n), nil
}

// Read reads up to len(buf) bytes through handle at its current seek
// position, returning the count actually transferred.
func Read(k *kernel.Kernel, handle int, buf []byte) (int, error) {
	of, ok := k.Handle(handle)
	if !ok {
		return 0, ErrBadHandle
	}
	n := of.Read(buf, uint32(len(buf)))
	return int(n), nil
}

// Exec, Fork, Yield, and Join depend on a thread scheduler this core
// does not implement (spec §1 Non-goals: no SMP/scheduler emulation).

// Exec is not implemented; see package doc.
func Exec(k *kernel.Kernel, path string) (int, error) { return 0, ErrNotImplemented }

// Fork is not implemented; see package doc.
func Fork(k *kernel.Kernel, pc uint32) (int, error) { return 0, ErrNotImplemented }

// Yield is not implemented; see package doc.
func Yield(k *kernel.Kernel) error { return ErrNotImplemented }

// Join is not implemented; see package doc.
func Join(k *kernel.Kernel, tid int) (int, error) { return 0, ErrNotImplemented }

// MkDir creates a directory named by path.
func MkDir(k *kernel.Kernel, path string) error {
	if !k.FS.Create(path, -1) {
		return ErrFailed
	}
	return nil
}

// RmDir removes the (possibly non-empty) directory named by path.
func RmDir(k *kernel.Kernel, path string) error {
	if !k.FS.Remove(path) {
		return ErrFailed
	}
	return nil
}

// Remove deletes the file named by path.
func Remove(k *kernel.Kernel, path string) error {
	if !k.FS.Remove(path) {
		return ErrFailed
	}
	return nil
}

// Ls lists the root directory's entries.
func Ls(k *kernel.Kernel) []string {
	return k.FS.List()
}

// Pwd is not implemented: this core has no per-thread current-directory
// concept (every path is resolved from root, spec §4.6).
func Pwd(k *kernel.Kernel) (string, error) { return "", ErrNotImplemented }

// Cd is not implemented for the same reason as Pwd.
func Cd(k *kernel.Kernel, path string) error { return ErrNotImplemented }

// Help lists the syscall surface's names, a debug aid mirroring Nachos's
// interactive Help command.
func Help() []string {
	return []string{
		"Halt", "Exit", "Create", "Open", "Close", "Write", "Read",
		"Exec", "Fork", "Yield", "Join", "MkDir", "RmDir", "Remove",
		"Ls", "Pwd", "Cd", "Help",
	}
}
