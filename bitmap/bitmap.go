// Package bitmap implements the dense free-sector bitset (spec §3, §4.1),
// grounded on the teacher's alloc.go bit-level allocator (findFreeRegion,
// freeBit) but simplified from alloc.go's locked-region/transaction
// machinery to the spec's single-threaded Find/Mark/Clear/Test contract.
package bitmap

import (
	"fmt"
	"io"

	"github.com/rodaine/table"
	"github.com/tchajed/marshal"
)

// BitMap is an ordered sequence of nBits bits, packed big-endian into
// ceil(nBits/8) bytes (spec §3).
type BitMap struct {
	nBits uint32
	bits  []byte // len(bits) == ceil(nBits/8)
}

// New creates a BitMap of nBits bits, all clear.
func New(nBits uint32) *BitMap {
	return &BitMap{
		nBits: nBits,
		bits:  make([]byte, (nBits+7)/8),
	}
}

func (b *BitMap) byteBit(i uint32) (uint32, byte) {
	return i / 8, byte(0x80 >> (i % 8))
}

// Mark sets bit i. Idempotent.
func (b *BitMap) Mark(i uint32) {
	if i >= b.nBits {
		panic(fmt.Sprintf("bitmap: Mark(%d) out of range [0,%d)", i, b.nBits))
	}
	byteIdx, mask := b.byteBit(i)
	b.bits[byteIdx] |= mask
}

// Clear unsets bit i. Idempotent.
func (b *BitMap) Clear(i uint32) {
	if i >= b.nBits {
		panic(fmt.Sprintf("bitmap: Clear(%d) out of range [0,%d)", i, b.nBits))
	}
	byteIdx, mask := b.byteBit(i)
	b.bits[byteIdx] &^= mask
}

// Test reports whether bit i is set. The file system calls this before
// Clear to catch double-frees (spec §4.1).
func (b *BitMap) Test(i uint32) bool {
	if i >= b.nBits {
		panic(fmt.Sprintf("bitmap: Test(%d) out of range [0,%d)", i, b.nBits))
	}
	byteIdx, mask := b.byteBit(i)
	return b.bits[byteIdx]&mask != 0
}

// Find returns the smallest clear index, atomically marks it, and
// returns it; returns -1 if every bit is set.
func (b *BitMap) Find() int64 {
	for i := uint32(0); i < b.nBits; i++ {
		if !b.Test(i) {
			b.Mark(i)
			return int64(i)
		}
	}
	return -1
}

// NumClear returns the count of clear bits.
func (b *BitMap) NumClear() uint32 {
	var n uint32
	for i := uint32(0); i < b.nBits; i++ {
		if !b.Test(i) {
			n++
		}
	}
	return n
}

// NumBits returns the bitmap's fixed size.
func (b *BitMap) NumBits() uint32 {
	return b.nBits
}

// Encode packs the bitmap into exactly ceil(nBits/8) bytes, the layout
// persisted as the free-map file's contents (spec §3). Grounded on
// marshal.PutBytes as used by dir.go's encodeDirEnt.
func (b *BitMap) Encode() []byte {
	enc := marshal.NewEnc(uint64(len(b.bits)))
	enc.PutBytes(b.bits)
	return enc.Finish()
}

// Decode replaces the bitmap's contents from a packed byte buffer of
// exactly ceil(nBits/8) bytes, as written by Encode.
func (b *BitMap) Decode(data []byte) {
	if len(data) != len(b.bits) {
		panic("bitmap: Decode: size mismatch")
	}
	dec := marshal.NewDec(data)
	copy(b.bits, dec.GetBytes(uint64(len(b.bits))))
}

// Print writes a small table summarizing free-sector occupancy, grounded
// on util/stats.WriteTable's table.New/AddRow usage.
func (b *BitMap) Print(w io.Writer) {
	tbl := table.New("total bits", "clear", "used")
	tbl.WithWriter(w)
	tbl.AddRow(b.nBits, b.NumClear(), b.nBits-b.NumClear())
	tbl.Print()
}
