// Package sparsearray implements the bitmap-indexed dense value array
// that forms the head of every fragment blob: a mapping from a small
// dense enum (at most 64 keys) to uint64 values, stored as a 64-bit
// presence bitmap followed by one uint64 per set bit, in key order.
package sparsearray

import (
	"encoding/binary"
	"math/bits"

	"github.com/rgal/llvm-project-prepo/internal/perr"
)

// HeaderBytes is the size of the bitmap header.
const HeaderBytes = 8

// SparseArray is a zero-copy view over a bitmap header plus its dense
// value array, co-located inside a larger blob (a Fragment).
type SparseArray struct {
	buf []byte // HeaderBytes + n*8, where n = popcount(bitmap)
}

// SizeBytes returns the number of bytes required to store a sparse array
// with nEntries present keys.
func SizeBytes(nEntries int) uint64 {
	return HeaderBytes + uint64(nEntries)*8
}

// New builds the bitmap for keys (which must be < 64 and unique) and
// returns a SparseArray backed by a freshly allocated, zero-filled
// buffer. Values default to zero; callers fill them in with Set.
func New(keys []uint8) *SparseArray {
	var bitmap uint64
	for _, k := range keys {
		bitmap |= 1 << uint(k)
	}
	n := bits.OnesCount64(bitmap)
	buf := make([]byte, SizeBytes(n))
	binary.LittleEndian.PutUint64(buf, bitmap)
	return &SparseArray{buf: buf}
}

// Wrap interprets the head of buf as an existing sparse array, without
// copying. buf must be at least as long as its own bitmap's popcount
// requires; any bytes after that (such as the rest of a fragment blob)
// are ignored.
func Wrap(buf []byte) (*SparseArray, error) {
	if len(buf) < HeaderBytes {
		return nil, perr.New(perr.Format, "sparse array buffer shorter than header")
	}
	bitmap := binary.LittleEndian.Uint64(buf)
	want := SizeBytes(bits.OnesCount64(bitmap))
	if uint64(len(buf)) < want {
		return nil, perr.New(perr.Format, "sparse array buffer shorter than its bitmap requires")
	}
	return &SparseArray{buf: buf[:want]}, nil
}

// Bytes returns the array's backing bytes.
func (s *SparseArray) Bytes() []byte { return s.buf }

// SizeBytes returns the number of bytes this array occupies.
func (s *SparseArray) SizeBytes() uint64 { return uint64(len(s.buf)) }

func (s *SparseArray) bitmap() uint64 {
	return binary.LittleEndian.Uint64(s.buf)
}

func (s *SparseArray) has(key uint8) bool {
	return s.bitmap()&(1<<uint(key)) != 0
}

// slotIndex returns the dense-array index for key, assuming its bit is
// set: the population count of all lower bits.
func (s *SparseArray) slotIndex(key uint8) int {
	mask := s.bitmap() & ((uint64(1) << uint(key)) - 1)
	return bits.OnesCount64(mask)
}

// Lookup returns the value stored for key and whether key's bit is set.
func (s *SparseArray) Lookup(key uint8) (uint64, bool) {
	if key >= 64 || !s.has(key) {
		return 0, false
	}
	idx := s.slotIndex(key)
	off := HeaderBytes + idx*8
	return binary.LittleEndian.Uint64(s.buf[off : off+8]), true
}

// Set stores value for key. key's bit must already be present in the
// bitmap (it is fixed at construction); Set never changes which keys are
// present.
func (s *SparseArray) Set(key uint8, value uint64) {
	if key >= 64 || !s.has(key) {
		panic("sparsearray: Set on key whose bit is not set")
	}
	idx := s.slotIndex(key)
	off := HeaderBytes + idx*8
	binary.LittleEndian.PutUint64(s.buf[off:off+8], value)
}

// Indices returns the set of present keys in ascending order. The
// returned slice is a fresh copy each call; callers may range over it
// repeatedly without side effects (the "restartable" property spec'd for
// get_indices).
func (s *SparseArray) Indices() []uint8 {
	bitmap := s.bitmap()
	out := make([]uint8, 0, bits.OnesCount64(bitmap))
	for bitmap != 0 {
		k := bits.TrailingZeros64(bitmap)
		out = append(out, uint8(k))
		bitmap &^= 1 << uint(k)
	}
	return out
}

// Len returns the number of present keys.
func (s *SparseArray) Len() int {
	return bits.OnesCount64(s.bitmap())
}
