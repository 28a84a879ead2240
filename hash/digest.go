package hash

import (
	"encoding/binary"
	"encoding/hex"
)

// Digest is a 128-bit structural hash.
type Digest [16]byte

// Bytes returns the digest's raw bytes.
func (d Digest) Bytes() []byte { return d[:] }

// String renders the digest as lowercase hex.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Summary8 returns the digest's trailing 8 bytes read as a little-endian
// uint64, the form used where a shorter collision-tolerant label
// suffices.
func (d Digest) Summary8() uint64 {
	return binary.LittleEndian.Uint64(d[8:])
}
