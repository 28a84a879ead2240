package fragment

import (
	"encoding/binary"

	"github.com/rgal/llvm-project-prepo/fragment/sectionkind"
)

// NameRef is a reference into the store's interned-name set: the address
// at which an external fixup's target-symbol name is recorded. It never
// carries a raw pointer; resolving it to an actual string is the
// store's job.
type NameRef uint64

// InternalFixupBytes is the fixed, standard-layout size of an
// InternalFixup record.
const InternalFixupBytes = 12

// InternalFixup is a relocation targeting another section of the same
// fragment. The two-byte gap between Type and Offset is explicit padding:
// Go does not otherwise guarantee this layout, and the on-disk format
// must match the original bit-for-bit.
type InternalFixup struct {
	Section sectionkind.Kind
	Type    uint8
	_       uint16
	Offset  uint32
	Addend  int32
}

func (f InternalFixup) put(buf []byte) {
	buf[0] = byte(f.Section)
	buf[1] = f.Type
	buf[2], buf[3] = 0, 0
	binary.LittleEndian.PutUint32(buf[4:8], f.Offset)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(f.Addend))
}

func getInternalFixup(buf []byte) InternalFixup {
	return InternalFixup{
		Section: sectionkind.Kind(buf[0]),
		Type:    buf[1],
		Offset:  binary.LittleEndian.Uint32(buf[4:8]),
		Addend:  int32(binary.LittleEndian.Uint32(buf[8:12])),
	}
}

// ExternalFixupBytes is the fixed, standard-layout size of an
// ExternalFixup record.
const ExternalFixupBytes = 32

// ExternalFixup is a relocation targeting a named external symbol.
type ExternalFixup struct {
	Name   NameRef
	Type   uint8
	_      [7]byte
	Offset uint64
	Addend int64
}

func (f ExternalFixup) put(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(f.Name))
	buf[8] = f.Type
	for i := 9; i < 16; i++ {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint64(buf[16:24], f.Offset)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(f.Addend))
}

func getExternalFixup(buf []byte) ExternalFixup {
	return ExternalFixup{
		Name:   NameRef(binary.LittleEndian.Uint64(buf[0:8])),
		Type:   buf[8],
		Offset: binary.LittleEndian.Uint64(buf[16:24]),
		Addend: int64(binary.LittleEndian.Uint64(buf[24:32])),
	}
}
