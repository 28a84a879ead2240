package fragment

import (
	"encoding/binary"

	"github.com/rgal/llvm-project-prepo/fragment/align"
	"github.com/rgal/llvm-project-prepo/fragment/sectionkind"
)

// SectionHeaderBytes is the fixed size of a section's header: NumIfixups
// (u32), NumXfixups (u32), DataSize (u64).
const SectionHeaderBytes = 16

// Alignment of the three data arrays making up a section body, and of the
// section header itself within the fragment blob. SectionAlign is 8
// because the header's DataSize field is a u64.
const (
	DataAlign     = 1
	IFixupAlign   = 4
	XFixupAlign   = 8
	SectionAlign  = 8
)

// SectionEntry is one input to Build: a section kind plus its raw data
// and fixups, in the order they should be serialized.
type SectionEntry struct {
	Kind    sectionkind.Kind
	Data    []byte
	IFixups []InternalFixup
	XFixups []ExternalFixup
}

// sizeBytes returns the number of bytes a section occupies, including all
// internal alignment padding, given its data/fixup counts.
func sizeBytes(dataLen, numIfixups, numXfixups int) uint64 {
	pos := uint64(SectionHeaderBytes)
	pos = partSize(pos, uint64(dataLen), DataAlign, 1)
	pos = partSize(pos, uint64(numIfixups), IFixupAlign, InternalFixupBytes)
	pos = partSize(pos, uint64(numXfixups), XFixupAlign, ExternalFixupBytes)
	return pos
}

// partSize advances pos past n elements of the given per-element size,
// first aligning pos if n > 0 (an empty array contributes no padding).
func partSize(pos, n uint64, alignment, elemSize uint64) uint64 {
	if n == 0 {
		return pos
	}
	return align.Offset(pos, alignment) + n*elemSize
}

func (e SectionEntry) sizeBytes() uint64 {
	return sizeBytes(len(e.Data), len(e.IFixups), len(e.XFixups))
}

// Section is a read-only, zero-copy view over one section's header, data,
// internal fixups and external fixups, as laid out inside a Fragment
// blob.
type Section struct {
	buf    []byte // starts at the section header
	baseOff uint64 // absolute offset of buf[0] within the owning Fragment
}

func (s Section) numIfixups() uint32 { return binary.LittleEndian.Uint32(s.buf[0:4]) }
func (s Section) numXfixups() uint32 { return binary.LittleEndian.Uint32(s.buf[4:8]) }
func (s Section) dataSize() uint64   { return binary.LittleEndian.Uint64(s.buf[8:16]) }

// Data returns the section's raw byte payload.
func (s Section) Data() []byte {
	start := uint64(SectionHeaderBytes)
	n := s.dataSize()
	return s.buf[start : start+n]
}

// IFixups returns the section's internal fixups.
func (s Section) IFixups() []InternalFixup {
	n := int(s.numIfixups())
	if n == 0 {
		return nil
	}
	dataEnd := uint64(SectionHeaderBytes) + s.dataSize()
	start := align.Offset(s.baseOff+dataEnd, IFixupAlign) - s.baseOff
	out := make([]InternalFixup, n)
	for i := 0; i < n; i++ {
		off := start + uint64(i)*InternalFixupBytes
		out[i] = getInternalFixup(s.buf[off : off+InternalFixupBytes])
	}
	return out
}

// XFixups returns the section's external fixups.
func (s Section) XFixups() []ExternalFixup {
	n := int(s.numXfixups())
	if n == 0 {
		return nil
	}
	ifixupsEnd := s.ifixupsEndOffset()
	start := align.Offset(s.baseOff+ifixupsEnd, XFixupAlign) - s.baseOff
	out := make([]ExternalFixup, n)
	for i := 0; i < n; i++ {
		off := start + uint64(i)*ExternalFixupBytes
		out[i] = getExternalFixup(s.buf[off : off+ExternalFixupBytes])
	}
	return out
}

func (s Section) ifixupsEndOffset() uint64 {
	dataEnd := uint64(SectionHeaderBytes) + s.dataSize()
	ifixupsStart := align.Offset(s.baseOff+dataEnd, IFixupAlign) - s.baseOff
	return ifixupsStart + uint64(s.numIfixups())*InternalFixupBytes
}

// SizeBytes returns the total size in bytes of this section, including
// its header and all internal padding.
func (s Section) SizeBytes() uint64 {
	return sizeBytes(int(s.dataSize()), int(s.numIfixups()), int(s.numXfixups()))
}

// writeSection serializes entry into buf (which must be exactly
// entry.sizeBytes() long), filling in header, data, and both fixup
// arrays at their aligned positions. baseOff is the absolute offset of
// buf[0] within the fragment, needed to compute correctly-aligned
// absolute positions for the sub-arrays.
func writeSection(buf []byte, baseOff uint64, e SectionEntry) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(e.IFixups)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(e.XFixups)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(e.Data)))

	pos := uint64(SectionHeaderBytes)
	if len(e.Data) > 0 {
		start := align.Offset(baseOff+pos, DataAlign) - baseOff
		copy(buf[start:start+uint64(len(e.Data))], e.Data)
		pos = start + uint64(len(e.Data))
	}
	if len(e.IFixups) > 0 {
		start := align.Offset(baseOff+pos, IFixupAlign) - baseOff
		for i, fx := range e.IFixups {
			off := start + uint64(i)*InternalFixupBytes
			fx.put(buf[off : off+InternalFixupBytes])
		}
		pos = start + uint64(len(e.IFixups))*InternalFixupBytes
	}
	if len(e.XFixups) > 0 {
		start := align.Offset(baseOff+pos, XFixupAlign) - baseOff
		for i, fx := range e.XFixups {
			off := start + uint64(i)*ExternalFixupBytes
			fx.put(buf[off : off+ExternalFixupBytes])
		}
	}
}
