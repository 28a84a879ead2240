package elfasm

import (
	"encoding/binary"
	"io"
)

// grpComdat is the GRP_COMDAT flag word that must lead every SHT_GROUP
// section's body (ELF gABI); debug/elf does not define it since it never
// needs to write groups, only read them.
const grpComdat uint32 = 0x1

// GroupInfo is a COMDAT group: every member section is discarded in
// favour of one representative at link time, selected by the linker
// comparing copies that share SignatureName across input objects.
type GroupInfo struct {
	SignatureName   string
	SignatureSymbol *Symbol
	Members         []*OutputSection

	index uint32 // this group's own SHT_GROUP section's header index
}

// groupBodyWords returns the number of 4-byte words the group's section
// body occupies: the leading GRP_COMDAT flag, then one word per member
// section plus one for that member's associated relocation section
// (SHT_NOBITS members have none).
func (g *GroupInfo) groupBodyWords() int {
	n := 1
	for _, m := range g.Members {
		n++
		if !m.IsNoBits() {
			n++
		}
	}
	return n
}

// writeGroupBody writes the group's section body: GRP_COMDAT, then for
// each member section its own header index followed by its relocation
// section's header index, if it has one. Member sections must already
// have their final indices assigned.
func writeGroupBody(w io.Writer, g *GroupInfo) (int64, error) {
	buf := make([]byte, 4*g.groupBodyWords())
	binary.LittleEndian.PutUint32(buf[0:4], grpComdat)
	off := 4
	for _, m := range g.Members {
		binary.LittleEndian.PutUint32(buf[off:off+4], m.index)
		off += 4
		if !m.IsNoBits() {
			binary.LittleEndian.PutUint32(buf[off:off+4], m.relIndex)
			off += 4
		}
	}
	n, err := w.Write(buf)
	return int64(n), err
}
