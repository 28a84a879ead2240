// Package elfasm reconstitutes an ELF64 ET_REL relocatable object from a
// ticket's ordered member list, gathering each member's fragment sections
// from the store, merging them into ELF output sections, forming COMDAT
// groups for link-once members, and writing a valid object.
package elfasm

import (
	"debug/elf"

	"github.com/rgal/llvm-project-prepo/fragment/sectionkind"
	"github.com/rgal/llvm-project-prepo/store"
)

// SectionID keys an OutputSection: the ELF section name it was created
// for, plus a discriminator that keeps linkonce members in distinct
// sections eligible for COMDAT folding instead of being merged together
// with every other member that maps to the same ELF section name.
// Discriminator is the defining ticket member's ordinal position (not
// its name: two distinct members can share one linkonce name and must
// still land in two distinct output sections, united only by a shared
// COMDAT group); it is meaningless when HasDiscriminator is false.
type SectionID struct {
	Name             string
	Discriminator    int
	HasDiscriminator bool
}

// kindMapping is one row of the fixed section-kind to ELF section
// mapping table (ported from the original tool's getELFSectionType /
// SectionAttributes). Other fragment section kinds are reserved: a
// fragment carrying one is a programmer error in the front end, not a
// recoverable runtime condition.
type kindMapping struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	align uint64
}

var kindMappings = map[sectionkind.Kind]kindMapping{
	sectionkind.BSS:        {".bss", elf.SHT_NOBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 16},
	sectionkind.Data:       {".data", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_WRITE, 8},
	sectionkind.Text:       {".text", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_EXECINSTR, 16},
	sectionkind.ReadOnly:   {".rodata", elf.SHT_PROGBITS, elf.SHF_ALLOC, 8},
	sectionkind.ThreadBSS:  {".tbss", elf.SHT_NOBITS, elf.SHF_ALLOC | elf.SHF_WRITE | elf.SHF_TLS, 8},
	sectionkind.ThreadData: {".tdata", elf.SHT_PROGBITS, elf.SHF_ALLOC | elf.SHF_WRITE | elf.SHF_TLS, 8},
}

var globalCtorsMapping = kindMapping{".init_array", elf.SHT_INIT_ARRAY, elf.SHF_ALLOC | elf.SHF_WRITE, 8}
var globalDtorsMapping = kindMapping{".fini_array", elf.SHT_FINI_ARRAY, elf.SHF_ALLOC | elf.SHF_WRITE, 8}

// sectionMapping computes the ELF section a fragment section of kind k,
// belonging to the ticket member at ordinal memberIdx and named by
// memberName, should be merged into. The sentinel-name remap to
// .init_array/.fini_array is checked against memberName's interned-name
// reference (via special) before the kind-based table, taking priority
// regardless of the fragment's own section kind; ok is false for a
// reserved kind with no defined mapping.
func sectionMapping(k sectionkind.Kind, memberName store.Ref, memberIdx int, linkonce bool, special SpecialNames) (m kindMapping, id SectionID, ok bool) {
	switch {
	case special.hasCtor && memberName == special.CtorAddr:
		m, ok = globalCtorsMapping, true
	case special.hasDtor && memberName == special.DtorAddr:
		m, ok = globalDtorsMapping, true
	default:
		m, ok = kindMappings[k]
	}
	if !ok {
		return kindMapping{}, SectionID{}, false
	}
	id = SectionID{Name: m.name}
	if linkonce {
		id.Discriminator = memberIdx
		id.HasDiscriminator = true
	}
	return m, id, true
}
