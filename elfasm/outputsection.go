package elfasm

import (
	"debug/elf"

	"github.com/rgal/llvm-project-prepo/fragment/align"
)

// pendingReloc is a relocation whose target symbol's final .symtab index
// isn't known yet: OutputSections are appended to (and relocations
// recorded against them) before SymbolTable.Sort runs, so the target is
// carried as a *Symbol and resolved to an index only when the relocation
// section is finally written.
type pendingReloc struct {
	Offset uint64
	Target *Symbol
	Type   uint32
	Addend int64
}

// OutputSection is an ELF section under construction: the merge of every
// fragment section from every ticket member that maps to the same
// (elf section name, discriminator) key.
type OutputSection struct {
	ID        SectionID
	Type      elf.SectionType
	Flags     elf.SectionFlag
	Alignment uint64

	// Data holds the section's file content. It stays empty for
	// SHT_NOBITS sections (BSS-like kinds occupy virtual space only);
	// Size tracks the logical length in both cases.
	Data []byte
	Size uint64

	Relocs []pendingReloc
	Group  *GroupInfo

	index    uint32 // assigned once section-header order is final
	relIndex uint32
}

// IsNoBits reports whether this section carries no file content.
func (s *OutputSection) IsNoBits() bool { return s.Type == elf.SHT_NOBITS }

// Append copies data into the section, first padding to alignment
// relative to the section's current length — the amount of leading
// padding depends on how much the section already holds, not merely on
// data's own intrinsic alignment (the "alignedContributionSize"
// behaviour). It returns the offset at which data now begins.
func (s *OutputSection) Append(data []byte, alignment uint64) uint64 {
	pad := align.Padding(s.Size, alignment)
	if pad > 0 {
		s.Data = append(s.Data, make([]byte, pad)...)
	}
	s.Size += pad
	base := s.Size
	s.Data = append(s.Data, data...)
	s.Size += uint64(len(data))
	return base
}

// AppendZeroFill reserves n bytes of virtual space (for an SHT_NOBITS
// section) without writing any file bytes, observing the same
// alignment-relative-to-current-length rule as Append.
func (s *OutputSection) AppendZeroFill(n, alignment uint64) uint64 {
	pad := align.Padding(s.Size, alignment)
	s.Size += pad
	base := s.Size
	s.Size += n
	return base
}

// AddReloc records a pending relocation against this section.
func (s *OutputSection) AddReloc(offset uint64, target *Symbol, typ uint32, addend int64) {
	s.Relocs = append(s.Relocs, pendingReloc{Offset: offset, Target: target, Type: typ, Addend: addend})
}
